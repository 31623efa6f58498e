// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/proxyapi/azure-openai-proxy/internal/apischema/azure"
	"github.com/proxyapi/azure-openai-proxy/internal/internalapi"
)

// streamState tracks the per-stream chunk sequencing. Transitions only move
// forward: INIT -> ROLE_SENT -> CONTENT -> FINAL -> CLOSED.
type streamState int

const (
	streamStateInit streamState = iota
	streamStateRoleSent
	streamStateContent
	streamStateFinal
	streamStateClosed
)

// InStreamError carries an upstream error payload found inside the SSE
// stream. The caller decides between the buffered error envelope (nothing
// written yet) and the terminal error frame (mid-stream).
type InStreamError struct {
	Raw json.RawMessage
}

// Error implements the error interface.
func (e *InStreamError) Error() string {
	return fmt.Sprintf("upstream reported in-stream error: %s", e.Raw)
}

// NewChatCompletionStream returns the per-request chunk rewrapper for a
// streaming chat completion. It enforces the stream invariants: stable id and
// created across all chunks, role before content, at most one finish_reason,
// and a single trailing [DONE] written by the caller after Finalize.
func NewChatCompletionStream(deployment internalapi.Deployment, systemFingerprint string, logger *slog.Logger) *ChatCompletionStream {
	return &ChatCompletionStream{
		deployment:        deployment,
		systemFingerprint: systemFingerprint,
		logger:            logger,
	}
}

// ChatCompletionStream rewraps upstream chat chunks into Azure chunks. It is
// request-scoped and not safe for concurrent use; the SSE bridge is a single
// sequential read-transform-write loop.
type ChatCompletionStream struct {
	deployment        internalapi.Deployment
	systemFingerprint string
	logger            *slog.Logger

	state streamState
	// id and created are adopted from the first upstream chunk that carries
	// them, or generated, and are invariant for the rest of the stream.
	id      string
	created int64
	model   internalapi.ResponseModel
	usage   *azure.ChatCompletionResponseUsage
}

// Process converts one upstream SSE event payload into zero or more Azure
// chunks. Non-parseable payloads are logged and dropped. An upstream error
// payload aborts translation with an *InStreamError.
func (s *ChatCompletionStream) Process(payload []byte) ([]*azure.ChatCompletionResponseChunk, error) {
	if s.state == streamStateClosed {
		return nil, nil
	}
	chunk := &azure.ChatCompletionResponseChunk{}
	if err := json.Unmarshal(payload, chunk); err != nil {
		s.logger.Warn("dropping non-parseable stream payload", slog.String("error", err.Error()))
		return nil, nil
	}
	if len(chunk.Error) > 0 {
		return nil, &InStreamError{Raw: chunk.Error}
	}

	s.adoptIdentity(chunk)
	if chunk.Usage != nil {
		s.usage = scaffoldUsage(chunk.Usage)
	}

	if len(chunk.Choices) == 0 {
		return s.processChoiceless(chunk), nil
	}

	var out []*azure.ChatCompletionResponseChunk
	for i := range chunk.Choices {
		out = append(out, s.processChoice(&chunk.Choices[i])...)
	}
	return out, nil
}

// processChoiceless handles upstream chunks without choices: the optional
// leading prompt-filter chunk and the trailing usage-only chunk emitted under
// stream_options.include_usage. Both are re-emitted in Azure shape; the
// prompt-filter chunk is never synthesized when the upstream omits it.
func (s *ChatCompletionStream) processChoiceless(chunk *azure.ChatCompletionResponseChunk) []*azure.ChatCompletionResponseChunk {
	if len(chunk.PromptFilterResults) > 0 {
		out := s.newChunk([]azure.ChatCompletionResponseChunkChoice{})
		out.PromptFilterResults = chunk.PromptFilterResults
		return []*azure.ChatCompletionResponseChunk{out}
	}
	if chunk.Usage != nil {
		out := s.newChunk([]azure.ChatCompletionResponseChunkChoice{})
		out.Usage = s.usage
		return []*azure.ChatCompletionResponseChunk{out}
	}
	return nil
}

// processChoice applies the sequencing rules to a single upstream choice.
// The choice index is preserved so multi-choice upstream chunks flatten
// cleanly, though the state machine itself tracks a single stream.
func (s *ChatCompletionStream) processChoice(c *azure.ChatCompletionResponseChunkChoice) []*azure.ChatCompletionResponseChunk {
	var out []*azure.ChatCompletionResponseChunk

	if c.Delta != nil && c.Delta.Role != "" && s.state == streamStateInit {
		out = append(out, s.roleChunk(c.Index))
		s.state = streamStateRoleSent
	}

	if c.Delta != nil && (c.Delta.Content != nil || len(c.Delta.ToolCalls) > 0) {
		// The finish_reason already went out: emitting a later delta would
		// regress the state machine and Finalize would synthesize a second
		// terminating chunk.
		if s.state >= streamStateFinal {
			s.logger.Warn("dropping delta received after finish_reason")
			return out
		}
		// A compliant upstream sends the role delta first; synthesize it if
		// content arrives cold so every client sees role before content.
		if s.state == streamStateInit {
			out = append(out, s.roleChunk(c.Index))
			s.state = streamStateRoleSent
		}
		out = append(out, s.newChunk([]azure.ChatCompletionResponseChunkChoice{{
			Index: c.Index,
			Delta: &azure.ChatCompletionResponseChunkChoiceDelta{
				Content:   c.Delta.Content,
				ToolCalls: c.Delta.ToolCalls,
			},
			Logprobs:             azure.NullJSON,
			ContentFilterResults: azure.SafeContentFilterResults(),
		}}))
		s.state = streamStateContent
	}

	if c.FinishReason != nil && *c.FinishReason != "" && s.state != streamStateFinal {
		out = append(out, s.finalChunk(c.Index, *c.FinishReason))
		s.state = streamStateFinal
	}
	return out
}

// Finalize closes the stream on the DONE sentinel or upstream EOF. If no
// finish_reason was observed, a final chunk with finish_reason "stop" is
// synthesized so the client always sees a terminated stream. The caller emits
// the single [DONE] frame afterwards.
func (s *ChatCompletionStream) Finalize() []*azure.ChatCompletionResponseChunk {
	if s.state == streamStateClosed {
		return nil
	}
	var out []*azure.ChatCompletionResponseChunk
	if s.state != streamStateFinal {
		out = append(out, s.finalChunk(0, "stop"))
	}
	s.state = streamStateClosed
	return out
}

// Closed reports whether Finalize has run.
func (s *ChatCompletionStream) Closed() bool {
	return s.state == streamStateClosed
}

// Usage returns the last usage object observed in the stream, if any.
func (s *ChatCompletionStream) Usage() *azure.ChatCompletionResponseUsage {
	return s.usage
}

// ResponseModel returns the model the upstream reported in its chunks, or
// the deployment name when it never did.
func (s *ChatCompletionStream) ResponseModel() internalapi.ResponseModel {
	if s.model != "" {
		return s.model
	}
	return s.deployment
}

func (s *ChatCompletionStream) roleChunk(index int64) *azure.ChatCompletionResponseChunk {
	return s.newChunk([]azure.ChatCompletionResponseChunkChoice{{
		Index: index,
		Delta: &azure.ChatCompletionResponseChunkChoiceDelta{
			Role:    azure.ChatMessageRoleAssistant,
			Content: ptrTo(""),
		},
		Logprobs:             azure.NullJSON,
		ContentFilterResults: azure.EmptyContentFilterResults(),
	}})
}

func (s *ChatCompletionStream) finalChunk(index int64, finishReason string) *azure.ChatCompletionResponseChunk {
	return s.newChunk([]azure.ChatCompletionResponseChunkChoice{{
		Index:                index,
		Delta:                &azure.ChatCompletionResponseChunkChoiceDelta{},
		FinishReason:         ptrTo(finishReason),
		Logprobs:             azure.NullJSON,
		ContentFilterResults: azure.EmptyContentFilterResults(),
	}})
}

// newChunk stamps the invariant stream identity onto an outgoing chunk.
func (s *ChatCompletionStream) newChunk(choices []azure.ChatCompletionResponseChunkChoice) *azure.ChatCompletionResponseChunk {
	return &azure.ChatCompletionResponseChunk{
		ID:                s.id,
		Object:            objectChatCompletionChunk,
		Created:           s.created,
		Model:             string(s.ResponseModel()),
		SystemFingerprint: s.systemFingerprint,
		Choices:           choices,
	}
}

// adoptIdentity fixes the stream identity from the first upstream chunk, or
// generates one when the upstream never reports it.
func (s *ChatCompletionStream) adoptIdentity(chunk *azure.ChatCompletionResponseChunk) {
	if s.id == "" {
		if chunk.ID != "" {
			s.id = chunk.ID
		} else {
			s.id = newChatCompletionID()
		}
	}
	if s.created == 0 {
		if chunk.Created != 0 {
			s.created = chunk.Created
		} else {
			s.created = time.Now().Unix()
		}
	}
	if chunk.Model != "" {
		s.model = chunk.Model
	}
}
