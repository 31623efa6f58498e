// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"cmp"
	"encoding/json"
	"fmt"
	"time"

	"github.com/proxyapi/azure-openai-proxy/internal/apischema/azure"
	"github.com/proxyapi/azure-openai-proxy/internal/internalapi"
)

// NewCompletion returns the translator for the legacy completions surface.
// The upstream has no completions endpoint, so the request is rewritten into
// a chat request and the chat-shaped result back into a text_completion
// envelope.
func NewCompletion(deployment internalapi.Deployment, systemFingerprint string) *Completion {
	return &Completion{deployment: deployment, systemFingerprint: systemFingerprint}
}

// Completion translates a single legacy completions exchange.
type Completion struct {
	deployment        internalapi.Deployment
	systemFingerprint string
	stream            bool
}

// chatRewrite is the upstream chat body synthesized from a legacy request.
type chatRewrite struct {
	Model            string                             `json:"model"`
	Messages         []azure.ChatCompletionMessageParam `json:"messages"`
	MaxTokens        *int64                             `json:"max_tokens,omitempty"`
	Temperature      *float64                           `json:"temperature,omitempty"`
	TopP             *float64                           `json:"top_p,omitempty"`
	FrequencyPenalty *float64                           `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64                           `json:"presence_penalty,omitempty"`
	Stop             json.RawMessage                    `json:"stop,omitempty"`
	Stream           bool                               `json:"stream,omitempty"`
	User             string                             `json:"user,omitempty"`
}

// RequestBody rewrites the legacy body as a chat request with a single user
// message carrying the prompt, preserving the generation parameters.
func (t *Completion) RequestBody(req *azure.CompletionRequest) ([]byte, error) {
	t.stream = req.Stream
	body := chatRewrite{
		Model: t.deployment,
		Messages: []azure.ChatCompletionMessageParam{{
			Role:    azure.ChatMessageRoleUser,
			Content: azure.StringOrContentParts{Value: req.Prompt},
		}},
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		FrequencyPenalty: req.FrequencyPenalty,
		PresencePenalty:  req.PresencePenalty,
		Stop:             req.Stop,
		Stream:           req.Stream,
		User:             req.User,
	}
	newBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat rewrite: %w", err)
	}
	return newBody, nil
}

// ResponseBody rewrites the upstream chat-shaped result into the legacy
// text_completion envelope: each choice's message content becomes the
// choice's text.
func (t *Completion) ResponseBody(body []byte) (newBody []byte, usage *azure.ChatCompletionResponseUsage, responseModel internalapi.ResponseModel, err error) {
	chatResp := &azure.ChatCompletionResponse{}
	if err = json.Unmarshal(body, chatResp); err != nil {
		return nil, nil, "", fmt.Errorf("failed to unmarshal upstream response: %w", err)
	}

	responseModel = cmp.Or(chatResp.Model, t.deployment)
	resp := &azure.CompletionResponse{
		ID:                chatResp.ID,
		Object:            objectTextCompletion,
		Created:           chatResp.Created,
		Model:             responseModel,
		Usage:             scaffoldUsage(chatResp.Usage),
		SystemFingerprint: cmp.Or(chatResp.SystemFingerprint, t.systemFingerprint),
	}
	if resp.ID == "" {
		resp.ID = newChatCompletionID()
	}
	if resp.Created == 0 {
		resp.Created = time.Now().Unix()
	}
	usage = resp.Usage

	resp.Choices = make([]azure.CompletionResponseChoice, len(chatResp.Choices))
	for i := range chatResp.Choices {
		c := &chatResp.Choices[i]
		var text string
		if c.Message.Content != nil {
			text = *c.Message.Content
		}
		resp.Choices[i] = azure.CompletionResponseChoice{
			Text:         text,
			Index:        c.Index,
			Logprobs:     azure.NullJSON,
			FinishReason: c.FinishReason,
		}
	}

	newBody, err = json.Marshal(resp)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to marshal response: %w", err)
	}
	return newBody, usage, responseModel, nil
}

// Stream reports whether the translated request asked for streaming.
func (t *Completion) Stream() bool {
	return t.stream
}
