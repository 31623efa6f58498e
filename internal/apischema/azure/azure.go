// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package azure defines the Azure OpenAI wire schema the proxy exposes to
// clients: chat completions (buffered and chunked), legacy completions,
// embeddings, image generations, the content-filter scaffolding and the
// error envelope. The upstream custom API speaks a Chat-Completions-like
// dialect of the same shapes, so these types are also used to decode
// upstream responses before rewrapping.
package azure

import (
	"encoding/json"
)

// Message roles accepted on the chat completions surface.
const (
	ChatMessageRoleSystem    = "system"
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleTool      = "tool"
	ChatMessageRoleDeveloper = "developer"
)

// Content part types inside a user message content array.
const (
	ContentTypeText     = "text"
	ContentTypeImageURL = "image_url"
)

// Image detail levels accepted on image_url content parts.
const (
	ImageDetailLow  = "low"
	ImageDetailHigh = "high"
	ImageDetailAuto = "auto"
)

// ChatCompletionRequest is the subset of the chat completions request body
// the proxy inspects. The raw body is forwarded with sjson-level mutations,
// so fields that are passed through untouched are not modeled here.
type ChatCompletionRequest struct {
	Model    string                       `json:"model,omitempty"`
	Messages []ChatCompletionMessageParam `json:"messages"`
	Stream   bool                         `json:"stream,omitempty"`
	// StreamOptions is decoded so the bridge can honor include_usage.
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`
	MaxTokens     *int64         `json:"max_tokens,omitempty"`
	Temperature   *float64       `json:"temperature,omitempty"`
	TopP          *float64       `json:"top_p,omitempty"`
}

// StreamOptions mirrors OpenAI's stream_options object.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// ChatCompletionMessageParam is a single entry of the messages array. Content
// is a union of a plain string and an array of typed content parts.
type ChatCompletionMessageParam struct {
	Role       string               `json:"role"`
	Content    StringOrContentParts `json:"content"`
	Name       string               `json:"name,omitempty"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
	ToolCalls  json.RawMessage      `json:"tool_calls,omitempty"`
}

// ChatCompletionContentPart is one element of a content array. Exactly one of
// Text and ImageURL is populated according to Type.
type ChatCompletionContentPart struct {
	Type     string                      `json:"type"`
	Text     string                      `json:"text,omitempty"`
	ImageURL *ChatCompletionContentImage `json:"image_url,omitempty"`
}

// ChatCompletionContentImage is the image_url object of an image content part.
type ChatCompletionContentImage struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// ChatCompletionResponse is the buffered chat completions response envelope.
type ChatCompletionResponse struct {
	ID                  string                         `json:"id"`
	Object              string                         `json:"object"`
	Created             int64                          `json:"created"`
	Model               string                         `json:"model"`
	Choices             []ChatCompletionResponseChoice `json:"choices"`
	Usage               *ChatCompletionResponseUsage   `json:"usage,omitempty"`
	SystemFingerprint   string                         `json:"system_fingerprint,omitempty"`
	PromptFilterResults []PromptFilterResult           `json:"prompt_filter_results,omitempty"`
}

// ChatCompletionResponseChoice is one element of the choices array. Logprobs
// is modeled as a raw message without omitempty so that the Azure-observed
// "logprobs": null survives marshalling.
type ChatCompletionResponseChoice struct {
	Index                int64                               `json:"index"`
	Message              ChatCompletionResponseChoiceMessage `json:"message"`
	FinishReason         string                              `json:"finish_reason"`
	Logprobs             json.RawMessage                     `json:"logprobs"`
	ContentFilterResults *ContentFilterResults               `json:"content_filter_results,omitempty"`
}

// ChatCompletionResponseChoiceMessage is the assistant message of a choice.
// Refusal and Annotations carry no omitempty: Azure emits "refusal": null and
// "annotations": [] unconditionally.
type ChatCompletionResponseChoiceMessage struct {
	Role        string            `json:"role"`
	Content     *string           `json:"content"`
	Refusal     *string           `json:"refusal"`
	Annotations []json.RawMessage `json:"annotations"`
	ToolCalls   json.RawMessage   `json:"tool_calls,omitempty"`
}

// ChatCompletionResponseUsage is the usage object. Azure emits the two
// *_details objects unconditionally, so they carry no omitempty and are
// scaffolded with zeros when the upstream leaves them out.
type ChatCompletionResponseUsage struct {
	CompletionTokens        int64                    `json:"completion_tokens"`
	PromptTokens            int64                    `json:"prompt_tokens"`
	TotalTokens             int64                    `json:"total_tokens"`
	CompletionTokensDetails *CompletionTokensDetails `json:"completion_tokens_details"`
	PromptTokensDetails     *PromptTokensDetails     `json:"prompt_tokens_details"`
}

// CompletionTokensDetails is the completion-side usage breakdown.
type CompletionTokensDetails struct {
	AcceptedPredictionTokens int64 `json:"accepted_prediction_tokens"`
	AudioTokens              int64 `json:"audio_tokens"`
	ReasoningTokens          int64 `json:"reasoning_tokens"`
	RejectedPredictionTokens int64 `json:"rejected_prediction_tokens"`
}

// PromptTokensDetails is the prompt-side usage breakdown.
type PromptTokensDetails struct {
	AudioTokens  int64 `json:"audio_tokens"`
	CachedTokens int64 `json:"cached_tokens"`
}

// ChatCompletionResponseChunk is one streamed chat completion chunk, used
// both to decode upstream chunks and to encode the Azure chunks the bridge
// emits. Object is always "chat.completion.chunk" on the way out.
type ChatCompletionResponseChunk struct {
	ID                  string                              `json:"id,omitempty"`
	Object              string                              `json:"object,omitempty"`
	Created             int64                               `json:"created,omitempty"`
	Model               string                              `json:"model,omitempty"`
	SystemFingerprint   string                              `json:"system_fingerprint,omitempty"`
	Choices             []ChatCompletionResponseChunkChoice `json:"choices"`
	Usage               *ChatCompletionResponseUsage        `json:"usage,omitempty"`
	PromptFilterResults []PromptFilterResult                `json:"prompt_filter_results,omitempty"`
	// Error carries an upstream in-stream error payload; never set on emitted
	// Azure chunks, which use the dedicated terminal error frame instead.
	Error json.RawMessage `json:"error,omitempty"`
}

// ChatCompletionResponseChunkChoice is one element of a chunk's choices
// array. FinishReason and Logprobs deliberately lack omitempty: every
// non-final Azure chunk carries "finish_reason": null and "logprobs": null.
type ChatCompletionResponseChunkChoice struct {
	Index                int64                                   `json:"index"`
	Delta                *ChatCompletionResponseChunkChoiceDelta `json:"delta,omitempty"`
	FinishReason         *string                                 `json:"finish_reason"`
	Logprobs             json.RawMessage                         `json:"logprobs"`
	ContentFilterResults *ContentFilterResults                   `json:"content_filter_results,omitempty"`
}

// ChatCompletionResponseChunkChoiceDelta is the incremental payload of a
// chunk choice. Content is a pointer so the role chunk can carry an explicit
// empty string while content-free final chunks omit the key entirely.
type ChatCompletionResponseChunkChoiceDelta struct {
	Role      string          `json:"role,omitempty"`
	Content   *string         `json:"content,omitempty"`
	ToolCalls json.RawMessage `json:"tool_calls,omitempty"`
}

// CompletionRequest is the legacy completions request body. The proxy
// rewrites it into a chat request before dispatch.
type CompletionRequest struct {
	Model            string          `json:"model,omitempty"`
	Prompt           string          `json:"prompt"`
	MaxTokens        *int64          `json:"max_tokens,omitempty"`
	Temperature      *float64        `json:"temperature,omitempty"`
	TopP             *float64        `json:"top_p,omitempty"`
	FrequencyPenalty *float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64        `json:"presence_penalty,omitempty"`
	Stop             json.RawMessage `json:"stop,omitempty"`
	Stream           bool            `json:"stream,omitempty"`
	User             string          `json:"user,omitempty"`
}

// CompletionResponse is the legacy text_completion response envelope, built
// from the upstream chat-shaped result.
type CompletionResponse struct {
	ID                string                       `json:"id"`
	Object            string                       `json:"object"`
	Created           int64                        `json:"created"`
	Model             string                       `json:"model"`
	Choices           []CompletionResponseChoice   `json:"choices"`
	Usage             *ChatCompletionResponseUsage `json:"usage,omitempty"`
	SystemFingerprint string                       `json:"system_fingerprint,omitempty"`
}

// CompletionResponseChoice is one element of a text_completion choices array.
type CompletionResponseChoice struct {
	Text         string          `json:"text"`
	Index        int64           `json:"index"`
	Logprobs     json.RawMessage `json:"logprobs"`
	FinishReason string          `json:"finish_reason"`
}

// EmbeddingRequest is the subset of the embeddings request body the proxy
// validates. Input is a union of a string and an array of strings.
type EmbeddingRequest struct {
	Input EmbeddingInputUnion `json:"input"`
	Model string              `json:"model,omitempty"`
}

// ImageGenerationRequest is the image generations request body.
type ImageGenerationRequest struct {
	Prompt         string `json:"prompt"`
	Model          string `json:"model,omitempty"`
	N              *int64 `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// Error is the Azure error envelope returned on every failure path.
type Error struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the stable code plus the operator-facing message.
// Param and Type are observed as null on the Azure surface.
type ErrorDetail struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Param   *string `json:"param"`
	Type    *string `json:"type"`
}

// NewError builds the Azure error envelope for a stable code and message.
func NewError(code, message string) *Error {
	return &Error{Error: ErrorDetail{Code: code, Message: message}}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NullJSON is the literal null, used for logprobs fields that Azure emits as
// an explicit null.
var NullJSON = json.RawMessage("null")
