// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package endpointspec defines, for each Azure-shaped endpoint, the upstream
// path it maps to and the request parsing, classification and validation
// logic. Validation is fail-closed: a request that does not pass never
// reaches the upstream.
package endpointspec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/proxyapi/azure-openai-proxy/internal/apischema/azure"
	"github.com/proxyapi/azure-openai-proxy/internal/internalapi"
)

// Upstream paths of the custom API, keyed by external endpoint.
const (
	UpstreamChatCompletionsPath = "/chatgpt/v1/completions"
	UpstreamEmbeddingsPath      = "/ai/v1/embeddings"
	UpstreamImageGenerationPath = "/ai/v1/images/generations"
)

type (
	// ChatCompletionsEndpointSpec implements the spec for
	// /deployments/{deployment}/chat/completions (text and vision chat).
	ChatCompletionsEndpointSpec struct{}
	// CompletionsEndpointSpec implements the spec for the legacy
	// /deployments/{deployment}/completions endpoint.
	CompletionsEndpointSpec struct{}
	// EmbeddingsEndpointSpec implements the spec for
	// /deployments/{deployment}/embeddings.
	EmbeddingsEndpointSpec struct{}
	// ImageGenerationEndpointSpec implements the spec for
	// /deployments/{deployment}/images/generations.
	ImageGenerationEndpointSpec struct{}
)

// UpstreamPath returns the upstream path chat requests are dispatched to.
func (ChatCompletionsEndpointSpec) UpstreamPath() string { return UpstreamChatCompletionsPath }

// ParseBody parses the chat completions body, classifies it as text or
// vision chat, and enforces the vision preconditions: a single image, a
// well-formed image URL, and no streaming.
func (ChatCompletionsEndpointSpec) ParseBody(body []byte) (req *azure.ChatCompletionRequest, vision, stream bool, err error) {
	req = &azure.ChatCompletionRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, false, false, fmt.Errorf("%w: %s", internalapi.ErrInvalidRequestBody, err)
	}
	if len(req.Messages) == 0 {
		return nil, false, false, fmt.Errorf("%w: messages", internalapi.ErrMissingRequiredField)
	}
	if !hasConversationalRole(req.Messages) {
		return nil, false, false, fmt.Errorf("%w: no message with a supported role", internalapi.ErrInvalidRequestBody)
	}

	images := collectImageParts(req.Messages)
	if len(images) > 1 {
		return nil, false, false, internalapi.ErrInvalidImageData
	}
	if len(images) == 1 {
		if err := validateImagePart(images[0]); err != nil {
			return nil, false, false, err
		}
		if req.Stream {
			return nil, false, false, internalapi.ErrVisionStreaming
		}
		return req, true, false, nil
	}
	return req, false, req.Stream, nil
}

// UpstreamPath returns the upstream path legacy completion requests are
// dispatched to; they share the chat endpoint after the prompt rewrite.
func (CompletionsEndpointSpec) UpstreamPath() string { return UpstreamChatCompletionsPath }

// ParseBody parses the legacy completions body.
func (CompletionsEndpointSpec) ParseBody(body []byte) (*azure.CompletionRequest, bool, error) {
	req := &azure.CompletionRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, false, fmt.Errorf("%w: %s", internalapi.ErrInvalidRequestBody, err)
	}
	if req.Prompt == "" {
		return nil, false, fmt.Errorf("%w: prompt", internalapi.ErrMissingRequiredField)
	}
	return req, req.Stream, nil
}

// UpstreamPath returns the upstream path embedding requests are dispatched to.
func (EmbeddingsEndpointSpec) UpstreamPath() string { return UpstreamEmbeddingsPath }

// ParseBody parses the embeddings body. Input must be a non-empty string or
// a non-empty array of strings; embeddings never stream.
func (EmbeddingsEndpointSpec) ParseBody(body []byte) (*azure.EmbeddingRequest, error) {
	req := &azure.EmbeddingRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, fmt.Errorf("%w: %s", internalapi.ErrInvalidRequestBody, err)
	}
	switch input := req.Input.Value.(type) {
	case string:
		if input == "" {
			return nil, fmt.Errorf("%w: input must not be empty", internalapi.ErrInvalidParameterValue)
		}
	case []string:
		if len(input) == 0 {
			return nil, fmt.Errorf("%w: input must not be empty", internalapi.ErrInvalidParameterValue)
		}
		for _, s := range input {
			if s == "" {
				return nil, fmt.Errorf("%w: input must not contain empty strings", internalapi.ErrInvalidParameterValue)
			}
		}
	default:
		return nil, fmt.Errorf("%w: input", internalapi.ErrMissingRequiredField)
	}
	return req, nil
}

// Image generation parameter domains accepted on the external surface.
var (
	imageSizes           = []string{"1024x1024", "1792x1024", "1024x1792"}
	imageQualities       = []string{"standard", "hd"}
	imageResponseFormats = []string{"url", "b64_json"}
)

// UpstreamPath returns the upstream path image requests are dispatched to.
func (ImageGenerationEndpointSpec) UpstreamPath() string { return UpstreamImageGenerationPath }

// ParseBody parses the image generations body and enforces the accepted
// parameter domains; image generation never streams.
func (ImageGenerationEndpointSpec) ParseBody(body []byte) (*azure.ImageGenerationRequest, error) {
	req := &azure.ImageGenerationRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		return nil, fmt.Errorf("%w: %s", internalapi.ErrInvalidRequestBody, err)
	}
	if req.Prompt == "" {
		return nil, fmt.Errorf("%w: prompt", internalapi.ErrMissingRequiredField)
	}
	if req.N != nil && (*req.N < 1 || *req.N > 10) {
		return nil, fmt.Errorf("%w: n must be between 1 and 10", internalapi.ErrInvalidParameterValue)
	}
	if req.Size != "" && !contains(imageSizes, req.Size) {
		return nil, fmt.Errorf("%w: size must be one of %s", internalapi.ErrInvalidParameterValue, strings.Join(imageSizes, ", "))
	}
	if req.Quality != "" && !contains(imageQualities, req.Quality) {
		return nil, fmt.Errorf("%w: quality must be one of %s", internalapi.ErrInvalidParameterValue, strings.Join(imageQualities, ", "))
	}
	if req.ResponseFormat != "" && !contains(imageResponseFormats, req.ResponseFormat) {
		return nil, fmt.Errorf("%w: response_format must be one of %s", internalapi.ErrInvalidParameterValue, strings.Join(imageResponseFormats, ", "))
	}
	return req, nil
}

// hasConversationalRole reports whether at least one message carries a role
// the chat surface accepts.
func hasConversationalRole(messages []azure.ChatCompletionMessageParam) bool {
	for i := range messages {
		switch messages[i].Role {
		case azure.ChatMessageRoleSystem, azure.ChatMessageRoleUser,
			azure.ChatMessageRoleAssistant, azure.ChatMessageRoleTool:
			return true
		}
	}
	return false
}

// collectImageParts gathers every image_url content part across the whole
// message list. Vision classification is a property of the request, not of a
// single message.
func collectImageParts(messages []azure.ChatCompletionMessageParam) []*azure.ChatCompletionContentPart {
	var images []*azure.ChatCompletionContentPart
	for i := range messages {
		parts := messages[i].Content.Parts()
		for j := range parts {
			if parts[j].Type == azure.ContentTypeImageURL {
				images = append(images, &parts[j])
			}
		}
	}
	return images
}

// validateImagePart enforces the image_url constraints: an http(s) URL or a
// base64 data URL with a declared MIME type, and a known detail level.
func validateImagePart(part *azure.ChatCompletionContentPart) error {
	if part.ImageURL == nil || part.ImageURL.URL == "" {
		return internalapi.ErrInvalidImageURL
	}
	if err := validateImageURL(part.ImageURL.URL); err != nil {
		return err
	}
	switch part.ImageURL.Detail {
	case "", azure.ImageDetailLow, azure.ImageDetailHigh, azure.ImageDetailAuto:
	default:
		return internalapi.ErrInvalidImageDetail
	}
	return nil
}

func validateImageURL(url string) error {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return nil
	}
	rest, ok := strings.CutPrefix(url, "data:")
	if !ok {
		return internalapi.ErrInvalidImageURL
	}
	mime, payload, ok := strings.Cut(rest, ";base64,")
	if !ok || mime == "" || payload == "" {
		return internalapi.ErrInvalidImageURL
	}
	return nil
}

func contains(domain []string, v string) bool {
	for _, d := range domain {
		if d == v {
			return true
		}
	}
	return false
}
