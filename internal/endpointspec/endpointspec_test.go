// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package endpointspec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/proxyapi/azure-openai-proxy/internal/internalapi"
)

func TestChatCompletionsParseBody(t *testing.T) {
	spec := ChatCompletionsEndpointSpec{}

	tests := []struct {
		name        string
		body        string
		vision      bool
		stream      bool
		expectedErr error
	}{
		{
			name:   "plain text chat",
			body:   `{"messages":[{"role":"user","content":"Hi"}]}`,
			vision: false,
			stream: false,
		},
		{
			name:   "streaming text chat",
			body:   `{"messages":[{"role":"user","content":"Hi"}],"stream":true}`,
			stream: true,
		},
		{
			name:   "vision with https url",
			body:   `{"messages":[{"role":"user","content":[{"type":"text","text":"what is this"},{"type":"image_url","image_url":{"url":"https://example.com/cat.png"}}]}]}`,
			vision: true,
		},
		{
			name:   "vision with data url",
			body:   `{"messages":[{"role":"user","content":[{"type":"image_url","image_url":{"url":"data:image/png;base64,iVBOR"}}]}]}`,
			vision: true,
		},
		{
			name:   "vision with detail",
			body:   `{"messages":[{"role":"user","content":[{"type":"image_url","image_url":{"url":"https://x/y.png","detail":"low"}}]}]}`,
			vision: true,
		},
		{
			name:        "malformed json",
			body:        `{not json`,
			expectedErr: internalapi.ErrInvalidRequestBody,
		},
		{
			name:        "empty messages",
			body:        `{"messages":[]}`,
			expectedErr: internalapi.ErrMissingRequiredField,
		},
		{
			name:        "no supported role",
			body:        `{"messages":[{"role":"robot","content":"Hi"}]}`,
			expectedErr: internalapi.ErrInvalidRequestBody,
		},
		{
			name:        "two images rejected",
			body:        `{"messages":[{"role":"user","content":[{"type":"image_url","image_url":{"url":"https://a/1.png"}},{"type":"image_url","image_url":{"url":"https://a/2.png"}}]}]}`,
			expectedErr: internalapi.ErrInvalidImageData,
		},
		{
			name:        "vision plus stream rejected",
			body:        `{"messages":[{"role":"user","content":[{"type":"image_url","image_url":{"url":"https://a/1.png"}}]},{"role":"user","content":"describe"}],"stream":true}`,
			expectedErr: internalapi.ErrVisionStreaming,
		},
		{
			name:        "data url without mime",
			body:        `{"messages":[{"role":"user","content":[{"type":"image_url","image_url":{"url":"data:;base64,iVBOR"}}]}]}`,
			expectedErr: internalapi.ErrInvalidImageURL,
		},
		{
			name:        "data url without base64 marker",
			body:        `{"messages":[{"role":"user","content":[{"type":"image_url","image_url":{"url":"data:image/png,plain"}}]}]}`,
			expectedErr: internalapi.ErrInvalidImageURL,
		},
		{
			name:        "unsupported url scheme",
			body:        `{"messages":[{"role":"user","content":[{"type":"image_url","image_url":{"url":"ftp://host/cat.png"}}]}]}`,
			expectedErr: internalapi.ErrInvalidImageURL,
		},
		{
			name:        "missing image url object",
			body:        `{"messages":[{"role":"user","content":[{"type":"image_url"}]}]}`,
			expectedErr: internalapi.ErrInvalidImageURL,
		},
		{
			name:        "bad detail value",
			body:        `{"messages":[{"role":"user","content":[{"type":"image_url","image_url":{"url":"https://x/y.png","detail":"ultra"}}]}]}`,
			expectedErr: internalapi.ErrInvalidImageDetail,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, vision, stream, err := spec.ParseBody([]byte(tt.body))
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, req)
			require.Equal(t, tt.vision, vision)
			require.Equal(t, tt.stream, stream)
		})
	}
}

// The multi-image rejection must carry Azure's message byte for byte.
func TestMultipleImagesExactMessage(t *testing.T) {
	spec := ChatCompletionsEndpointSpec{}
	body := `{"messages":[{"role":"user","content":[{"type":"image_url","image_url":{"url":"https://a/1.png"}},{"type":"image_url","image_url":{"url":"https://a/2.png"}}]}]}`
	_, _, _, err := spec.ParseBody([]byte(body))
	require.EqualError(t, err, "Invalid image data.")
}

func TestCompletionsParseBody(t *testing.T) {
	spec := CompletionsEndpointSpec{}

	req, stream, err := spec.ParseBody([]byte(`{"prompt":"Once upon a time","max_tokens":5}`))
	require.NoError(t, err)
	require.False(t, stream)
	require.Equal(t, "Once upon a time", req.Prompt)

	_, stream, err = spec.ParseBody([]byte(`{"prompt":"p","stream":true}`))
	require.NoError(t, err)
	require.True(t, stream)

	_, _, err = spec.ParseBody([]byte(`{}`))
	require.ErrorIs(t, err, internalapi.ErrMissingRequiredField)

	_, _, err = spec.ParseBody([]byte(`{bad`))
	require.ErrorIs(t, err, internalapi.ErrInvalidRequestBody)
}

func TestEmbeddingsParseBody(t *testing.T) {
	spec := EmbeddingsEndpointSpec{}

	tests := []struct {
		name        string
		body        string
		expectedErr error
	}{
		{name: "string input", body: `{"input":"hello"}`},
		{name: "string array input", body: `{"input":["a","b"]}`},
		{name: "empty string", body: `{"input":""}`, expectedErr: internalapi.ErrInvalidParameterValue},
		{name: "empty array", body: `{"input":[]}`, expectedErr: internalapi.ErrInvalidParameterValue},
		{name: "empty string in array", body: `{"input":["a",""]}`, expectedErr: internalapi.ErrInvalidParameterValue},
		{name: "missing input", body: `{}`, expectedErr: internalapi.ErrMissingRequiredField},
		{name: "malformed", body: `{`, expectedErr: internalapi.ErrInvalidRequestBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := spec.ParseBody([]byte(tt.body))
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestImageGenerationParseBody(t *testing.T) {
	spec := ImageGenerationEndpointSpec{}

	tests := []struct {
		name        string
		body        string
		expectedErr error
	}{
		{name: "minimal", body: `{"prompt":"a fox"}`},
		{name: "all params valid", body: `{"prompt":"a fox","n":2,"size":"1792x1024","quality":"hd","response_format":"b64_json"}`},
		{name: "missing prompt", body: `{}`, expectedErr: internalapi.ErrMissingRequiredField},
		{name: "n too small", body: `{"prompt":"p","n":0}`, expectedErr: internalapi.ErrInvalidParameterValue},
		{name: "n too large", body: `{"prompt":"p","n":11}`, expectedErr: internalapi.ErrInvalidParameterValue},
		{name: "bad size", body: `{"prompt":"p","size":"512x512"}`, expectedErr: internalapi.ErrInvalidParameterValue},
		{name: "bad quality", body: `{"prompt":"p","quality":"ultra"}`, expectedErr: internalapi.ErrInvalidParameterValue},
		{name: "bad response format", body: `{"prompt":"p","response_format":"jpeg"}`, expectedErr: internalapi.ErrInvalidParameterValue},
		{name: "malformed", body: `{`, expectedErr: internalapi.ErrInvalidRequestBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := spec.ParseBody([]byte(tt.body))
			if tt.expectedErr != nil {
				require.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestUpstreamPaths(t *testing.T) {
	require.Equal(t, "/chatgpt/v1/completions", ChatCompletionsEndpointSpec{}.UpstreamPath())
	require.Equal(t, "/chatgpt/v1/completions", CompletionsEndpointSpec{}.UpstreamPath())
	require.Equal(t, "/ai/v1/embeddings", EmbeddingsEndpointSpec{}.UpstreamPath())
	require.Equal(t, "/ai/v1/images/generations", ImageGenerationEndpointSpec{}.UpstreamPath())
}
