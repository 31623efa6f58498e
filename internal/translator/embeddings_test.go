// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestEmbeddingRequestBody(t *testing.T) {
	tr := NewEmbedding("embed-dep")

	t.Run("model filled in when absent", func(t *testing.T) {
		newBody, err := tr.RequestBody([]byte(`{"input":"hello"}`), nil)
		require.NoError(t, err)
		require.Equal(t, "embed-dep", gjson.GetBytes(newBody, "model").String())
	})

	t.Run("client model preserved", func(t *testing.T) {
		newBody, err := tr.RequestBody([]byte(`{"input":"hello","model":"text-embedding-3-small"}`), nil)
		require.NoError(t, err)
		require.Equal(t, "text-embedding-3-small", gjson.GetBytes(newBody, "model").String())
	})
}

func TestEmbeddingResponseBody(t *testing.T) {
	tr := NewEmbedding("embed-dep")

	t.Run("passthrough with usage", func(t *testing.T) {
		body := `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2]}],"usage":{"prompt_tokens":2,"total_tokens":2}}`
		newBody, usage, err := tr.ResponseBody([]byte(body))
		require.NoError(t, err)
		require.Equal(t, int64(2), usage.TotalTokens)
		require.Equal(t, 0.1, gjson.GetBytes(newBody, "data.0.embedding.0").Float())
	})

	t.Run("object and data normalized", func(t *testing.T) {
		newBody, usage, err := tr.ResponseBody([]byte(`{}`))
		require.NoError(t, err)
		require.Nil(t, usage)
		require.Equal(t, "list", gjson.GetBytes(newBody, "object").String())
		require.True(t, gjson.GetBytes(newBody, "data").IsArray())
	})
}

func TestImageGenerationTranslator(t *testing.T) {
	tr := NewImageGeneration("dall-e-3")

	newBody, err := tr.RequestBody([]byte(`{"prompt":"a fox","model":"whatever"}`), nil)
	require.NoError(t, err)
	require.Equal(t, "dall-e-3", gjson.GetBytes(newBody, "model").String())

	t.Run("object and data normalized", func(t *testing.T) {
		respBody, err := tr.ResponseBody([]byte(`{"created":1}`))
		require.NoError(t, err)
		require.Equal(t, "list", gjson.GetBytes(respBody, "object").String())
		require.True(t, gjson.GetBytes(respBody, "data").IsArray())
	})

	t.Run("data and object passthrough", func(t *testing.T) {
		respBody, err := tr.ResponseBody([]byte(`{"created":1,"object":"image.list","data":[{"url":"https://img"}]}`))
		require.NoError(t, err)
		require.Equal(t, "image.list", gjson.GetBytes(respBody, "object").String())
		require.Equal(t, "https://img", gjson.GetBytes(respBody, "data.0.url").String())
	})
}
