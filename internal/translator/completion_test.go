// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/proxyapi/azure-openai-proxy/internal/apischema/azure"
)

func TestCompletionRequestBody(t *testing.T) {
	tr := NewCompletion("my-deployment", "fp_custom_proxy")
	req := &azure.CompletionRequest{}
	require.NoError(t, json.Unmarshal([]byte(`{"prompt":"Once upon a time","max_tokens":5}`), req))

	newBody, err := tr.RequestBody(req)
	require.NoError(t, err)

	body := gjson.ParseBytes(newBody)
	require.Equal(t, "my-deployment", body.Get("model").String())
	require.Equal(t, int64(1), body.Get("messages.#").Int())
	require.Equal(t, "user", body.Get("messages.0.role").String())
	require.Equal(t, "Once upon a time", body.Get("messages.0.content").String())
	require.Equal(t, int64(5), body.Get("max_tokens").Int())
	require.False(t, body.Get("prompt").Exists())
}

func TestCompletionRequestBodyPreservesParams(t *testing.T) {
	tr := NewCompletion("dep", "fp")
	req := &azure.CompletionRequest{}
	raw := `{"prompt":"p","temperature":0.2,"top_p":0.9,"frequency_penalty":1,"presence_penalty":-1,"stop":["\n"],"stream":true,"user":"u1"}`
	require.NoError(t, json.Unmarshal([]byte(raw), req))

	newBody, err := tr.RequestBody(req)
	require.NoError(t, err)
	require.True(t, tr.Stream())

	body := gjson.ParseBytes(newBody)
	require.Equal(t, 0.2, body.Get("temperature").Float())
	require.Equal(t, 0.9, body.Get("top_p").Float())
	require.Equal(t, float64(1), body.Get("frequency_penalty").Float())
	require.Equal(t, float64(-1), body.Get("presence_penalty").Float())
	require.True(t, body.Get("stream").Bool())
	require.Equal(t, "u1", body.Get("user").String())
	require.Equal(t, "\n", body.Get("stop.0").String())
}

func TestCompletionResponseBody(t *testing.T) {
	tr := NewCompletion("my-deployment", "fp_custom_proxy")
	upstreamBody := `{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":", there was a fox"},"finish_reason":"stop"}],"usage":{"prompt_tokens":4,"completion_tokens":5,"total_tokens":9}}`

	newBody, usage, responseModel, err := tr.ResponseBody([]byte(upstreamBody))
	require.NoError(t, err)
	require.Equal(t, "my-deployment", responseModel)
	require.Equal(t, int64(9), usage.TotalTokens)

	body := gjson.ParseBytes(newBody)
	require.Equal(t, "text_completion", body.Get("object").String())
	require.Equal(t, ", there was a fox", body.Get("choices.0.text").String())
	require.Equal(t, int64(0), body.Get("choices.0.index").Int())
	require.Equal(t, gjson.Null, body.Get("choices.0.logprobs").Type)
	require.Equal(t, "stop", body.Get("choices.0.finish_reason").String())
	require.True(t, body.Get("usage.completion_tokens_details").IsObject())
	require.Equal(t, "fp_custom_proxy", body.Get("system_fingerprint").String())
}

func TestCompletionResponseBodyNilContent(t *testing.T) {
	tr := NewCompletion("dep", "fp")
	newBody, _, _, err := tr.ResponseBody([]byte(`{"choices":[{"message":{"role":"assistant","content":null},"finish_reason":"stop"}]}`))
	require.NoError(t, err)
	require.Equal(t, "", gjson.GetBytes(newBody, "choices.0.text").String())
}
