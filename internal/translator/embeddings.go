// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/proxyapi/azure-openai-proxy/internal/apischema/azure"
	"github.com/proxyapi/azure-openai-proxy/internal/internalapi"
)

// NewEmbedding returns the translator for the embeddings surface, a
// passthrough that only fills in the model when the client omitted it.
func NewEmbedding(deployment internalapi.Deployment) *Embedding {
	return &Embedding{deployment: deployment}
}

// Embedding translates a single embeddings exchange.
type Embedding struct {
	deployment internalapi.Deployment
}

// RequestBody passes the body through, substituting the deployment as the
// model only when the client supplied none.
func (t *Embedding) RequestBody(original []byte, _ *azure.EmbeddingRequest) ([]byte, error) {
	if gjson.GetBytes(original, "model").Exists() {
		return original, nil
	}
	newBody, err := sjson.SetBytesOptions(original, "model", t.deployment, sjsonOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to set model name: %w", err)
	}
	return newBody, nil
}

// ResponseBody passes the upstream body through with minimal normalization:
// the object field is added when absent and data is guaranteed to be an
// array.
func (t *Embedding) ResponseBody(body []byte) (newBody []byte, usage *azure.ChatCompletionResponseUsage, err error) {
	newBody = body
	if !gjson.GetBytes(newBody, "object").Exists() {
		if newBody, err = sjson.SetBytes(newBody, "object", objectList); err != nil {
			return nil, nil, fmt.Errorf("failed to set object: %w", err)
		}
	}
	if !gjson.GetBytes(newBody, "data").IsArray() {
		if newBody, err = sjson.SetRawBytes(newBody, "data", []byte("[]")); err != nil {
			return nil, nil, fmt.Errorf("failed to set data: %w", err)
		}
	}
	if u := gjson.GetBytes(newBody, "usage"); u.Exists() {
		usage = scaffoldUsage(&azure.ChatCompletionResponseUsage{
			PromptTokens: u.Get("prompt_tokens").Int(),
			TotalTokens:  u.Get("total_tokens").Int(),
		})
	}
	return newBody, usage, nil
}
