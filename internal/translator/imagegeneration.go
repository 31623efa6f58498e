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

// NewImageGeneration returns the translator for the image generations
// surface, a passthrough with the model substituted by the deployment.
func NewImageGeneration(deployment internalapi.Deployment) *ImageGeneration {
	return &ImageGeneration{deployment: deployment}
}

// ImageGeneration translates a single image generations exchange.
type ImageGeneration struct {
	deployment internalapi.Deployment
}

// RequestBody passes the body through with the deployment substituted as the
// model.
func (t *ImageGeneration) RequestBody(original []byte, _ *azure.ImageGenerationRequest) ([]byte, error) {
	newBody, err := sjson.SetBytesOptions(original, "model", t.deployment, sjsonOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to set model name: %w", err)
	}
	return newBody, nil
}

// ResponseBody passes the upstream body through with minimal normalization:
// the object field is added when absent and data is guaranteed to be an
// array.
func (t *ImageGeneration) ResponseBody(body []byte) (newBody []byte, err error) {
	newBody = body
	if !gjson.GetBytes(newBody, "object").Exists() {
		if newBody, err = sjson.SetBytes(newBody, "object", objectList); err != nil {
			return nil, fmt.Errorf("failed to set object: %w", err)
		}
	}
	if !gjson.GetBytes(newBody, "data").IsArray() {
		if newBody, err = sjson.SetRawBytes(newBody, "data", []byte("[]")); err != nil {
			return nil, fmt.Errorf("failed to set data: %w", err)
		}
	}
	return newBody, nil
}
