// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package translator

import (
	"cmp"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/proxyapi/azure-openai-proxy/internal/apischema/azure"
	"github.com/proxyapi/azure-openai-proxy/internal/internalapi"
)

// NewChatCompletion returns the translator for the chat completions surface
// (text and vision alike; vision-specific validation happens before the
// translator runs).
func NewChatCompletion(deployment internalapi.Deployment, systemFingerprint string) *ChatCompletion {
	return &ChatCompletion{deployment: deployment, systemFingerprint: systemFingerprint}
}

// ChatCompletion translates a single chat completions exchange. The request
// side is a passthrough with the model field replaced by the deployment name;
// the response side rewraps the upstream result into the Azure envelope.
type ChatCompletion struct {
	deployment        internalapi.Deployment
	systemFingerprint string
	// requestModel serves as a diagnostic fallback; the Azure response model
	// falls back to the deployment name, not to it.
	requestModel internalapi.RequestModel
	stream       bool
}

// RequestBody produces the upstream request body from the raw Azure body.
// Messages and generation parameters are preserved verbatim; the model field
// is set to the deployment name and Azure-prefixed vendor keys are dropped.
func (t *ChatCompletion) RequestBody(original []byte, req *azure.ChatCompletionRequest) ([]byte, error) {
	t.requestModel = req.Model
	t.stream = req.Stream

	newBody, err := sjson.SetBytesOptions(original, "model", t.deployment, sjsonOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to set model name: %w", err)
	}

	var vendorKeys []string
	gjson.ParseBytes(newBody).ForEach(func(key, _ gjson.Result) bool {
		if strings.HasPrefix(key.String(), azureVendorKeyPrefix) {
			vendorKeys = append(vendorKeys, key.String())
		}
		return true
	})
	for _, key := range vendorKeys {
		newBody, err = sjson.DeleteBytes(newBody, key)
		if err != nil {
			return nil, fmt.Errorf("failed to drop vendor key %q: %w", key, err)
		}
	}
	return newBody, nil
}

// ResponseBody rewraps the buffered upstream response into the Azure shape,
// synthesizing the fields Azure emits unconditionally: choice scaffolding,
// usage details, system fingerprint and prompt filter results.
func (t *ChatCompletion) ResponseBody(body []byte) (newBody []byte, usage *azure.ChatCompletionResponseUsage, responseModel internalapi.ResponseModel, err error) {
	resp := &azure.ChatCompletionResponse{}
	if err = json.Unmarshal(body, resp); err != nil {
		return nil, nil, "", fmt.Errorf("failed to unmarshal upstream response: %w", err)
	}

	if resp.ID == "" {
		resp.ID = newChatCompletionID()
	}
	resp.Object = objectChatCompletion
	if resp.Created == 0 {
		resp.Created = time.Now().Unix()
	}
	// The deployment name is the fallback, preserving the deployment-vs-model
	// distinction: the true model name only appears when the upstream
	// reports one.
	responseModel = cmp.Or(resp.Model, t.deployment)
	resp.Model = responseModel

	for i := range resp.Choices {
		c := &resp.Choices[i]
		if c.Message.Annotations == nil {
			c.Message.Annotations = []json.RawMessage{}
		}
		if len(c.Logprobs) == 0 {
			c.Logprobs = azure.NullJSON
		}
		if c.ContentFilterResults == nil {
			c.ContentFilterResults = azure.SafeContentFilterResults()
		}
	}

	resp.Usage = scaffoldUsage(resp.Usage)
	usage = resp.Usage
	if resp.SystemFingerprint == "" {
		resp.SystemFingerprint = t.systemFingerprint
	}
	if resp.PromptFilterResults == nil {
		resp.PromptFilterResults = azure.SafePromptFilterResults()
	}

	newBody, err = json.Marshal(resp)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to marshal response: %w", err)
	}
	return newBody, usage, responseModel, nil
}

// Stream reports whether the translated request asked for streaming.
func (t *ChatCompletion) Stream() bool {
	return t.stream
}
