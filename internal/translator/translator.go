// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package translator converts between the Azure OpenAI wire shapes the proxy
// exposes and the upstream custom API's Chat-Completions-like dialect. Each
// endpoint has its own translator; streaming chat additionally has a chunk
// rewrapper driven by the SSE scanner.
package translator

import (
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/sjson"

	"github.com/proxyapi/azure-openai-proxy/internal/apischema/azure"
)

// Object values on the Azure surface.
const (
	objectChatCompletion      = "chat.completion"
	objectChatCompletionChunk = "chat.completion.chunk"
	objectTextCompletion      = "text_completion"
	objectList                = "list"
)

// azureVendorKeyPrefix marks request keys private to the Azure surface that
// must not leak to the upstream. All other unknown keys pass through.
const azureVendorKeyPrefix = "azure_"

// Note: it is safe to do in-place replacement since each translator is
// executed once per request and the raw body is not shared.
var sjsonOptions = &sjson.Options{Optimistic: true, ReplaceInPlace: true}

// newChatCompletionID returns a fresh Azure-style chat completion id,
// generated when the upstream does not provide one.
func newChatCompletionID() string {
	return "chatcmpl-" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// scaffoldUsage fills in the *_details objects that Azure emits
// unconditionally even when the upstream omits them.
func scaffoldUsage(u *azure.ChatCompletionResponseUsage) *azure.ChatCompletionResponseUsage {
	if u == nil {
		u = &azure.ChatCompletionResponseUsage{}
	}
	if u.CompletionTokensDetails == nil {
		u.CompletionTokensDetails = &azure.CompletionTokensDetails{}
	}
	if u.PromptTokensDetails == nil {
		u.PromptTokensDetails = &azure.PromptTokensDetails{}
	}
	return u
}

func ptrTo[T any](v T) *T {
	return &v
}
