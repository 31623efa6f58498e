// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package internalapi houses the small shared types and constants that cross
// package boundaries inside the proxy but are not part of any wire schema.
package internalapi

type (
	// Deployment is the Azure deployment name extracted from the request path.
	// It doubles as the upstream model name in transformed request bodies.
	Deployment = string
	// RequestModel is the model name carried in the client request body, which
	// may differ from the deployment name.
	RequestModel = string
	// ResponseModel is the model name the upstream reports in its responses,
	// e.g. "gpt-4.1-2025-04-14" for a "gpt-4.1" deployment.
	ResponseModel = string
)

// Canonical header names used across the proxy.
const (
	APIKeyHeaderName        = "api-key"
	AuthorizationHeaderName = "Authorization"
	ContentTypeHeaderName   = "Content-Type"
	DeploymentHeaderName    = "x-ms-deployment-name"
	RegionHeaderName        = "x-ms-region"
	RequestIDHeaderName     = "apim-request-id"
	ModelSessionHeaderName  = "azureml-model-session"
	JSONContentType         = "application/json"
	EventStreamContentType  = "text/event-stream; charset=utf-8"
)

// RateLimitHeaderNames is the Azure rate-limit header family copied verbatim
// from the upstream response when present.
var RateLimitHeaderNames = []string{
	"x-ratelimit-limit-requests",
	"x-ratelimit-remaining-requests",
	"x-ratelimit-limit-tokens",
	"x-ratelimit-remaining-tokens",
}
