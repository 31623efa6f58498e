// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package version contains the version of the proxy, set at build time
// via -ldflags "-X github.com/proxyapi/azure-openai-proxy/internal/version.Version=...".
package version

// Version is the version of the proxy.
var Version = "dev"
