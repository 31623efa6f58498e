// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package proxy

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/proxyapi/azure-openai-proxy/internal/internalapi"
)

// synthesizeHeaders stamps the Azure-observed response headers onto a 2xx
// response: deployment name, region tag, per-request identifiers and, when
// the upstream supplied them, the rate-limit family.
func (s *Server) synthesizeHeaders(h http.Header, deployment internalapi.Deployment, streaming bool, upstream http.Header) {
	if streaming {
		h.Set(internalapi.ContentTypeHeaderName, internalapi.EventStreamContentType)
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
	} else {
		h.Set(internalapi.ContentTypeHeaderName, internalapi.JSONContentType)
	}
	h.Set(internalapi.DeploymentHeaderName, deployment)
	h.Set(internalapi.RegionHeaderName, s.cfg.Region)
	h.Set(internalapi.RequestIDHeaderName, uuid.NewString())
	h.Set(internalapi.ModelSessionHeaderName, newSessionToken())
	copyRateLimitHeaders(h, upstream)
}

// copyRateLimitHeaders forwards the upstream's rate-limit family verbatim;
// headers the upstream omitted stay omitted.
func copyRateLimitHeaders(dst, src http.Header) {
	if src == nil {
		return
	}
	for _, name := range internalapi.RateLimitHeaderNames {
		if v := src.Get(name); v != "" {
			dst.Set(name, v)
		}
	}
}

func newSessionToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
