// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package proxy

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/proxyapi/azure-openai-proxy/internal/apischema/azure"
	"github.com/proxyapi/azure-openai-proxy/internal/internalapi"
	"github.com/proxyapi/azure-openai-proxy/internal/upstream"
)

// Stable error codes of the Azure error envelope.
const (
	codeBadRequest            = "BadRequest"
	codeUnauthorized          = "Unauthorized"
	codeForbidden             = "Forbidden"
	codeNotFound              = "NotFound"
	codeRequestEntityTooLarge = "RequestEntityTooLarge"
	codeTooManyRequests       = "TooManyRequests"
	codeInternalServerError   = "InternalServerError"
	codeBadGateway            = "BadGateway"
	codeGatewayTimeout        = "GatewayTimeout"
)

const internalErrorMessage = "The proxy encountered an internal error while processing the request."

// writeError writes the Azure error envelope with the given status and
// stable code.
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set(internalapi.ContentTypeHeaderName, internalapi.JSONContentType)
	w.WriteHeader(status)
	body, err := json.Marshal(azure.NewError(code, message))
	if err != nil {
		s.logger.Error("failed to marshal error envelope", slog.String("error", err.Error()))
		return
	}
	_, _ = w.Write(body)
}

// shapeError maps a proxy-side error to the Azure envelope. Validation
// failures become 400s with their user-facing message; transport failures
// become 502/504; anything else collapses to a stable 500 so internals never
// leak.
func (s *Server) shapeError(w http.ResponseWriter, err error) {
	switch {
	case internalapi.GetUserFacingError(err) != nil:
		s.writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
	case errors.Is(err, upstream.ErrTimeout):
		s.writeError(w, http.StatusGatewayTimeout, codeGatewayTimeout, "The upstream did not respond in time.")
	case errors.Is(err, upstream.ErrUnreachable):
		s.writeError(w, http.StatusBadGateway, codeBadGateway, "The upstream could not be reached.")
	default:
		s.logger.Error("unhandled proxy error", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, codeInternalServerError, internalErrorMessage)
	}
}

// shapeUpstreamStatus maps a non-2xx buffered upstream status onto the Azure
// surface. The 403/404/429 classes pass through; rate-limit headers ride
// along on 429s; everything else collapses to a 500 because the upstream
// contract was broken.
func (s *Server) shapeUpstreamStatus(w http.ResponseWriter, status int, body []byte, upstreamHeader http.Header) {
	message := upstreamErrorMessage(body)
	switch status {
	case http.StatusForbidden:
		s.writeError(w, http.StatusForbidden, codeForbidden, message)
	case http.StatusNotFound:
		s.writeError(w, http.StatusNotFound, codeNotFound, message)
	case http.StatusTooManyRequests:
		copyRateLimitHeaders(w.Header(), upstreamHeader)
		s.writeError(w, http.StatusTooManyRequests, codeTooManyRequests, message)
	default:
		s.logger.Warn("unexpected upstream status",
			slog.Int("status", status), slog.String("message", message))
		s.writeError(w, http.StatusInternalServerError, codeInternalServerError, message)
	}
}

// upstreamErrorMessage extracts a diagnostic message from an upstream error
// body, preserving it verbatim for operators. Falls back to a stable message
// when the body is empty or unrecognizable.
func upstreamErrorMessage(body []byte) string {
	if m := gjson.GetBytes(body, "error.message"); m.Exists() && m.String() != "" {
		return m.String()
	}
	if m := gjson.GetBytes(body, "message"); m.Exists() && m.String() != "" {
		return m.String()
	}
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" && len(trimmed) <= 2048 {
		return trimmed
	}
	return "The upstream returned an error."
}

// errorCodeOf returns the metric label for a shaped error; the empty string
// means success.
func errorCodeOf(err error) string {
	switch {
	case err == nil:
		return ""
	case internalapi.GetUserFacingError(err) != nil:
		return codeBadRequest
	case errors.Is(err, upstream.ErrTimeout):
		return codeGatewayTimeout
	case errors.Is(err, upstream.ErrUnreachable):
		return codeBadGateway
	default:
		return codeInternalServerError
	}
}
