// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/proxyapi/azure-openai-proxy/internal/apischema/azure"
	"github.com/proxyapi/azure-openai-proxy/internal/endpointspec"
	"github.com/proxyapi/azure-openai-proxy/internal/internalapi"
	"github.com/proxyapi/azure-openai-proxy/internal/metrics"
	"github.com/proxyapi/azure-openai-proxy/internal/sse"
	"github.com/proxyapi/azure-openai-proxy/internal/translator"
	"github.com/proxyapi/azure-openai-proxy/internal/upstream"
)

// bufferedTransform is the shape shared by all buffered response translators:
// the rewrapped body, the usage for metrics, and the model the response
// reports.
type bufferedTransform func(body []byte) ([]byte, *azure.ChatCompletionResponseUsage, internalapi.ResponseModel, error)

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	deployment := r.PathValue("deployment")
	s.logRequest(r, deployment)
	start := time.Now()
	responseModel, errType := "", ""
	defer func() {
		s.metrics.RecordRequest(metrics.OperationChat, deployment, responseModel, errType, time.Since(start))
	}()

	body, ok := s.readBody(w, r, &errType)
	if !ok {
		return
	}
	spec := endpointspec.ChatCompletionsEndpointSpec{}
	req, _, stream, err := spec.ParseBody(body)
	if err != nil {
		errType = errorCodeOf(err)
		s.shapeError(w, err)
		return
	}
	t := translator.NewChatCompletion(deployment, s.cfg.SystemFingerprint)
	upBody, err := t.RequestBody(body, req)
	if err != nil {
		errType = errorCodeOf(err)
		s.shapeError(w, err)
		return
	}
	if stream {
		s.serveChatStream(w, r, metrics.OperationChat, deployment, spec.UpstreamPath(), upBody, &responseModel, &errType)
		return
	}
	s.serveBuffered(w, r, metrics.OperationChat, deployment, spec.UpstreamPath(), upBody, t.ResponseBody, &responseModel, &errType)
}

func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	deployment := r.PathValue("deployment")
	s.logRequest(r, deployment)
	start := time.Now()
	responseModel, errType := "", ""
	defer func() {
		s.metrics.RecordRequest(metrics.OperationTextCompletion, deployment, responseModel, errType, time.Since(start))
	}()

	body, ok := s.readBody(w, r, &errType)
	if !ok {
		return
	}
	spec := endpointspec.CompletionsEndpointSpec{}
	req, stream, err := spec.ParseBody(body)
	if err != nil {
		errType = errorCodeOf(err)
		s.shapeError(w, err)
		return
	}
	t := translator.NewCompletion(deployment, s.cfg.SystemFingerprint)
	upBody, err := t.RequestBody(req)
	if err != nil {
		errType = errorCodeOf(err)
		s.shapeError(w, err)
		return
	}
	if stream {
		// Legacy streaming rides the chat bridge: the upstream only speaks
		// chat-shaped chunks, so the stream surface is chat.completion.chunk.
		s.serveChatStream(w, r, metrics.OperationTextCompletion, deployment, spec.UpstreamPath(), upBody, &responseModel, &errType)
		return
	}
	s.serveBuffered(w, r, metrics.OperationTextCompletion, deployment, spec.UpstreamPath(), upBody, t.ResponseBody, &responseModel, &errType)
}

func (s *Server) handleEmbeddings(w http.ResponseWriter, r *http.Request) {
	deployment := r.PathValue("deployment")
	s.logRequest(r, deployment)
	start := time.Now()
	responseModel, errType := "", ""
	defer func() {
		s.metrics.RecordRequest(metrics.OperationEmbeddings, deployment, responseModel, errType, time.Since(start))
	}()

	body, ok := s.readBody(w, r, &errType)
	if !ok {
		return
	}
	spec := endpointspec.EmbeddingsEndpointSpec{}
	req, err := spec.ParseBody(body)
	if err != nil {
		errType = errorCodeOf(err)
		s.shapeError(w, err)
		return
	}
	t := translator.NewEmbedding(deployment)
	upBody, err := t.RequestBody(body, req)
	if err != nil {
		errType = errorCodeOf(err)
		s.shapeError(w, err)
		return
	}
	transform := func(b []byte) ([]byte, *azure.ChatCompletionResponseUsage, internalapi.ResponseModel, error) {
		newBody, usage, terr := t.ResponseBody(b)
		return newBody, usage, deployment, terr
	}
	s.serveBuffered(w, r, metrics.OperationEmbeddings, deployment, spec.UpstreamPath(), upBody, transform, &responseModel, &errType)
}

func (s *Server) handleImageGenerations(w http.ResponseWriter, r *http.Request) {
	deployment := r.PathValue("deployment")
	s.logRequest(r, deployment)
	start := time.Now()
	responseModel, errType := "", ""
	defer func() {
		s.metrics.RecordRequest(metrics.OperationImageGeneration, deployment, responseModel, errType, time.Since(start))
	}()

	body, ok := s.readBody(w, r, &errType)
	if !ok {
		return
	}
	spec := endpointspec.ImageGenerationEndpointSpec{}
	req, err := spec.ParseBody(body)
	if err != nil {
		errType = errorCodeOf(err)
		s.shapeError(w, err)
		return
	}
	t := translator.NewImageGeneration(deployment)
	upBody, err := t.RequestBody(body, req)
	if err != nil {
		errType = errorCodeOf(err)
		s.shapeError(w, err)
		return
	}
	transform := func(b []byte) ([]byte, *azure.ChatCompletionResponseUsage, internalapi.ResponseModel, error) {
		newBody, terr := t.ResponseBody(b)
		return newBody, nil, deployment, terr
	}
	s.serveBuffered(w, r, metrics.OperationImageGeneration, deployment, spec.UpstreamPath(), upBody, transform, &responseModel, &errType)
}

// serveBuffered runs the buffered exchange: dispatch upstream, rewrap the
// result, synthesize headers and write the body in one piece.
func (s *Server) serveBuffered(w http.ResponseWriter, r *http.Request, operation string, deployment internalapi.Deployment, upstreamPath string, upBody []byte, transform bufferedTransform, responseModel, errType *string) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.BufferedTimeout)
	defer cancel()

	status, respBody, upHeader, err := s.upstream.PostJSON(ctx, upstreamPath, upBody)
	if err != nil {
		*errType = errorCodeOf(err)
		s.shapeError(w, err)
		return
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		*errType = statusErrorCode(status)
		s.shapeUpstreamStatus(w, status, respBody, upHeader)
		return
	}
	newBody, usage, model, err := transform(respBody)
	if err != nil {
		*errType = codeInternalServerError
		s.logger.Error("failed to transform upstream response", slog.String("error", err.Error()))
		s.writeError(w, http.StatusInternalServerError, codeInternalServerError,
			"The upstream returned an unparseable response.")
		return
	}
	*responseModel = model
	s.metrics.RecordTokenUsage(operation, deployment, model, usage)
	s.synthesizeHeaders(w.Header(), deployment, false, upHeader)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(newBody)
}

// serveChatStream runs the streaming exchange: dispatch upstream, then a
// single sequential read-transform-write loop over the SSE events, closed by
// exactly one [DONE]. Errors before the first written byte use the buffered
// envelope; after that the stream is finalized in-band.
func (s *Server) serveChatStream(w http.ResponseWriter, r *http.Request, operation string, deployment internalapi.Deployment, upstreamPath string, upBody []byte, responseModel, errType *string) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.StreamTimeout)
	defer cancel()

	sr, err := s.upstream.PostStream(ctx, upstreamPath, upBody)
	if err != nil {
		*errType = errorCodeOf(err)
		s.shapeError(w, err)
		return
	}
	defer func() { _ = sr.Close() }()

	if sr.StatusCode < http.StatusOK || sr.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(io.LimitReader(sr.Body, 64<<10))
		*errType = statusErrorCode(sr.StatusCode)
		s.shapeUpstreamStatus(w, sr.StatusCode, errBody, sr.Header)
		return
	}

	bridge := translator.NewChatCompletionStream(deployment, s.cfg.SystemFingerprint, s.logger)
	sw := newStreamWriter(w, func(h http.Header) {
		s.synthesizeHeaders(h, deployment, true, sr.Header)
	})
	scanner := sse.NewScanner(sr.Body)
	streamStart := time.Now()
	firstChunk := true

	for scanner.Next() {
		event := scanner.Event()
		if sse.IsDone(event) {
			break
		}
		chunks, perr := bridge.Process(event)
		if perr != nil {
			var inStream *translator.InStreamError
			if errors.As(perr, &inStream) {
				*errType = codeInternalServerError
				s.abortStream(w, sw, inStream)
				return
			}
			*errType = errorCodeOf(perr)
			s.shapeError(w, perr)
			return
		}
		for _, chunk := range chunks {
			payload, merr := json.Marshal(chunk)
			if merr != nil {
				continue
			}
			if firstChunk {
				firstChunk = false
				s.metrics.RecordFirstToken(operation, deployment, bridge.ResponseModel(), time.Since(streamStart))
			}
			if werr := sw.WriteEvent(payload); werr != nil {
				// Client gone; nothing left to deliver.
				return
			}
		}
	}

	if serr := scanner.Err(); serr != nil {
		if !sw.Started() {
			*errType = errorCodeOf(wrapStreamReadError(serr))
			s.shapeError(w, wrapStreamReadError(serr))
			return
		}
		// Premature upstream end mid-stream: finalize in-band, never an
		// error envelope once bytes are out.
		s.logger.Warn("upstream stream ended prematurely", slog.String("error", serr.Error()))
	}

	for _, chunk := range bridge.Finalize() {
		payload, merr := json.Marshal(chunk)
		if merr != nil {
			continue
		}
		if werr := sw.WriteEvent(payload); werr != nil {
			return
		}
	}
	_ = sw.WriteDone()
	*responseModel = bridge.ResponseModel()
	s.metrics.RecordTokenUsage(operation, deployment, *responseModel, bridge.Usage())
}

// abortStream reports an upstream in-stream error. Before the first written
// byte this is a buffered envelope; afterwards it is the terminal error frame
// followed by [DONE].
func (s *Server) abortStream(w http.ResponseWriter, sw *streamWriter, inStream *translator.InStreamError) {
	if !sw.Started() {
		s.writeError(w, http.StatusInternalServerError, codeInternalServerError, upstreamErrorMessage(inStream.Raw))
		return
	}
	frame, err := json.Marshal(struct {
		Error json.RawMessage `json:"error"`
	}{Error: inStream.Raw})
	if err == nil {
		_ = sw.WriteEvent(frame)
	}
	_ = sw.WriteDone()
}

// wrapStreamReadError classifies a failed upstream body read. Watchdog and
// deadline expiries already carry the timeout sentinel; anything else means
// the upstream broke the exchange.
func wrapStreamReadError(err error) error {
	if errors.Is(err, upstream.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return upstream.ErrTimeout
	}
	return upstream.ErrUnreachable
}

// statusErrorCode is the metric label for a passed-through upstream status.
func statusErrorCode(status int) string {
	switch status {
	case http.StatusForbidden:
		return codeForbidden
	case http.StatusNotFound:
		return codeNotFound
	case http.StatusTooManyRequests:
		return codeTooManyRequests
	default:
		return codeInternalServerError
	}
}

// readBody enforces the credential and body-size preconditions and returns
// the full request body.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request, errType *string) ([]byte, bool) {
	if !hasCredential(r) {
		*errType = codeUnauthorized
		s.writeError(w, http.StatusUnauthorized, codeUnauthorized,
			"Access denied due to missing subscription key. Pass an api-key header or an Authorization bearer token.")
		return nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			*errType = codeRequestEntityTooLarge
			s.writeError(w, http.StatusRequestEntityTooLarge, codeRequestEntityTooLarge,
				"The request body exceeds the maximum allowed size.")
			return nil, false
		}
		*errType = codeBadRequest
		s.writeError(w, http.StatusBadRequest, codeBadRequest, "Failed to read the request body.")
		return nil, false
	}
	return body, true
}

// hasCredential checks presence only; the proxy authenticates to the
// upstream on its own account and never forwards the caller's credential.
func hasCredential(r *http.Request) bool {
	if r.Header.Get(internalapi.APIKeyHeaderName) != "" {
		return true
	}
	auth := r.Header.Get(internalapi.AuthorizationHeaderName)
	token, ok := strings.CutPrefix(auth, "Bearer ")
	return ok && strings.TrimSpace(token) != ""
}

// logRequest records the request line; api-version is observed here only,
// the proxy is version-agnostic.
func (s *Server) logRequest(r *http.Request, deployment internalapi.Deployment) {
	s.logger.Info("handling request",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("deployment", deployment),
		slog.String("api-version", r.URL.Query().Get("api-version")),
	)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set(internalapi.ContentTypeHeaderName, internalapi.JSONContentType)
	resp := azure.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(resp)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(body)
}

// notFoundResponse is the Azure-shaped 404 envelope extended with the list
// of supported endpoints, matching what the surface advertises for unknown
// routes.
type notFoundResponse struct {
	Error notFoundDetail `json:"error"`
}

type notFoundDetail struct {
	Code               string   `json:"code"`
	Message            string   `json:"message"`
	Param              *string  `json:"param"`
	Type               *string  `json:"type"`
	SupportedEndpoints []string `json:"supported_endpoints"`
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(internalapi.ContentTypeHeaderName, internalapi.JSONContentType)
	w.WriteHeader(http.StatusNotFound)
	resp := notFoundResponse{Error: notFoundDetail{
		Code:               codeNotFound,
		Message:            "Resource not found: " + r.URL.Path,
		SupportedEndpoints: supportedEndpoints,
	}}
	body, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_, _ = w.Write(body)
}
