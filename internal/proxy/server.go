// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package proxy implements the Azure-shaped HTTP surface: route demux,
// request validation, translation to the upstream API, the buffered and
// streaming response paths, header synthesis and error shaping.
package proxy

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/proxyapi/azure-openai-proxy/internal/metrics"
	"github.com/proxyapi/azure-openai-proxy/internal/upstream"
)

// routePrefix anchors the Azure-shaped deployment routes.
const routePrefix = "/proxyapi/azurecom/openai/deployments/"

// supportedEndpoints is advertised in the 404 envelope for unknown routes.
var supportedEndpoints = []string{
	routePrefix + "{deployment}/chat/completions",
	routePrefix + "{deployment}/completions",
	routePrefix + "{deployment}/embeddings",
	routePrefix + "{deployment}/images/generations",
}

// Config carries the immutable per-server settings; request handlers only
// read it.
type Config struct {
	// Region is returned in the x-ms-region header.
	Region string
	// SystemFingerprint is the fallback system_fingerprint value.
	SystemFingerprint string
	// MaxBodyBytes bounds the incoming request body.
	MaxBodyBytes int64
	// BufferedTimeout is the total deadline for buffered exchanges.
	BufferedTimeout time.Duration
	// StreamTimeout is the total deadline for streaming exchanges.
	StreamTimeout time.Duration
}

// Server handles the external surface. All fields are set at construction
// and never mutated; handlers run concurrently.
type Server struct {
	cfg      Config
	upstream *upstream.Client
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewServer builds the request handling core.
func NewServer(cfg Config, up *upstream.Client, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{cfg: cfg, upstream: up, metrics: m, logger: logger}
}

// Handler returns the route demultiplexer. Matching is purely structural;
// the body is never consulted for routing.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+routePrefix+"{deployment}/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("POST "+routePrefix+"{deployment}/completions", s.handleCompletions)
	mux.HandleFunc("POST "+routePrefix+"{deployment}/embeddings", s.handleEmbeddings)
	mux.HandleFunc("POST "+routePrefix+"{deployment}/images/generations", s.handleImageGenerations)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	mux.HandleFunc("/", s.handleNotFound)
	return mux
}
