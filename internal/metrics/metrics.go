// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package metrics exposes the proxy's prometheus metrics, following the
// OpenTelemetry gen-ai semantic conventions for names and labels.
// See: https://opentelemetry.io/docs/specs/semconv/gen-ai/gen-ai-metrics/
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/proxyapi/azure-openai-proxy/internal/apischema/azure"
)

// Operation names recorded under the gen_ai.operation.name label.
const (
	OperationChat            = "chat"
	OperationTextCompletion  = "text_completion"
	OperationEmbeddings      = "embeddings"
	OperationImageGeneration = "image_generation"
)

// genAISystem labels every series with the surface the proxy emulates.
const genAISystem = "az.ai.openai"

// Token type label values for the token usage histogram.
const (
	tokenTypeInput  = "input"
	tokenTypeOutput = "output"
	tokenTypeTotal  = "total"
)

// Metrics holds the proxy's prometheus instruments. All methods are safe for
// concurrent use.
type Metrics struct {
	registry *prometheus.Registry
	// tokenUsage counts tokens processed per exchange.
	tokenUsage *prometheus.HistogramVec
	// requestLatency is the total request latency, from receipt of the
	// request to the last byte written to the client.
	requestLatency *prometheus.HistogramVec
	// firstTokenLatency is the time to the first streamed chunk.
	firstTokenLatency *prometheus.HistogramVec
}

// New builds the metric instruments on a private registry that also carries
// the standard process and Go runtime collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: registry,
		tokenUsage: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gen_ai.client.token.usage",
				Help:    "Number of tokens processed.",
				Buckets: []float64{1, 4, 16, 64, 256, 1024, 4096, 16384, 65536, 262144, 1048576},
			},
			[]string{
				"gen_ai.operation.name",
				"gen_ai.system",
				"gen_ai.token.type",
				"gen_ai.request.model",
				"gen_ai.response.model",
			},
		),
		requestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gen_ai.server.request.duration",
				Help:    "Time spent processing request.",
				Buckets: []float64{0.01, 0.02, 0.04, 0.08, 0.16, 0.32, 0.64, 1.28, 2.56, 5.12, 10.24, 20.48, 40.96, 81.92},
			},
			[]string{
				"gen_ai.operation.name",
				"gen_ai.system",
				"gen_ai.request.model",
				"gen_ai.response.model",
				"error.type",
			},
		),
		firstTokenLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gen_ai.server.time_to_first_token",
				Help:    "Time to receive first token in streaming responses.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.04, 0.06, 0.08, 0.1, 0.25, 0.5, 0.75, 1.0, 2.5, 5.0, 7.5, 10.0},
			},
			[]string{
				"gen_ai.operation.name",
				"gen_ai.system",
				"gen_ai.request.model",
				"gen_ai.response.model",
			},
		),
	}
	registry.MustRegister(m.tokenUsage)
	registry.MustRegister(m.requestLatency)
	registry.MustRegister(m.firstTokenLatency)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRequest records one completed exchange. errorType is empty on
// success and a stable error code otherwise.
func (m *Metrics) RecordRequest(operation, deployment, responseModel, errorType string, elapsed time.Duration) {
	m.requestLatency.WithLabelValues(operation, genAISystem, deployment, responseModel, errorType).
		Observe(elapsed.Seconds())
}

// RecordTokenUsage records the usage object of one exchange, one observation
// per token type.
func (m *Metrics) RecordTokenUsage(operation, deployment, responseModel string, usage *azure.ChatCompletionResponseUsage) {
	if usage == nil {
		return
	}
	m.tokenUsage.WithLabelValues(operation, genAISystem, tokenTypeInput, deployment, responseModel).
		Observe(float64(usage.PromptTokens))
	m.tokenUsage.WithLabelValues(operation, genAISystem, tokenTypeOutput, deployment, responseModel).
		Observe(float64(usage.CompletionTokens))
	m.tokenUsage.WithLabelValues(operation, genAISystem, tokenTypeTotal, deployment, responseModel).
		Observe(float64(usage.TotalTokens))
}

// RecordFirstToken records the time to the first streamed chunk.
func (m *Metrics) RecordFirstToken(operation, deployment, responseModel string, elapsed time.Duration) {
	m.firstTokenLatency.WithLabelValues(operation, genAISystem, deployment, responseModel).
		Observe(elapsed.Seconds())
}
