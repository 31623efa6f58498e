// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/proxyapi/azure-openai-proxy/internal/apischema/azure"
)

func getHistogramValue(t *testing.T, metric *prometheus.HistogramVec, labels map[string]string) (float64, uint64) {
	t.Helper()
	m, err := metric.GetMetricWith(labels)
	require.NoError(t, err)

	metricpb := &dto.Metric{}
	require.NoError(t, m.(prometheus.Metric).Write(metricpb))
	return metricpb.Histogram.GetSampleSum(), metricpb.Histogram.GetSampleCount()
}

func TestRecordRequest(t *testing.T) {
	m := New()
	m.RecordRequest(OperationChat, "dep-1", "gpt-4o-mini", "", 500*time.Millisecond)
	m.RecordRequest(OperationChat, "dep-1", "", "BadGateway", 250*time.Millisecond)

	sum, count := getHistogramValue(t, m.requestLatency, map[string]string{
		"gen_ai.operation.name": OperationChat,
		"gen_ai.system":         genAISystem,
		"gen_ai.request.model":  "dep-1",
		"gen_ai.response.model": "gpt-4o-mini",
		"error.type":            "",
	})
	require.Equal(t, 0.5, sum)
	require.Equal(t, uint64(1), count)

	_, count = getHistogramValue(t, m.requestLatency, map[string]string{
		"gen_ai.operation.name": OperationChat,
		"gen_ai.system":         genAISystem,
		"gen_ai.request.model":  "dep-1",
		"gen_ai.response.model": "",
		"error.type":            "BadGateway",
	})
	require.Equal(t, uint64(1), count)
}

func TestRecordTokenUsage(t *testing.T) {
	m := New()
	m.RecordTokenUsage(OperationChat, "dep-1", "gpt-4o-mini", &azure.ChatCompletionResponseUsage{
		PromptTokens:     3,
		CompletionTokens: 4,
		TotalTokens:      7,
	})

	for tokenType, expected := range map[string]float64{
		"input":  3,
		"output": 4,
		"total":  7,
	} {
		sum, count := getHistogramValue(t, m.tokenUsage, map[string]string{
			"gen_ai.operation.name": OperationChat,
			"gen_ai.system":         genAISystem,
			"gen_ai.token.type":     tokenType,
			"gen_ai.request.model":  "dep-1",
			"gen_ai.response.model": "gpt-4o-mini",
		})
		require.Equal(t, expected, sum, tokenType)
		require.Equal(t, uint64(1), count, tokenType)
	}

	// Nil usage is a no-op, not a panic.
	m.RecordTokenUsage(OperationChat, "dep-1", "gpt-4o-mini", nil)
}

func TestRecordFirstToken(t *testing.T) {
	m := New()
	m.RecordFirstToken(OperationChat, "dep-1", "gpt-4o-mini", 40*time.Millisecond)
	sum, count := getHistogramValue(t, m.firstTokenLatency, map[string]string{
		"gen_ai.operation.name": OperationChat,
		"gen_ai.system":         genAISystem,
		"gen_ai.request.model":  "dep-1",
		"gen_ai.response.model": "gpt-4o-mini",
	})
	require.Equal(t, 0.04, sum)
	require.Equal(t, uint64(1), count)
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "go_goroutines")
}
