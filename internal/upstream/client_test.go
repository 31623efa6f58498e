// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package upstream

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPostJSON(t *testing.T) {
	var gotPath, gotAPIKey, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAPIKey = r.Header.Get("api-key")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("x-ratelimit-remaining-requests", "99")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/", APIKey: "secret"})
	status, body, header, err := client.PostJSON(t.Context(), "/chatgpt/v1/completions", []byte(`{"model":"m"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `{"ok":true}`, string(body))
	require.Equal(t, "99", header.Get("x-ratelimit-remaining-requests"))
	require.Equal(t, "/chatgpt/v1/completions", gotPath)
	require.Equal(t, "secret", gotAPIKey)
	require.Equal(t, "application/json", gotContentType)
	require.JSONEq(t, `{"model":"m"}`, string(gotBody))
}

func TestPostJSONNon2xxPassedThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "k"})
	status, body, _, err := client.PostJSON(t.Context(), "/p", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Contains(t, string(body), "slow down")
}

func TestPostJSONUnreachable(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1", APIKey: "k"})
	_, _, _, err := client.PostJSON(t.Context(), "/p", nil)
	require.ErrorIs(t, err, ErrUnreachable)
}

func TestPostJSONDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "k"})
	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	_, _, _, err := client.PostJSON(ctx, "/p", nil)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestPostStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "text/event-stream; charset=utf-8", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("data: one\n\n"))
		flusher.Flush()
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
		flusher.Flush()
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "k", StreamIdleTimeout: time.Second})
	sr, err := client.PostStream(t.Context(), "/p", []byte(`{}`))
	require.NoError(t, err)
	defer func() { _ = sr.Close() }()
	require.Equal(t, http.StatusOK, sr.StatusCode)

	body, err := io.ReadAll(sr.Body)
	require.NoError(t, err)
	require.Equal(t, "data: one\n\ndata: [DONE]\n\n", string(body))
}

func TestPostStreamIdleTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte("data: one\n\n"))
		flusher.Flush()
		// Go silent until the watchdog fires.
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "k", StreamIdleTimeout: 100 * time.Millisecond})
	sr, err := client.PostStream(t.Context(), "/p", nil)
	require.NoError(t, err)
	defer func() { _ = sr.Close() }()

	buf := make([]byte, 64)
	n, err := sr.Body.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "data: one\n\n", string(buf[:n]))

	_, err = sr.Body.Read(buf)
	require.ErrorIs(t, err, ErrTimeout)
}
