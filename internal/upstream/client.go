// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package upstream implements the HTTP client for the custom upstream API,
// with distinct buffered and streaming call modes over a shared connection
// pool.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/proxyapi/azure-openai-proxy/internal/internalapi"
)

// Sentinel classifications for upstream call failures. The error shaper maps
// ErrUnreachable to 502 and ErrTimeout to 504.
var (
	ErrUnreachable = errors.New("upstream unreachable")
	ErrTimeout     = errors.New("upstream timeout")
)

// DefaultConnectTimeout bounds the TCP+TLS establishment to the upstream.
const DefaultConnectTimeout = 5 * time.Second

// Config carries the immutable upstream connection settings.
type Config struct {
	// BaseURL is the upstream origin, without a trailing slash.
	BaseURL string
	// APIKey is sent as the api-key header on every upstream call. The
	// caller's own credential is never forwarded.
	APIKey string
	// ConnectTimeout bounds connection establishment; zero means
	// DefaultConnectTimeout.
	ConnectTimeout time.Duration
	// StreamIdleTimeout is the maximum gap between two received bytes of a
	// streaming response before the stream is aborted.
	StreamIdleTimeout time.Duration
}

// Client issues calls to the upstream API. It is safe for concurrent use;
// the underlying transport pools connections across requests.
type Client struct {
	baseURL           string
	apiKey            string
	httpClient        *http.Client
	streamIdleTimeout time.Duration
}

// NewClient builds the upstream client. Total deadlines come from the
// request context, not from the http.Client, so buffered and streaming calls
// share one client.
func NewClient(cfg Config) *Client {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = DefaultConnectTimeout
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: connectTimeout,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		baseURL:           strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:            cfg.APIKey,
		httpClient:        &http.Client{Transport: transport},
		streamIdleTimeout: cfg.StreamIdleTimeout,
	}
}

// PostJSON issues a buffered POST and returns the status, the full body and
// the response headers. Non-2xx statuses are returned for the caller to shape,
// not as errors; errors mean the exchange itself failed.
func (c *Client) PostJSON(ctx context.Context, path string, body []byte) (int, []byte, http.Header, error) {
	resp, err := c.postAccept(ctx, path, body, internalapi.JSONContentType)
	if err != nil {
		return 0, nil, nil, classify(err)
	}
	defer func() { _ = resp.Body.Close() }()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, classify(fmt.Errorf("failed to read upstream response body: %w", err))
	}
	return resp.StatusCode, respBody, resp.Header, nil
}

// StreamResponse is an open streaming exchange. Body reads are guarded by the
// idle watchdog; the caller must Close it.
type StreamResponse struct {
	// StatusCode is the upstream status; on non-2xx the body holds the
	// upstream error payload, fully readable despite the watchdog.
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser

	cancel context.CancelFunc
}

// Close releases the upstream connection.
func (s *StreamResponse) Close() error {
	s.cancel()
	return s.Body.Close()
}

// PostStream issues a streaming POST. The returned body terminates with
// ErrTimeout when the upstream goes silent for longer than the configured
// idle timeout.
func (c *Client) PostStream(ctx context.Context, path string, body []byte) (*StreamResponse, error) {
	ctx, cancel := context.WithCancel(ctx)
	resp, err := c.postAccept(ctx, path, body, internalapi.EventStreamContentType)
	if err != nil {
		cancel()
		return nil, classify(err)
	}
	sr := &StreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		cancel:     cancel,
	}
	if c.streamIdleTimeout > 0 {
		sr.Body = newWatchdogBody(resp.Body, c.streamIdleTimeout, cancel)
	} else {
		sr.Body = resp.Body
	}
	return sr, nil
}

func (c *Client) postAccept(ctx context.Context, path string, body []byte, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set(internalapi.ContentTypeHeaderName, internalapi.JSONContentType)
	req.Header.Set("Accept", accept)
	req.Header.Set(internalapi.APIKeyHeaderName, c.apiKey)
	return c.httpClient.Do(req)
}

// classify folds transport-level failures into the two sentinel classes the
// error shaper distinguishes: timeouts and everything unreachable.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) || isNetTimeout(err):
		return fmt.Errorf("%w: %s", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
}

func isNetTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// watchdogBody cancels the upstream call when no bytes arrive for the idle
// window. Cancellation surfaces to the reader as ErrTimeout.
type watchdogBody struct {
	inner   io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	cancel  context.CancelFunc

	mu    sync.Mutex
	fired bool
}

func newWatchdogBody(inner io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) *watchdogBody {
	w := &watchdogBody{inner: inner, timeout: timeout, cancel: cancel}
	w.timer = time.AfterFunc(timeout, w.expire)
	return w
}

func (w *watchdogBody) expire() {
	w.mu.Lock()
	w.fired = true
	w.mu.Unlock()
	w.cancel()
}

func (w *watchdogBody) Read(p []byte) (int, error) {
	n, err := w.inner.Read(p)
	w.mu.Lock()
	fired := w.fired
	if !fired && err == nil {
		w.timer.Reset(w.timeout)
	}
	w.mu.Unlock()
	if err != nil && fired {
		return n, fmt.Errorf("%w: no bytes received for %s", ErrTimeout, w.timeout)
	}
	return n, err
}

func (w *watchdogBody) Close() error {
	w.timer.Stop()
	return w.inner.Close()
}
