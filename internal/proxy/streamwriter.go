// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package proxy

import (
	"fmt"
	"net/http"

	"github.com/proxyapi/azure-openai-proxy/internal/sse"
)

// streamWriter frames Azure chunks as SSE events on the client connection.
// Headers are written lazily on the first event, so errors detected before
// any byte goes out can still use the buffered envelope path; Started
// reports which side of that line the response is on.
type streamWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	// prepare synthesizes the response headers; runs once before the first
	// event is written.
	prepare func(http.Header)
	started bool
}

func newStreamWriter(w http.ResponseWriter, prepare func(http.Header)) *streamWriter {
	flusher, _ := w.(http.Flusher)
	return &streamWriter{w: w, flusher: flusher, prepare: prepare}
}

// Started reports whether any bytes have been written to the client.
func (sw *streamWriter) Started() bool {
	return sw.started
}

// WriteEvent writes one data frame and flushes it so the client observes
// chunks as they arrive.
func (sw *streamWriter) WriteEvent(payload []byte) error {
	if !sw.started {
		sw.prepare(sw.w.Header())
		sw.w.WriteHeader(http.StatusOK)
		sw.started = true
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// WriteDone terminates the stream with the single [DONE] sentinel.
func (sw *streamWriter) WriteDone() error {
	return sw.WriteEvent(sse.DoneSentinel)
}
