// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

// Package sse implements an incremental Server-Sent Events parser. The
// scanner is byte-oriented: it produces the same event sequence for any
// bytewise splitting of the input, which is what a proxy reading from a
// network peer actually sees.
package sse

import (
	"bytes"
	"io"
)

const readChunkSize = 4096

// Scanner incrementally parses an SSE byte stream into events. An event is
// the concatenation of the payloads of its "data:" lines, joined with "\n"
// per the SSE specification. Comment lines and the event/id/retry fields are
// ignored. Lines may be terminated by LF, CR or CRLF.
type Scanner struct {
	r       io.Reader
	buf     []byte
	readBuf []byte
	// data accumulates the payload of the in-progress event.
	data    []byte
	hasData bool
	event   []byte
	err     error
	eof     bool
}

// NewScanner returns a Scanner reading from r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{r: r, readBuf: make([]byte, readChunkSize)}
}

// Next advances to the next event, blocking on the underlying reader as
// needed. It returns false at end of stream or on a read error; Err
// distinguishes the two. At end of stream, data lines that were terminated
// but never followed by a blank line are flushed as a final event so that a
// peer that closes without the trailing delimiter still yields its payload.
func (s *Scanner) Next() bool {
	for {
		for {
			line, rest, ok := s.nextLine()
			if !ok {
				break
			}
			s.buf = rest
			if s.consumeLine(line) {
				return true
			}
		}
		if s.eof {
			if s.hasData {
				s.event = s.data
				s.data = nil
				s.hasData = false
				return true
			}
			return false
		}
		n, err := s.r.Read(s.readBuf)
		if n > 0 {
			s.buf = append(s.buf, s.readBuf[:n]...)
		}
		if err != nil {
			s.eof = true
			if err != io.EOF {
				s.err = err
			}
		}
	}
}

// Event returns the payload of the event produced by the last successful
// call to Next. The slice is only valid until the next call to Next.
func (s *Scanner) Event() []byte {
	return s.event
}

// Err returns the first non-EOF read error encountered, if any.
func (s *Scanner) Err() error {
	return s.err
}

// nextLine extracts one terminated line from the buffer. A trailing CR with
// no following byte is held back until more input arrives (or EOF), so that
// a CRLF split across reads is not misread as two terminators.
func (s *Scanner) nextLine() (line, rest []byte, ok bool) {
	i := bytes.IndexAny(s.buf, "\r\n")
	if i == -1 {
		return nil, nil, false
	}
	if s.buf[i] == '\n' {
		return s.buf[:i], s.buf[i+1:], true
	}
	// CR: might be the first half of a CRLF.
	if i == len(s.buf)-1 {
		if !s.eof {
			return nil, nil, false
		}
		return s.buf[:i], s.buf[i+1:], true
	}
	if s.buf[i+1] == '\n' {
		return s.buf[:i], s.buf[i+2:], true
	}
	return s.buf[:i], s.buf[i+1:], true
}

// consumeLine feeds one logical line into the event state. It reports true
// when a complete event became available in s.event.
func (s *Scanner) consumeLine(line []byte) bool {
	if len(line) == 0 {
		if !s.hasData {
			return false
		}
		s.event = s.data
		s.data = nil
		s.hasData = false
		return true
	}
	if line[0] == ':' {
		return false
	}
	name := line
	var value []byte
	if i := bytes.IndexByte(line, ':'); i != -1 {
		name = line[:i]
		value = line[i+1:]
		// A single leading space after the colon is part of the framing.
		if len(value) > 0 && value[0] == ' ' {
			value = value[1:]
		}
	}
	if !bytes.Equal(name, []byte("data")) {
		return false
	}
	if s.hasData {
		s.data = append(s.data, '\n')
	}
	s.data = append(s.data, value...)
	s.hasData = true
	return false
}

// DoneSentinel is the payload of the terminal SSE frame.
var DoneSentinel = []byte("[DONE]")

// IsDone reports whether an event payload is the [DONE] sentinel.
func IsDone(event []byte) bool {
	return bytes.Equal(bytes.TrimSpace(event), DoneSentinel)
}
