// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package azure

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// StringOrContentParts is the union of a plain string and an array of typed
// content parts, as accepted by the messages[].content field. Dispatch is on
// the first non-whitespace byte to avoid a reflective two-pass unmarshal.
type StringOrContentParts struct {
	// Value is either a string or []ChatCompletionContentPart.
	Value interface{}
}

// UnmarshalJSON implements [json.Unmarshaler].
func (s *StringOrContentParts) UnmarshalJSON(data []byte) error {
	idx, err := skipLeadingWhitespace("content", data, 0)
	if err != nil {
		return err
	}
	switch data[idx] {
	case '"':
		str, err := unquoteOrUnmarshalJSONString("content", data)
		if err != nil {
			return err
		}
		s.Value = str
		return nil
	case '[':
		var parts []ChatCompletionContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return fmt.Errorf("cannot unmarshal content as content part array: %w", err)
		}
		s.Value = parts
		return nil
	case 'n':
		// Explicit null: leave Value nil, validation decides whether that is
		// acceptable for the message role.
		s.Value = nil
		return nil
	default:
		return fmt.Errorf("invalid content type (must be string or array)")
	}
}

// MarshalJSON implements [json.Marshaler].
func (s StringOrContentParts) MarshalJSON() ([]byte, error) {
	if s.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(s.Value)
}

// String returns the string form of the content, or "" if the content is an
// array or null.
func (s StringOrContentParts) String() string {
	if str, ok := s.Value.(string); ok {
		return str
	}
	return ""
}

// Parts returns the content part array form, or nil for string/null content.
func (s StringOrContentParts) Parts() []ChatCompletionContentPart {
	if parts, ok := s.Value.([]ChatCompletionContentPart); ok {
		return parts
	}
	return nil
}

// EmbeddingInputUnion is the union of a string and an array of strings
// accepted by the embeddings input field.
type EmbeddingInputUnion struct {
	// Value is either a string or []string.
	Value interface{}
}

// UnmarshalJSON implements [json.Unmarshaler].
func (e *EmbeddingInputUnion) UnmarshalJSON(data []byte) error {
	idx, err := skipLeadingWhitespace("input", data, 0)
	if err != nil {
		return err
	}
	switch data[idx] {
	case '"':
		str, err := unquoteOrUnmarshalJSONString("input", data)
		if err != nil {
			return err
		}
		e.Value = str
		return nil
	case '[':
		var strs []string
		if err := json.Unmarshal(data, &strs); err != nil {
			return fmt.Errorf("cannot unmarshal input as []string: %w", err)
		}
		e.Value = strs
		return nil
	default:
		return fmt.Errorf("invalid input type (must be string or array of strings)")
	}
}

// MarshalJSON implements [json.Marshaler].
func (e EmbeddingInputUnion) MarshalJSON() ([]byte, error) {
	if e.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(e.Value)
}

// skipLeadingWhitespace is unlikely to return anything except zero, but this
// allows us to use strconv.Unquote for the fast path.
func skipLeadingWhitespace(typ string, data []byte, idx int) (int, error) {
	for idx < len(data) && (data[idx] == ' ' || data[idx] == '\t' || data[idx] == '\n' || data[idx] == '\r') {
		idx++
	}
	if idx >= len(data) {
		return 0, fmt.Errorf("truncated %s data", typ)
	}
	return idx, nil
}

func unquoteOrUnmarshalJSONString(typ string, data []byte) (string, error) {
	// Fast-path parse normal quoted string.
	s, err := strconv.Unquote(string(data))
	if err == nil {
		return s, nil
	}

	// In rare case of escaped forward slash `\/`, strconv.Unquote will fail.
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return "", fmt.Errorf("cannot unmarshal %s as string: %w", typ, err)
	}
	return str, nil
}
