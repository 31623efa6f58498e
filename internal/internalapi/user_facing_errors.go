// Copyright Azure OpenAI Proxy Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package internalapi

import (
	"errors"
)

// User-facing errors that are safe to return in HTTP responses.
// These errors contain no sensitive information and can be directly
// exposed to clients with appropriate HTTP status codes. The message text of
// the vision errors matches Azure's observed wording byte for byte; clients
// and their SDKs pattern-match on it.
var (
	// ErrInvalidRequestBody indicates the request body is malformed JSON
	// or doesn't match the expected schema.
	ErrInvalidRequestBody = errors.New("invalid request body format")

	// ErrMissingRequiredField indicates a required field is missing from the request.
	ErrMissingRequiredField = errors.New("missing required field in request")

	// ErrInvalidImageData indicates the request carries more than one image_url
	// content part. Azure rejects multi-image requests with exactly this message.
	ErrInvalidImageData = errors.New("Invalid image data.")

	// ErrInvalidImageURL indicates an image_url value that is neither an
	// HTTP(S) URL nor a base64 data URL with a declared MIME type.
	ErrInvalidImageURL = errors.New("image_url must be a valid HTTP/HTTPS URL or a base64-encoded data URL with a MIME type")

	// ErrVisionStreaming indicates a vision request with stream=true, which the
	// Azure surface does not support.
	ErrVisionStreaming = errors.New("Streaming is not supported for vision requests.")

	// ErrInvalidImageDetail indicates an image_url.detail outside {low, high, auto}.
	ErrInvalidImageDetail = errors.New("image_url.detail must be one of 'low', 'high' or 'auto'")

	// ErrInvalidParameterValue indicates a parameter value outside the valid
	// range for the endpoint (e.g. image n, size, quality).
	ErrInvalidParameterValue = errors.New("parameter value out of valid range")
)

// GetUserFacingError checks if an error is a known user-facing error that's safe to expose.
// Returns the user-facing error if it's safe, or nil if it should not be exposed to users.
func GetUserFacingError(err error) error {
	switch {
	case errors.Is(err, ErrInvalidRequestBody):
		return ErrInvalidRequestBody
	case errors.Is(err, ErrMissingRequiredField):
		return ErrMissingRequiredField
	case errors.Is(err, ErrInvalidImageData):
		return ErrInvalidImageData
	case errors.Is(err, ErrInvalidImageURL):
		return ErrInvalidImageURL
	case errors.Is(err, ErrVisionStreaming):
		return ErrVisionStreaming
	case errors.Is(err, ErrInvalidImageDetail):
		return ErrInvalidImageDetail
	case errors.Is(err, ErrInvalidParameterValue):
		return ErrInvalidParameterValue
	default:
		return nil
	}
}
