package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// FallbackMessage is shown when an error carries no usable text.
const FallbackMessage = "An unexpected error occurred"

// APIError describes a failed request: either a non-2xx response
// (StatusCode set) or a transport failure (Err set).
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string // "message" field of the response body, if any
	Body       []byte
	Err        error
}

func newStatusError(method, p string, status int, body []byte) *APIError {
	e := &APIError{Method: method, Path: p, StatusCode: status, Body: body}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		e.Message = payload.Message
	}
	return e
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: request failed with status code %d", e.Method, e.Path, e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// HandleAPIError turns a failed request into text for a page: the server's
// message when it sent one, otherwise the error's own message, otherwise
// FallbackMessage.
func HandleAPIError(err error) string {
	if err == nil {
		return FallbackMessage
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return FallbackMessage
}
