package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nutsq/nutsdash/errors"
)

// RequestError means the backend was reached but did not answer 2xx, or the
// request timed out. Error() is the backend's detail, fit to show an operator.
type RequestError struct {
	StatusCode int // 0 when Timeout is set
	Detail     string
	Method     string
	Path       string
	Timeout    bool
}

func (e *RequestError) Error() string {
	return e.Detail
}

// Is matches errors.ErrTimeout for timeouts and errors.ErrNotFound for 404s
func (e *RequestError) Is(target error) bool {
	switch target {
	case errors.ErrTimeout:
		return e.Timeout
	case errors.ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case errors.ErrInvalidRequest:
		return e.StatusCode == http.StatusBadRequest || e.StatusCode == http.StatusUnprocessableEntity
	}
	return false
}

// NetworkError means the backend was unreachable or the request was aborted
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("nuts backend unreachable (%s %s): %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is matches errors.ErrServiceUnavailable unless the caller cancelled
func (e *NetworkError) Is(target error) bool {
	return target == errors.ErrServiceUnavailable && !errors.Is(e.Err, context.Canceled)
}

// IsRequestError reports whether err is or wraps a *RequestError
func IsRequestError(err error) (*RequestError, bool) {
	var re *RequestError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsNetworkError reports whether err is or wraps a *NetworkError
func IsNetworkError(err error) (*NetworkError, bool) {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne, true
	}
	return nil, false
}

// detailFromBody extracts the operator-facing message from an error body:
// the "detail" string when present, "Unknown error" when the body is not
// JSON, "API error: <status>" otherwise.
func detailFromBody(status int, body []byte) string {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "Unknown error"
	}
	if obj, ok := payload.(map[string]any); ok {
		if detail, ok := obj["detail"].(string); ok && detail != "" {
			return detail
		}
	}
	return fmt.Sprintf("API error: %d", status)
}
