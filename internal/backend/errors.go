package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnauthorized = errors.New("backend: unauthorized")
	ErrNotFound     = errors.New("backend: not found")
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("backend api error (%d, %s): %s", e.StatusCode, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("backend api error (%d): %s", e.StatusCode, e.Message)
	case e.Code != "":
		return fmt.Sprintf("backend api error (%d, %s)", e.StatusCode, e.Code)
	default:
		return fmt.Sprintf("backend api error (%d)", e.StatusCode)
	}
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// errorEnvelope covers the shapes the backend uses for failures:
// {"error": "..."}, {"error": {"code": "...", "message": "..."}}, {"detail": "..."} and {"message": "..."}.
type errorEnvelope struct {
	Error   json.RawMessage `json:"error,omitempty"`
	Detail  string          `json:"detail,omitempty"`
	Message string          `json:"message,omitempty"`
}

type errorObject struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func buildAPIError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}

	var envelope errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &envelope) == nil {
		if len(envelope.Error) > 0 {
			var text string
			var obj errorObject
			switch {
			case json.Unmarshal(envelope.Error, &text) == nil:
				apiErr.Message = strings.TrimSpace(text)
			case json.Unmarshal(envelope.Error, &obj) == nil:
				apiErr.Code = strings.TrimSpace(obj.Code)
				apiErr.Message = strings.TrimSpace(obj.Message)
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(envelope.Detail)
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(envelope.Message)
		}
	}

	if apiErr.Message == "" && apiErr.Code == "" {
		snippet := strings.TrimSpace(string(body))
		if snippet == "" {
			snippet = http.StatusText(statusCode)
		}
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		apiErr.Message = snippet
	}

	return apiErr
}
