package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an error response is kept
const maxErrorBody = 2048

// TransportError represents a request that never produced an HTTP response
// (refused, DNS, reset) or whose body could not be read.
type TransportError struct {
	Op  string // HTTP method, or "decode"
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StatusError represents a non-2xx response from the agent service
type StatusError struct {
	StatusCode int
	Body       string // raw body, truncated
	Message    string // "detail" or "error" field when the body is JSON
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Body
	}
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("agent service returned status %d: %s", e.StatusCode, msg)
}

func newStatusError(resp *http.Response) *StatusError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	body := strings.TrimSpace(string(data))

	se := &StatusError{StatusCode: resp.StatusCode, Body: body}

	var payload struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil {
		switch {
		case payload.Error != "":
			se.Message = payload.Error
		case len(payload.Detail) > 0:
			var detail string
			if json.Unmarshal(payload.Detail, &detail) == nil {
				se.Message = detail
			} else {
				se.Message = string(payload.Detail)
			}
		}
	}
	return se
}

// IsCanceled reports whether err is a cancellation rather than a failure
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsTransport reports whether err is a TransportError
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// StatusCode returns the HTTP status of a StatusError, or 0
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
