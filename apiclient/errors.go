package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/lde-admin/lde-cli/endpoint"
)

var (
	// ErrEndpointNotFound is returned for keys missing from the endpoint table.
	ErrEndpointNotFound = endpoint.ErrNotFound

	// ErrNetwork matches every *NetworkError.
	ErrNetwork = errors.New("network error")

	// ErrSessionExpired means the refresh token was missing or rejected. The
	// store has been cleared and the user must log in again.
	ErrSessionExpired = errors.New("session expired")
)

// invalidSessionMessage is what the backend reports for a token it no longer accepts.
const invalidSessionMessage = "invalid jwt"

// NetworkError is a transport failure: no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrNetwork, e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// Timeout reports whether the call ran out of time rather than failing outright.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// APIError is a non-2xx response. Body is kept verbatim.
type APIError struct {
	StatusCode int
	Body       []byte
	Message    string
	Code       string
}

// errorBody covers the error shapes returned by the auth and functions endpoints.
type errorBody struct {
	Message          string          `json:"message"`
	Msg              string          `json:"msg"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: body}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return e
	}
	for _, m := range []string{eb.Message, eb.Msg, eb.ErrorDescription, eb.Error} {
		if m != "" {
			e.Message = m
			break
		}
	}
	e.Code = eb.ErrorCode
	if e.Code == "" && len(eb.Code) > 0 {
		e.Code = strings.Trim(string(eb.Code), `"`)
	}
	return e
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, string(e.Body))
}

// InvalidSession reports whether the backend rejected the credential itself,
// independent of the status code.
func (e *APIError) InvalidSession() bool {
	return strings.EqualFold(strings.TrimSpace(e.Message), invalidSessionMessage)
}
