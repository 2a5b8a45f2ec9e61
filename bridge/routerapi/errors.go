package routerapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrRemote marks every failure that came from the routing service or the network.
var ErrRemote = errors.New("routing service error")

// RemoteError is a non-2xx answer or a transport failure.
// StatusCode is zero when no answer was received.
type RemoteError struct {
	StatusCode int
	Message    string
	Err        error
}

func newRemoteError(status int, body []byte) *RemoteError {
	var payload struct {
		Code    any    `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := string(body)
	if err := json.Unmarshal(body, &payload); err == nil {
		switch {
		case payload.Message != "":
			msg = payload.Message
		case payload.Error != "":
			msg = payload.Error
		}
	}
	return &RemoteError{StatusCode: status, Message: msg}
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("routing service unreachable: %v", e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("routing service HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("routing service HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *RemoteError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemote}
	}
	return []error{ErrRemote, e.Err}
}

// Retryable is false for client errors, which fail the same way on every endpoint.
func (e *RemoteError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
