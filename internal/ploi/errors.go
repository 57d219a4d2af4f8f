package ploi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error kinds that can be checked with errors.Is()
var (
	// ErrAuth is returned when the API rejects the credentials
	ErrAuth = errors.New("invalid API key")

	// ErrResource is returned when the API rejects an action with a specific reason
	ErrResource = errors.New("action rejected")

	// ErrNetwork covers transport failures, unexpected statuses and malformed bodies
	ErrNetwork = errors.New("request failed")

	// ErrUnknownService is returned when restarting a service outside the supported set
	ErrUnknownService = errors.New("unknown service")
)

// Kind classifies an Error for the presentation layer.
type Kind string

const (
	KindAuth     Kind = "auth"
	KindResource Kind = "resource"
	KindNetwork  Kind = "network"
)

// Error describes a failed API call.
type Error struct {
	Op         string // Operation name, e.g. "list servers"
	Kind       Kind
	StatusCode int    // HTTP status, zero when no response was received
	Message    string // Server supplied message, if any
	Err        error  // Underlying cause
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrAuth:
		return e.Kind == KindAuth
	case ErrResource:
		return e.Kind == KindResource
	case ErrNetwork:
		return e.Kind == KindNetwork
	}
	return false
}

// KindOf returns the kind of err, or KindNetwork for errors that did not
// come from this package.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindNetwork
}

// validationMessage extracts errors[0] from a 422 body.
// Returns "" when the body has no non-empty errors array.
func validationMessage(body []byte) string {
	var payload struct {
		Errors json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Errors) == 0 {
		return ""
	}

	var list []any
	if err := json.Unmarshal(payload.Errors, &list); err != nil || len(list) == 0 {
		return ""
	}
	msg, ok := list[0].(string)
	if !ok {
		return ""
	}
	return msg
}

// classify turns a non-2xx response into an Error.
// readCall selects the taxonomy of list/get calls, where a 422 with an errors
// payload means the API key was rejected.
func classify(op string, status int, body []byte, readCall bool) *Error {
	if status == http.StatusUnprocessableEntity {
		if msg := validationMessage(body); msg != "" {
			if readCall {
				return &Error{Op: op, Kind: KindAuth, StatusCode: status, Message: msg}
			}
			return &Error{Op: op, Kind: KindResource, StatusCode: status, Message: msg}
		}
	}
	return &Error{
		Op:         op,
		Kind:       KindNetwork,
		StatusCode: status,
		Err:        fmt.Errorf("unexpected status %s", http.StatusText(status)),
	}
}
