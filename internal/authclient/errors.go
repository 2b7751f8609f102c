package authclient

import (
	"errors"
	"fmt"
)

// Kind classifies a credential exchange failure. The three kinds have
// different propagation rules: validation and auth errors are shown to
// the user, protocol errors signal client/server contract drift and are
// never silently coerced into a credential problem.
type Kind string

const (
	KindValidation Kind = "validation"
	KindAuth       Kind = "auth"
	KindTimeout    Kind = "timeout" // subkind of auth: the exchange never resolved in time
	KindProtocol   Kind = "protocol"
)

type Error struct {
	Kind    Kind
	Code    string // server error code when one was returned, e.g. "invalid_credentials"
	Message string
	Fields  []FieldError // populated for validation errors only
	Cause   error
}

// FieldError reports a single input field that failed local validation.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: [%s] %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches on kind so callers can branch with errors.Is and the
// sentinel values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrTimeout    = &Error{Kind: KindTimeout}
	ErrProtocol   = &Error{Kind: KindProtocol}
)

func newAuthError(code, message string) *Error {
	return &Error{Kind: KindAuth, Code: code, Message: message}
}

func newTimeoutError(op string, cause error) *Error {
	return &Error{Kind: KindTimeout, Message: op + " timed out", Cause: cause}
}

func newProtocolError(message string, cause error) *Error {
	return &Error{Kind: KindProtocol, Message: message, Cause: cause}
}

// IsAuthFailure reports whether err is a server-side credential
// rejection, including timeouts, which callers must treat the same way
// as a rejection (the token state is unknown, so fail safe).
func IsAuthFailure(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == KindAuth || e.Kind == KindTimeout
}
