package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch on it without inspecting
// human-readable messages.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindService           Kind = "service"
	KindCredential        Kind = "credential"
	KindCredentialMissing Kind = "credential_missing"
	KindDownload          Kind = "download"
	KindPolling           Kind = "polling"
	KindTimeout           Kind = "timeout"
	KindCancelled         Kind = "cancelled"
)

var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrService           = &Error{Kind: KindService}
	ErrCredential        = &Error{Kind: KindCredential}
	ErrCredentialMissing = &Error{Kind: KindCredentialMissing}
	ErrDownload          = &Error{Kind: KindDownload}
	ErrPolling           = &Error{Kind: KindPolling}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrCancelled         = &Error{Kind: KindCancelled}
)

// Error is the single error type surfaced by the generation, polling and
// download paths.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Status is the upstream HTTP status code when one was observed.
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind so the package level sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Op == "" && t.Message == ""
}

// NewError builds an Error of the given kind.
func NewError(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}

// InvalidInput reports a missing or malformed user input.
func InvalidInput(op, message string) *Error {
	return &Error{Kind: KindInvalidInput, Op: op, Message: message}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindService
// for any other non-nil error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindService
}

// MessageOf returns the user-facing message carried by err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return string(e.Kind)
	}
	return err.Error()
}
