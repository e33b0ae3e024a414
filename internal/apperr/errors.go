// Package apperr defines the failure kinds shared by the chat, CV and feed
// services. Every outbound call converts its failure into one of these kinds
// so callers can degrade without inspecting transport errors.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. A Kind is itself an error so it can be used as
// an errors.Is target.
type Kind string

const (
	ServiceUnavailable Kind = "service_unavailable"
	NoReadableText     Kind = "no_readable_text"
	InvalidTarget      Kind = "invalid_target"
	MalformedOutput    Kind = "malformed_output"
	InvalidRequest     Kind = "invalid_request"
)

func (k Kind) Error() string {
	return string(k)
}

// Error carries a Kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// New wraps err with kind and op.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an Error whose cause is a formatted message.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the Kind of e.
func (e *Error) Is(target error) bool {
	kind, ok := target.(Kind)
	return ok && kind == e.Kind
}

// KindOf returns the Kind of the first Error in err's chain, or "" when none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var kind Kind
	if errors.As(err, &kind) {
		return kind
	}
	return ""
}
