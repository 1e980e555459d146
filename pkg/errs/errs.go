// Package errs defines the failure kinds surfaced by the category core.
package errs

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/pkg/errors"
)

type Kind string

const (
	Validation          Kind = "VALIDATION"
	DuplicateName       Kind = "DUPLICATE_NAME"
	NotFound            Kind = "NOT_FOUND"
	ParentNotFound      Kind = "PARENT_NOT_FOUND"
	AuthorizationDenied Kind = "AUTHORIZATION_DENIED"
	StoreUnavailable    Kind = "STORE_UNAVAILABLE"
	Internal            Kind = "INTERNAL"
)

// Error carries a Kind alongside a caller-safe message. Err holds the
// underlying cause and is never rendered to API clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, errs.E(errs.NotFound, ""))
// works in tests without comparing messages.
func (e *Error) Is(target error) bool {
	var t *Error
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// E builds a new error of the given kind.
func E(kind Kind, format string, args ...any) error {
	return errors.WithStack(&Error{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Wrap attaches a kind and message to a lower level error.
func Wrap(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err})
}

// Store wraps a driver failure as StoreUnavailable unless it already carries a kind.
func Store(err error, op string) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != Internal {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return Wrap(err, StoreUnavailable, "%s: request cancelled before completion", op)
	}
	return Wrap(err, StoreUnavailable, "%s", op)
}

// KindOf reports the kind of err, Internal for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the caller-safe message of err.
func MessageOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}
