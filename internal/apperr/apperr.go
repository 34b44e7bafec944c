// Package apperr defines the user-facing error kinds returned by the booking core.
//
// NotFound and InvalidRequest are terminal for a request: callers must not
// retry them. Any other error is an internal failure.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a user-facing error.
type Kind string

const (
	KindNotFound       Kind = "not_found"
	KindInvalidRequest Kind = "invalid_request"
)

// Error is a user-facing error carrying its kind.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NotFound reports a referenced entity that does not exist.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Invalid reports a validation or business-rule failure.
func Invalid(format string, args ...any) error {
	return &Error{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" for internal errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsInvalid reports whether err is an InvalidRequest error.
func IsInvalid(err error) bool {
	return KindOf(err) == KindInvalidRequest
}
