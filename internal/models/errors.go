package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced to callers
type ErrorKind string

// Error kinds
const (
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindPermissionDenied  ErrorKind = "permission_denied"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindConflict          ErrorKind = "conflict"
	KindInvalidCode       ErrorKind = "invalid_code"
	KindUnauthenticated   ErrorKind = "unauthenticated"
	KindDependency        ErrorKind = "dependency_failure"
)

// Error is a classified domain error
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so sentinels work with errors.Is
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks
var (
	ErrValidation        = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "resource not found"}
	ErrPermissionDenied  = &Error{Kind: KindPermissionDenied, Message: "permission denied"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Message: "invalid order status transition"}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock, Message: "insufficient stock"}
	ErrConflict          = &Error{Kind: KindConflict, Message: "resource already exists"}
	ErrInvalidCode       = &Error{Kind: KindInvalidCode, Message: "invalid activation code or email"}
	ErrUnauthenticated   = &Error{Kind: KindUnauthenticated, Message: "authentication required"}
	ErrDependency        = &Error{Kind: KindDependency, Message: "dependency failure"}
)

// NewError builds a classified error with a formatted message
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies a lower-level cause
func WrapError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the kind of a classified error, or "" for anything else
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
