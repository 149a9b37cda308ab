package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the different kinds of failure a scrape run can hit
type ErrorType string

const (
	ErrorTypeAuth          ErrorType = "auth"
	ErrorTypeNavigation    ErrorType = "navigation"
	ErrorTypeTimeout       ErrorType = "timeout"
	ErrorTypeFrameNotFound ErrorType = "frame_not_found"
	ErrorTypeParsing       ErrorType = "parsing"
	ErrorTypeSurface       ErrorType = "surface"
	ErrorTypeConfig        ErrorType = "config"
	ErrorTypeUnknown       ErrorType = "unknown"
)

// Error carries a type, an optional document ID and the underlying cause
type Error struct {
	Type    ErrorType
	Message string
	ID      int
	Err     error

	hasID bool
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s error: %s", e.Type, e.Message)
	if e.hasID {
		msg = fmt.Sprintf("%s error (id %d): %s", e.Type, e.ID, e.Message)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a typed error
func New(t ErrorType, message string) *Error {
	return &Error{Type: t, Message: message}
}

// Wrap creates a typed error around a cause
func Wrap(t ErrorType, err error, message string) *Error {
	return &Error{Type: t, Message: message, Err: err}
}

// WithID returns a copy of the error tagged with a document ID
func (e *Error) WithID(id int) *Error {
	cp := *e
	cp.ID = id
	cp.hasID = true
	return &cp
}

// HasID reports whether the error was tagged with a document ID
func (e *Error) HasID() bool {
	return e.hasID
}

// TypeOf returns the type of the first typed error in err's chain
func TypeOf(err error) ErrorType {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type
	}
	return ErrorTypeUnknown
}

// IsFatal reports whether an error must abort the whole run rather than a single ID
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch TypeOf(err) {
	case ErrorTypeAuth, ErrorTypeSurface, ErrorTypeConfig:
		return true
	default:
		return false
	}
}

// Is reports whether err carries the given type
func Is(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}
