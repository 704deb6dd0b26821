// Package apperr defines the error taxonomy shared by every component.
// Errors carry a stable code so the coordinator can surface them to the
// originating participant as a typed error event.
package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeValidation  Code = "VALIDATION"
	CodeNotFound    Code = "NOT_FOUND"
	CodePermission  Code = "PERMISSION"
	CodeCapacity    Code = "CAPACITY"
	CodeState       Code = "STATE"
	CodeAuth        Code = "AUTH"
	CodeRateLimited Code = "RATE_LIMITED"
)

type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// E builds a coded error.
func E(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from err, or CodeState for errors raised
// outside the taxonomy.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeState
}

// MessageOf returns the human-readable message without the code prefix.
func MessageOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
