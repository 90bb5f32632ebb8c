package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel classes for the error taxonomy. Errors created through the
// constructors below match these via errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrInvariantViolation = errors.New("invariant violation")
)

type Error struct {
	Status int
	Code   string
	Class  error
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Code, e.Err.Error())
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == e.Class }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(code string, err error) *Error {
	return &Error{Status: http.StatusNotFound, Code: code, Class: ErrNotFound, Err: err}
}

func Validation(code string, err error) *Error {
	return &Error{Status: http.StatusBadRequest, Code: code, Class: ErrValidation, Err: err}
}

// InvariantViolation marks a data-integrity or programming error. Surfaced as a
// 500-equivalent and logged loudly by callers.
func InvariantViolation(code string, err error) *Error {
	return &Error{Status: http.StatusInternalServerError, Code: code, Class: ErrInvariantViolation, Err: err}
}

func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Status != 0 {
		return apiErr.Status
	}
	return http.StatusInternalServerError
}
