package core

import "github.com/pkg/errors"

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// PolicyError is returned when a request is well-formed but a business rule refuses it.
// Details are merged into the error response body (e.g. "remainingTime").
type PolicyError struct {
	Reason  string
	Details map[string]interface{}
}

func NewPolicyError(reason string, details ...map[string]interface{}) error {
	pe := &PolicyError{Reason: reason}
	if len(details) > 0 {
		pe.Details = details[0]
	}
	return pe
}

func (err PolicyError) Error() string {
	return err.Reason
}

// PermissionError is returned when the caller's role may not perform an operation.
type PermissionError struct {
	Reason string
}

func NewPermissionError(reason string) error {
	return &PermissionError{Reason: reason}
}

func (err PermissionError) Error() string {
	return err.Reason
}

// NotFoundError is returned when a looked-up resource does not exist for the caller.
type NotFoundError struct {
	Reason string
}

func NewNotFoundError(reason string) error {
	return &NotFoundError{Reason: reason}
}

func (err NotFoundError) Error() string {
	return err.Reason
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
