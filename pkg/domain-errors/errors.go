// Package domerrors defines the coded error taxonomy shared by every domain.
// Infrastructure failures never cross the repository boundary raw: stores and
// provider adapters return sentinel errors, and each domain maps them into one
// of these coded values. Callers branch on Code, never on concrete types.
package domerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. Transport layers map codes to status codes
// (NotFound->404, Validation->400, Unavailable->503, the rest->500).
type Code string

const (
	CodeNotFound    Code = "NOT_FOUND"
	CodeValidation  Code = "VALIDATION"
	CodeConflict    Code = "CONFLICT"
	CodePersistence Code = "PERSISTENCE"
	CodeUnavailable Code = "UNAVAILABLE"
	CodeInternal    Code = "INTERNAL"

	// CodeInvariantViolation marks entity constructor/mutation failures.
	// Services convert it to CodeValidation before it leaves the domain.
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"
)

// Metadata carries structured context (entity id, filter name, attempt count)
// attached to an error for logging and assertions.
type Metadata map[string]any

// Error is the one error shape surfaced above the repository boundary.
type Error struct {
	Code    Code
	Message string
	Err     error
	Meta    Metadata
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds a domain error with no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error, preserving it as the cause.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// WithMeta returns the error with the given metadata merged in. The receiver
// is mutated and returned for chaining at construction sites.
func (e *Error) WithMeta(meta Metadata) *Error {
	if e == nil || len(meta) == 0 {
		return e
	}
	if e.Meta == nil {
		e.Meta = Metadata{}
	}
	for k, v := range meta {
		e.Meta[k] = v
	}
	return e
}

// HasCode reports whether err (or anything it wraps) is a domain error with
// the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost domain error in err's chain, or
// CodeInternal when err carries no classification.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MetaOf returns the metadata of the outermost domain error in err's chain.
func MetaOf(err error) Metadata {
	var de *Error
	if errors.As(err, &de) {
		return de.Meta
	}
	return nil
}
