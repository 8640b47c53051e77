package domerrors

import "errors"

// Constructor builds a domain error from an infrastructure cause.
type Constructor func(cause error, meta Metadata) *Error

// Rule binds an infrastructure sentinel to the domain error it maps to.
// Matching uses errors.Is, so wrapped sentinels are recognized.
type Rule struct {
	Sentinel  error
	Construct Constructor
}

// Mapper converts any error caught at a repository boundary into a domain
// error. It never returns nil for non-nil input and never panics.
type Mapper func(err error, meta Metadata) *Error

// NewMapper builds a Mapper from an ordered rule table and a generic fallback.
// Rules are evaluated in order; the first sentinel match wins. Errors that are
// already domain errors pass through unchanged apart from metadata merging,
// so double-mapping at nested boundaries is harmless.
func NewMapper(table []Rule, generic Constructor) Mapper {
	return func(err error, meta Metadata) *Error {
		if err == nil {
			return nil
		}
		var de *Error
		if errors.As(err, &de) {
			return de.WithMeta(meta)
		}
		for _, rule := range table {
			if errors.Is(err, rule.Sentinel) {
				return rule.Construct(err, meta)
			}
		}
		return generic(err, meta)
	}
}

// CodeConstructor is the common constructor shape: wrap the cause under a
// fixed code and message.
func CodeConstructor(code Code, message string) Constructor {
	return func(cause error, meta Metadata) *Error {
		return Wrap(cause, code, message).WithMeta(meta)
	}
}
