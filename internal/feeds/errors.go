package feeds

import (
	"errors"
	"fmt"
)

// TransientError marks a network or timeout failure on a feed call. The
// orchestrator skips the affected item and continues the batch.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as a TransientError.
func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ParseError marks an observation that did not have the expected shape.
// The item is skipped; it never crashes a cycle.
type ParseError struct {
	Op  string
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Malformed wraps err as a ParseError.
func Malformed(op string, err error) error {
	return &ParseError{Op: op, Err: err}
}

// IsMalformed reports whether err is (or wraps) a ParseError.
func IsMalformed(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
