package provider

import (
	"errors"
	"fmt"
)

// ErrProvider matches every *Error via errors.Is.
var ErrProvider = errors.New("provider error")

// Error reports a failed or malformed remote call.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports true for ErrProvider so callers don't need errors.As for the common check.
func (e *Error) Is(target error) bool { return target == ErrProvider }

// Errorf builds an *Error for op with a formatted cause.
func Errorf(op, format string, args ...any) error {
	return &Error{Op: op, Err: fmt.Errorf(format, args...)}
}
