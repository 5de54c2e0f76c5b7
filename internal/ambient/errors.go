package ambient

import (
	"errors"
	"fmt"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrOutOfOrder indicates a guard was released while guards attached after
	// it were still outstanding, or after its value had already been discarded.
	ErrOutOfOrder = errors.New("ambient: guard released out of order")

	// ErrForeignGoroutine indicates a guard was released on a goroutine other
	// than the one that attached it.
	ErrForeignGoroutine = errors.New("ambient: guard released on a foreign goroutine")

	// ErrCancelled is returned by a wrapped task polled after Cancel.
	ErrCancelled = errors.New("ambient: task cancelled")
)

// GuardError reports guard misuse for a named key.
type GuardError struct {
	Key string
	Err error
}

// Error implements the error interface.
func (e *GuardError) Error() string {
	return fmt.Sprintf("%v (key %q)", e.Err, e.Key)
}

// Unwrap returns the sentinel error for errors.Is() support.
func (e *GuardError) Unwrap() error {
	return e.Err
}

// IsMisuse reports whether err is a guard ordering or ownership error.
func IsMisuse(err error) bool {
	return errors.Is(err, ErrOutOfOrder) || errors.Is(err, ErrForeignGoroutine)
}
