package poller

import (
	"errors"
	"fmt"
)

// ErrStopped is returned when spawning on, or waiting for a task abandoned by,
// a stopped driver.
var ErrStopped = errors.New("poller: driver stopped")

// PanicError is the outcome of a task whose Poll panicked.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("poller: task panicked: %v", e.Value)
}
