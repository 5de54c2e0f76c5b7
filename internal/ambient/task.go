package ambient

import "context"

// Task is a unit of work driven to completion by repeated Poll calls. Each
// call makes some progress and reports whether the work is finished.
//
// Poll returns done == false while the work is pending. When done is true,
// value and err are the outcome. A non-nil error always means done.
// A driver polls a task from at most one goroutine at a time, but successive
// polls may happen on different goroutines.
type Task[T any] interface {
	Poll(ctx context.Context) (value T, done bool, err error)
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc[T any] func(ctx context.Context) (T, bool, error)

// Poll calls f.
func (f TaskFunc[T]) Poll(ctx context.Context) (T, bool, error) {
	return f(ctx)
}

// Ready returns a task that completes on its first poll.
func Ready[T any](value T, err error) Task[T] {
	return TaskFunc[T](func(context.Context) (T, bool, error) {
		return value, true, err
	})
}

// Canceler is implemented by tasks that release resources when the driver
// abandons them before completion.
type Canceler interface {
	Cancel()
}
