package poller

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/jsamuelsen/go-ambient/internal/ambient"
)

// runnable is the type-erased view of a Handle the workers operate on.
type runnable interface {
	id() uint64
	poll(ctx context.Context) (finished bool, err error)
	abort(err error)
}

// Handle tracks one spawned task.
type Handle[T any] struct {
	seq  uint64
	task ambient.Task[T]

	polls     atomic.Int64
	cancelled atomic.Bool

	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newHandle[T any](seq uint64, task ambient.Task[T]) *Handle[T] {
	return &Handle[T]{
		seq:  seq,
		task: task,
		done: make(chan struct{}),
	}
}

// ID returns the driver-assigned task number.
func (h *Handle[T]) ID() uint64 {
	return h.seq
}

// Polls returns how many times the task has been polled.
func (h *Handle[T]) Polls() int64 {
	return h.polls.Load()
}

// Done is closed once the task has an outcome.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task has an outcome or ctx is done.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.value, h.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Cancel asks the driver to abandon the task. It takes effect before the
// task's next poll; a poll already in progress runs to its end. Tasks
// implementing ambient.Canceler have Cancel called on a worker.
func (h *Handle[T]) Cancel() {
	h.cancelled.Store(true)
}

func (h *Handle[T]) id() uint64 {
	return h.seq
}

func (h *Handle[T]) poll(ctx context.Context) (bool, error) {
	if h.cancelled.Load() {
		err := cancelRecover(h.task)
		h.abort(err)
		return true, err
	}

	h.polls.Add(1)

	value, done, err := pollRecover(ctx, h.task)
	if !done && err == nil {
		return false, nil
	}

	h.finish(value, err)
	return true, err
}

func (h *Handle[T]) abort(err error) {
	var zero T
	h.finish(zero, err)
}

func (h *Handle[T]) finish(value T, err error) {
	h.once.Do(func() {
		h.value, h.err = value, err
		h.task = nil
		close(h.done)
	})
}

func pollRecover[T any](ctx context.Context, task ambient.Task[T]) (value T, done bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			done = true
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	return task.Poll(ctx)
}

// cancelRecover forwards cancellation to a task that implements
// ambient.Canceler. A panic in Cancel becomes the outcome instead of
// ambient.ErrCancelled.
func cancelRecover[T any](task ambient.Task[T]) (err error) {
	c, ok := task.(ambient.Canceler)
	if !ok {
		return ambient.ErrCancelled
	}

	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	c.Cancel()

	return ambient.ErrCancelled
}
