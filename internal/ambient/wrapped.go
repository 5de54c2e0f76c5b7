package ambient

import "context"

type wrapState uint8

const (
	statePending wrapState = iota
	stateDone
	stateCancelled
)

// Wrapped decorates a Task so that every Poll runs with a captured snapshot
// attached to the polling goroutine. Whatever that goroutine had attached
// before the poll is visible again once Poll returns, so unrelated work
// polled later on the same goroutine never observes this task's values.
//
// Wrapped is itself a Task. Like any task it must not be polled concurrently.
type Wrapped[T any] struct {
	inner Task[T]
	snap  Snapshot
	state wrapState
	value T
	err   error
}

// Wrap decorates task with an explicit snapshot.
func Wrap[T any](task Task[T], snap Snapshot) *Wrapped[T] {
	return &Wrapped[T]{inner: task, snap: snap}
}

// WithCurrent captures the current values of keys now and re-attaches them
// on every poll of task. Changes made to those keys on this goroutine after
// the call do not affect the task.
func WithCurrent[T any](task Task[T], keys ...Capturer) *Wrapped[T] {
	return Wrap(task, Capture(keys...))
}

// WithValue attaches v for key on every poll of task.
func WithValue[T, V any](task Task[T], key *Key[V], v V) *Wrapped[T] {
	return Wrap(task, NewSnapshot(key.Bind(v)))
}

// With binds b on top of the captured snapshot, replacing any captured value
// for the same key. It returns w to allow chaining and has no effect once the
// task has completed or been cancelled.
func (w *Wrapped[T]) With(b Binding) *Wrapped[T] {
	if w.state == statePending {
		w.snap = w.snap.With(b)
	}
	return w
}

// Snapshot returns the bindings attached on each poll. It is empty once the
// task has completed or been cancelled.
func (w *Wrapped[T]) Snapshot() Snapshot {
	return w.snap
}

// Poll attaches the snapshot, polls the inner task once and restores the
// polling goroutine's previous values, also when the inner task panics.
//
// After completion Poll returns the stored outcome without attaching
// anything or polling the inner task again.
func (w *Wrapped[T]) Poll(ctx context.Context) (T, bool, error) {
	switch w.state {
	case stateDone:
		return w.value, true, w.err
	case stateCancelled:
		var zero T
		return zero, true, ErrCancelled
	}

	value, done, err := w.step(ctx)
	if !done && err == nil {
		return value, false, nil
	}

	w.value, w.err = value, err
	w.state = stateDone
	w.inner = nil
	w.snap = Snapshot{}

	return value, true, err
}

func (w *Wrapped[T]) step(ctx context.Context) (T, bool, error) {
	release := w.snap.Attach()
	defer release()

	return w.inner.Poll(ctx)
}

// Cancel abandons a pending task. The snapshot and inner task are dropped
// and later polls return ErrCancelled. If the inner task implements
// Canceler it is cancelled with the snapshot attached.
func (w *Wrapped[T]) Cancel() {
	if w.state != statePending {
		return
	}

	if c, ok := w.inner.(Canceler); ok {
		w.snap.Run(c.Cancel)
	}

	w.state = stateCancelled
	w.inner = nil
	w.snap = Snapshot{}
}

// Done reports whether the task completed or was cancelled.
func (w *Wrapped[T]) Done() bool {
	return w.state != statePending
}
