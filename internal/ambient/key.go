package ambient

import "fmt"

// Key is the typed handle for one ambient context type. Create keys with
// Declare, normally once per type as a package level variable.
type Key[T any] struct {
	name  string
	def   T
	clone func(T) T
	slot  slot[T]
}

// Option configures a Key at declaration time.
type Option[T any] func(*Key[T])

// WithDefault sets the value Current returns when nothing is attached.
// Without it Current returns the zero value of T.
func WithDefault[T any](v T) Option[T] {
	return func(k *Key[T]) {
		k.def = v
	}
}

// WithClone sets the function used to duplicate values when they are captured
// into a snapshot and when a snapshot attaches them. Use it for types holding
// references (maps, slices, pointers) that must not be shared between
// goroutines.
func WithClone[T any](fn func(T) T) Option[T] {
	return func(k *Key[T]) {
		k.clone = fn
	}
}

// Declare creates the key and storage slot for context type T.
// The name is used in logs and error messages.
func Declare[T any](name string, opts ...Option[T]) *Key[T] {
	k := &Key[T]{name: name}
	for _, opt := range opts {
		if opt != nil {
			opt(k)
		}
	}
	return k
}

// Name returns the name the key was declared with.
func (k *Key[T]) Name() string {
	return k.name
}

// String implements fmt.Stringer.
func (k *Key[T]) String() string {
	return fmt.Sprintf("ambient.Key[%T](%s)", k.def, k.name)
}

// Current returns the current value, or the declared default when none is
// attached on this goroutine.
func (k *Key[T]) Current() T {
	if v, ok := k.slot.peek(goroutineID()); ok {
		return v
	}
	return k.def
}

// TryCurrent returns the current value and true, or the zero value and false
// when none is attached on this goroutine.
func (k *Key[T]) TryCurrent() (T, bool) {
	return k.slot.peek(goroutineID())
}

// Lookup is TryCurrent with the value boxed, for callers that handle keys of
// different types uniformly (log attributes, debug endpoints).
func (k *Key[T]) Lookup() (any, bool) {
	v, ok := k.TryCurrent()
	if !ok {
		return nil, false
	}
	return v, true
}

// Depth reports how many values are stacked for this key on this goroutine.
func (k *Key[T]) Depth() int {
	return k.slot.depth(goroutineID())
}

// Attach makes v current on this goroutine until the returned guard is
// released.
func (k *Key[T]) Attach(v T) *Guard {
	gid := goroutineID()

	return &Guard{
		name:   k.name,
		gid:    gid,
		serial: k.slot.push(gid, v),
		slot:   &k.slot,
	}
}

// Run makes v current for the duration of body. The previous value is
// restored when body returns or panics.
func (k *Key[T]) Run(v T, body func()) {
	g := k.Attach(v)
	defer releaseAndLog(g)

	body()
}

// Bind pairs v with this key for use in a Snapshot.
func (k *Key[T]) Bind(v T) Binding {
	return &binding[T]{key: k, value: k.copy(v)}
}

// CaptureCurrent binds the current value, if any.
func (k *Key[T]) CaptureCurrent() (Binding, bool) {
	v, ok := k.TryCurrent()
	if !ok {
		return nil, false
	}
	return k.Bind(v), true
}

func (k *Key[T]) copy(v T) T {
	if k.clone == nil {
		return v
	}
	return k.clone(v)
}

// With makes v current for the duration of body and returns body's result.
func With[T, R any](k *Key[T], v T, body func() R) R {
	g := k.Attach(v)
	defer releaseAndLog(g)

	return body()
}

// WithErr is With for bodies that also return an error.
func WithErr[T, R any](k *Key[T], v T, body func() (R, error)) (R, error) {
	g := k.Attach(v)
	defer releaseAndLog(g)

	return body()
}
