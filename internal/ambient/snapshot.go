package ambient

import "slices"

// Binding is one captured (key, value) pair.
type Binding interface {
	// Name returns the name of the bound key.
	Name() string

	// Value returns the bound value.
	Value() any

	identity() any
	attach() *Guard
}

type binding[T any] struct {
	key   *Key[T]
	value T
}

func (b *binding[T]) Name() string { return b.key.name }

func (b *binding[T]) Value() any { return b.value }

func (b *binding[T]) identity() any { return b.key }

// attach pushes a private copy so a resumption cannot mutate the snapshot.
func (b *binding[T]) attach() *Guard {
	return b.key.Attach(b.key.copy(b.value))
}

// Capturer is implemented by every *Key[T].
type Capturer interface {
	Name() string
	CaptureCurrent() (Binding, bool)
}

// Snapshot is an immutable, ordered set of bindings, at most one per key.
// The zero value is an empty snapshot. Snapshots may be read from any
// goroutine.
type Snapshot struct {
	bindings []Binding
}

// NewSnapshot builds a snapshot from explicit bindings. A later binding for
// the same key replaces an earlier one.
func NewSnapshot(bindings ...Binding) Snapshot {
	var s Snapshot
	for _, b := range bindings {
		s = s.With(b)
	}
	return s
}

// Capture reads the current value of each key on this goroutine. Keys with
// no value attached are left out.
func Capture(keys ...Capturer) Snapshot {
	var s Snapshot
	for _, k := range keys {
		if b, ok := k.CaptureCurrent(); ok {
			s = s.With(b)
		}
	}
	return s
}

// With returns a copy of s in which b is bound. An existing binding for the
// same key is replaced in place.
func (s Snapshot) With(b Binding) Snapshot {
	if b == nil {
		return s
	}

	out := slices.Clone(s.bindings)
	for i, existing := range out {
		if existing.identity() == b.identity() {
			out[i] = b
			return Snapshot{bindings: out}
		}
	}

	return Snapshot{bindings: append(out, b)}
}

// Merge returns s with every binding of other applied on top.
func (s Snapshot) Merge(other Snapshot) Snapshot {
	for _, b := range other.bindings {
		s = s.With(b)
	}
	return s
}

// Len returns the number of bindings.
func (s Snapshot) Len() int {
	return len(s.bindings)
}

// Names returns the bound key names in attach order.
func (s Snapshot) Names() []string {
	names := make([]string, len(s.bindings))
	for i, b := range s.bindings {
		names[i] = b.Name()
	}
	return names
}

// Bindings returns the bindings in attach order.
func (s Snapshot) Bindings() []Binding {
	return slices.Clone(s.bindings)
}

// Attach makes every binding current on this goroutine and returns the
// function that restores the previous values, in reverse order. The release
// function must be called on the same goroutine; calling it again is a no-op.
func (s Snapshot) Attach() (release func()) {
	if len(s.bindings) == 0 {
		return func() {}
	}

	guards := make([]*Guard, 0, len(s.bindings))
	for _, b := range s.bindings {
		guards = append(guards, b.attach())
	}

	return func() {
		for i := len(guards) - 1; i >= 0; i-- {
			releaseAndLog(guards[i])
		}
	}
}

// Run executes body with the snapshot attached.
func (s Snapshot) Run(body func()) {
	release := s.Attach()
	defer release()

	body()
}

// Func returns fn decorated to run inside the snapshot, wherever and
// whenever it is eventually called.
func (s Snapshot) Func(fn func()) func() {
	return func() {
		s.Run(fn)
	}
}

// SnapshotFunc decorates a one-argument function to run inside snap.
func SnapshotFunc[A, R any](snap Snapshot, fn func(A) R) func(A) R {
	return func(a A) R {
		release := snap.Attach()
		defer release()

		return fn(a)
	}
}
