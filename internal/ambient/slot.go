package ambient

import (
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// goroutineID identifies the calling goroutine. Goroutine ids are never reused
// while the process runs.
func goroutineID() int64 {
	return goid.Get()
}

type entry[T any] struct {
	serial uint64
	value  T
}

// stack is touched only by the goroutine that owns it.
type stack[T any] struct {
	entries []entry[T]
}

// slot is the storage behind one key: a stack of values per goroutine.
// The map entry for a goroutine exists only while its stack is non-empty.
type slot[T any] struct {
	stacks sync.Map // int64 -> *stack[T]
	serial atomic.Uint64
}

func (s *slot[T]) local(gid int64) *stack[T] {
	if st, ok := s.stacks.Load(gid); ok {
		return st.(*stack[T])
	}
	return nil
}

// push makes v the current value for gid and returns the serial that
// identifies the pushed entry.
func (s *slot[T]) push(gid int64, v T) uint64 {
	st := s.local(gid)
	if st == nil {
		st = &stack[T]{}
		s.stacks.Store(gid, st)
	}

	serial := s.serial.Add(1)
	st.entries = append(st.entries, entry[T]{serial: serial, value: v})

	return serial
}

func (s *slot[T]) peek(gid int64) (T, bool) {
	var zero T

	st := s.local(gid)
	if st == nil || len(st.entries) == 0 {
		return zero, false
	}

	return st.entries[len(st.entries)-1].value, true
}

func (s *slot[T]) depth(gid int64) int {
	st := s.local(gid)
	if st == nil {
		return 0
	}
	return len(st.entries)
}

// pop restores the state that existed before the entry with the given serial
// was pushed. It returns ErrOutOfOrder when the entry was not on top; entries
// above it are discarded so storage is consistent again. An entry that is
// already gone is left alone.
func (s *slot[T]) pop(gid int64, serial uint64) error {
	st := s.local(gid)
	if st == nil {
		return ErrOutOfOrder
	}

	idx := -1
	for i := len(st.entries) - 1; i >= 0; i-- {
		if st.entries[i].serial == serial {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrOutOfOrder
	}

	var err error
	if idx != len(st.entries)-1 {
		err = ErrOutOfOrder
	}

	clear(st.entries[idx:])
	st.entries = st.entries[:idx]

	if len(st.entries) == 0 {
		s.stacks.Delete(gid)
	}

	return err
}
