package ambient

import "log/slog"

type popper interface {
	pop(gid int64, serial uint64) error
}

// Guard keeps one pushed value current until it is released. Release restores
// the value that was current before the push.
//
// A Guard belongs to the goroutine that created it and is not safe for
// concurrent use. Prefer the scoped forms (Key.Run, With, Snapshot.Run) which
// release on every exit path.
type Guard struct {
	name     string
	gid      int64
	serial   uint64
	slot     popper
	released bool
}

// Release restores the previous value. Only the first successful call has an
// effect; later calls return nil.
//
// Releasing on another goroutine returns ErrForeignGoroutine and changes
// nothing. Releasing while newer guards for the same key are outstanding
// returns ErrOutOfOrder after discarding those newer values.
func (g *Guard) Release() error {
	if g == nil || g.released {
		return nil
	}

	if goroutineID() != g.gid {
		return &GuardError{Key: g.name, Err: ErrForeignGoroutine}
	}

	g.released = true

	if err := g.slot.pop(g.gid, g.serial); err != nil {
		return &GuardError{Key: g.name, Err: err}
	}

	return nil
}

// Released reports whether the guard has already restored its value.
func (g *Guard) Released() bool {
	return g == nil || g.released
}

// releaseAndLog is used on deferred paths where no error can be returned.
func releaseAndLog(g *Guard) {
	if err := g.Release(); err != nil {
		slog.Default().Error("ambient guard release failed",
			slog.String("key", g.name),
			slog.Any("error", err),
		)
	}
}
