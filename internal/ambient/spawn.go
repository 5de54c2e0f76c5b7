package ambient

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Go runs fn on a new goroutine with snap attached.
func Go(snap Snapshot, fn func()) {
	go snap.Run(fn)
}

// Group is an errgroup.Group whose goroutines inherit the ambient values
// captured when the group was created.
type Group struct {
	g    *errgroup.Group
	snap Snapshot
}

// NewGroup captures keys on the calling goroutine and returns a group bound
// to a context derived from ctx, as errgroup.WithContext does.
func NewGroup(ctx context.Context, keys ...Capturer) (*Group, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	return &Group{g: g, snap: Capture(keys...)}, ctx
}

// NewGroupWithSnapshot returns a group that attaches snap in every goroutine.
func NewGroupWithSnapshot(ctx context.Context, snap Snapshot) (*Group, context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	return &Group{g: g, snap: snap}, ctx
}

// SetLimit limits the number of active goroutines, see errgroup.Group.SetLimit.
func (g *Group) SetLimit(n int) {
	g.g.SetLimit(n)
}

// Go calls fn on a new goroutine with the group's snapshot attached.
func (g *Group) Go(fn func() error) {
	g.g.Go(func() error {
		release := g.snap.Attach()
		defer release()

		return fn()
	})
}

// Wait blocks until all goroutines have returned and returns the first error.
func (g *Group) Wait() error {
	return g.g.Wait()
}

// Snapshot returns the snapshot attached in each goroutine.
func (g *Group) Snapshot() Snapshot {
	return g.snap
}
