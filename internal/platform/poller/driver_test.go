package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/petermattis/goid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/go-ambient/internal/ambient"
)

type label string

// yielding reports pending for the given number of polls, recording the
// ambient label and goroutine seen on each.
type yielding struct {
	key     *ambient.Key[label]
	yields  int
	polls   int
	seen    []label
	missing int
	workers map[int64]struct{}
}

func (y *yielding) Poll(context.Context) (int, bool, error) {
	y.polls++
	if y.workers == nil {
		y.workers = make(map[int64]struct{})
	}
	y.workers[goid.Get()] = struct{}{}

	if v, ok := y.key.TryCurrent(); ok {
		y.seen = append(y.seen, v)
	} else {
		y.missing++
	}

	if y.polls <= y.yields {
		return 0, false, nil
	}
	return y.polls, true, nil
}

func newTestDriver(t *testing.T, cfg Config) *Driver {
	t.Helper()

	d := New(cfg, nil)
	t.Cleanup(d.Stop)

	return d
}

func waitFor[T any](t *testing.T, h *Handle[T]) (T, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return h.Wait(ctx)
}

func TestSpawn_ReadyTask(t *testing.T) {
	d := newTestDriver(t, Config{Size: 2})

	h, err := Spawn(d, ambient.Ready("done", nil))
	require.NoError(t, err)

	v, err := waitFor(t, h)
	require.NoError(t, err)
	assert.Equal(t, "done", v)
	assert.Equal(t, int64(1), h.Polls())
	assert.NotZero(t, h.ID())
}

func TestSpawn_ErrorPassesThrough(t *testing.T) {
	d := newTestDriver(t, Config{Size: 1})
	expectedErr := errors.New("boom")

	h, err := Spawn(d, ambient.Ready(0, expectedErr))
	require.NoError(t, err)

	_, err = waitFor(t, h)
	assert.Same(t, expectedErr, err)
}

func TestDriver_WrappedTasksDoNotLeak(t *testing.T) {
	d := newTestDriver(t, Config{Size: 4})
	key := ambient.Declare[label]("label")

	const tasks = 16

	inner := make([]*yielding, tasks)
	handles := make([]*Handle[int], tasks)

	for i := range tasks {
		inner[i] = &yielding{key: key, yields: 20}

		h, err := Spawn[int](d, ambient.WithValue[int](inner[i], key, label(fmt.Sprintf("task-%d", i))))
		require.NoError(t, err)
		handles[i] = h
	}

	// plain tasks polled on the same workers must never observe a label
	plain := &yielding{key: key, yields: 50}
	ph, err := Spawn[int](d, plain)
	require.NoError(t, err)

	for i, h := range handles {
		v, err := waitFor(t, h)
		require.NoError(t, err)
		assert.Equal(t, 21, v)

		for _, got := range inner[i].seen {
			assert.Equal(t, label(fmt.Sprintf("task-%d", i)), got)
		}
		assert.Zero(t, inner[i].missing)
		t.Logf("task %d polled on %d goroutines", i, len(inner[i].workers))
	}

	_, err = waitFor(t, ph)
	require.NoError(t, err)
	assert.Empty(t, plain.seen)
	assert.Equal(t, 51, plain.missing)
}

type stuck struct {
	cancelled atomic.Bool
}

func (s *stuck) Poll(context.Context) (int, bool, error) { return 0, false, nil }

func (s *stuck) Cancel() { s.cancelled.Store(true) }

func TestHandle_Cancel(t *testing.T) {
	d := newTestDriver(t, Config{Size: 1, PollInterval: time.Millisecond})
	task := &stuck{}

	h, err := Spawn[int](d, task)
	require.NoError(t, err)

	h.Cancel()

	_, err = waitFor(t, h)
	require.ErrorIs(t, err, ambient.ErrCancelled)
	assert.True(t, task.cancelled.Load())
	assert.Eventually(t, func() bool { return d.Active() == 0 }, time.Second, time.Millisecond)
}

func TestDriver_RecoversPanics(t *testing.T) {
	d := newTestDriver(t, Config{Size: 1})

	h, err := Spawn(d, ambient.TaskFunc[int](func(context.Context) (int, bool, error) {
		panic("kaboom")
	}))
	require.NoError(t, err)

	_, err = waitFor(t, h)

	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "kaboom", perr.Value)
	assert.NotEmpty(t, perr.Stack)

	// the single worker survives
	h2, err := Spawn(d, ambient.Ready(7, nil))
	require.NoError(t, err)

	v, err := waitFor(t, h2)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

// brokenCancel never finishes and panics when cancelled.
type brokenCancel struct{}

func (brokenCancel) Poll(context.Context) (int, bool, error) { return 0, false, nil }

func (brokenCancel) Cancel() { panic("cancel failed") }

func TestHandle_CancelPanicBecomesOutcome(t *testing.T) {
	d := newTestDriver(t, Config{Size: 1, PollInterval: time.Millisecond})

	h, err := Spawn[int](d, brokenCancel{})
	require.NoError(t, err)

	h.Cancel()

	_, err = waitFor(t, h)

	var perr *PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "cancel failed", perr.Value)
	assert.NotEmpty(t, perr.Stack)
	assert.Eventually(t, func() bool { return d.Active() == 0 }, time.Second, time.Millisecond)

	// the single worker survives
	h2, err := Spawn(d, ambient.Ready(3, nil))
	require.NoError(t, err)

	v, err := waitFor(t, h2)
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestDriver_Stop(t *testing.T) {
	d := New(Config{Size: 2, PollInterval: time.Millisecond}, nil)

	h, err := Spawn[int](d, &stuck{})
	require.NoError(t, err)

	require.NoError(t, d.Check(context.Background()))

	d.Stop()
	d.Stop()

	_, err = waitFor(t, h)
	require.ErrorIs(t, err, ErrStopped)

	_, err = Spawn(d, ambient.Ready(1, nil))
	require.ErrorIs(t, err, ErrStopped)

	require.ErrorIs(t, d.Check(context.Background()), ErrStopped)
	assert.Equal(t, 0, d.Active())
}

func TestHandle_WaitRespectsContext(t *testing.T) {
	d := newTestDriver(t, Config{Size: 1, PollInterval: time.Millisecond})

	h, err := Spawn[int](d, &stuck{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err = h.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	h.Cancel()
}

func TestDriver_ConcurrentSpawn(t *testing.T) {
	d := newTestDriver(t, Config{Size: 4})

	var wg sync.WaitGroup
	results := make([]int, 32)

	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()

			h, err := Spawn(d, ambient.Ready(i, nil))
			if !assert.NoError(t, err) {
				return
			}

			v, err := waitFor(t, h)
			assert.NoError(t, err)
			results[i] = v
		}()
	}

	wg.Wait()

	for i, v := range results {
		assert.Equal(t, i, v)
	}
}

func TestDriver_Defaults(t *testing.T) {
	d := newTestDriver(t, Config{})

	assert.Positive(t, d.Size())
	assert.Equal(t, "poller", d.Name())
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "ok", outcome(nil))
	assert.Equal(t, "cancelled", outcome(ambient.ErrCancelled))
	assert.Equal(t, "panic", outcome(&PanicError{Value: 1}))
	assert.Equal(t, "error", outcome(ErrStopped))
}
