package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/go-ambient/internal/domain"
)

func readTrace(context.Context) (domain.TraceID, error) {
	return domain.TraceIDs.Current(), nil
}

func TestParallel(t *testing.T) {
	t.Run("returns results in order", func(t *testing.T) {
		results, err := Parallel(context.Background(),
			func(context.Context) (int, error) { return 1, nil },
			func(context.Context) (int, error) { return 2, nil },
			func(context.Context) (int, error) { return 3, nil },
		)

		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, results)
	})

	t.Run("first error cancels the rest", func(t *testing.T) {
		boom := errors.New("boom")

		_, err := Parallel(context.Background(),
			func(context.Context) (int, error) { return 0, boom },
			func(ctx context.Context) (int, error) {
				<-ctx.Done()
				return 0, ctx.Err()
			},
		)

		require.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "parallel execution failed")
	})

	t.Run("propagates ambient values", func(t *testing.T) {
		var results []domain.TraceID
		var err error

		domain.TraceIDs.Run("trace-par", func() {
			results, err = Parallel(context.Background(), readTrace, readTrace, readTrace)
		})

		require.NoError(t, err)
		assert.Equal(t, []domain.TraceID{"trace-par", "trace-par", "trace-par"}, results)
	})
}

func TestParallelLimit(t *testing.T) {
	var running, peak atomic.Int32

	fn := func(context.Context) (int, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return int(n), nil
	}

	results, err := ParallelLimit(context.Background(), 2, fn, fn, fn, fn, fn, fn)

	require.NoError(t, err)
	assert.Len(t, results, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestParallelPartial(t *testing.T) {
	boom := errors.New("boom")

	var results []PartialResult[domain.TenantID]
	domain.Tenants.Run("acme", func() {
		results = ParallelPartial(context.Background(), 0,
			func(context.Context) (domain.TenantID, error) { return domain.Tenants.Current(), nil },
			func(context.Context) (domain.TenantID, error) { return "", boom },
			func(ctx context.Context) (domain.TenantID, error) {
				// A sibling failure must not cancel this one.
				select {
				case <-ctx.Done():
					return "", ctx.Err()
				case <-time.After(10 * time.Millisecond):
					return domain.Tenants.Current(), nil
				}
			},
		)
	})

	require.Len(t, results, 3)
	require.NoError(t, results[0].Err)
	assert.Equal(t, domain.TenantID("acme"), results[0].Value)
	require.ErrorIs(t, results[1].Err, boom)
	require.NoError(t, results[2].Err)
	assert.Equal(t, domain.TenantID("acme"), results[2].Value)
}
