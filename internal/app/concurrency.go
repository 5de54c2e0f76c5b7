package app

import (
	"context"
	"fmt"

	"github.com/jsamuelsen/go-ambient/internal/ambient"
	"github.com/jsamuelsen/go-ambient/internal/domain"
)

// The helpers below run each function on its own goroutine with the caller's
// ambient values (domain.AmbientKeys) attached, so trace and tenant ids read
// inside fn are the caller's.

// Parallel executes multiple functions concurrently and returns on first error.
// All goroutines are canceled when any function returns an error.
//
// Example:
//
//	ids, err := Parallel(ctx,
//	    func(ctx context.Context) (string, error) { return fetchA(ctx) },
//	    func(ctx context.Context) (string, error) { return fetchB(ctx) },
//	)
func Parallel[T any](ctx context.Context, fns ...func(context.Context) (T, error)) ([]T, error) {
	return ParallelLimit(ctx, -1, fns...)
}

// ParallelLimit executes functions with bounded concurrency.
// At most 'limit' goroutines run simultaneously; a limit <= 0 means no limit.
func ParallelLimit[T any](
	ctx context.Context,
	limit int,
	fns ...func(context.Context) (T, error),
) ([]T, error) {
	if limit <= 0 {
		limit = -1
	}

	g, ctx := ambient.NewGroup(ctx, domain.AmbientKeys()...)
	g.SetLimit(limit)

	results := make([]T, len(fns))

	for i, fn := range fns {
		g.Go(func() error {
			result, err := fn(ctx)
			if err != nil {
				return err
			}

			results[i] = result

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("parallel execution failed: %w", err)
	}

	return results, nil
}

// PartialResult holds a result or an error for partial success patterns.
type PartialResult[T any] struct {
	Value T
	Err   error
}

// ParallelPartial executes functions with bounded concurrency and collects
// every result, even on partial failure. Unlike Parallel, it does not cancel
// on first error. A limit <= 0 means no limit.
func ParallelPartial[T any](
	ctx context.Context,
	limit int,
	fns ...func(context.Context) (T, error),
) []PartialResult[T] {
	if limit <= 0 {
		limit = -1
	}

	// The group context is not used: a failure must not cancel siblings.
	g, _ := ambient.NewGroup(ctx, domain.AmbientKeys()...)
	g.SetLimit(limit)

	results := make([]PartialResult[T], len(fns))

	for i, fn := range fns {
		g.Go(func() error {
			value, err := fn(ctx)
			results[i] = PartialResult[T]{Value: value, Err: err}

			return nil
		})
	}

	_ = g.Wait()

	return results
}
