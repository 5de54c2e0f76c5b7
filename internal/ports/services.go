// Package ports defines interfaces for external dependencies.
// Ports are contracts that adapters implement, allowing the application layer
// to depend on abstractions rather than concrete implementations.
//
// Port Design Principles:
//   - Context as first parameter (always) for cancellation and deadlines
//   - Return domain types, never external DTOs or infrastructure types
//   - Error returns use domain error types (ErrNotFound, ErrConflict, etc.)
//   - Ambient ids (trace, request, tenant) are read from ambient storage by
//     adapters, never threaded through these signatures
package ports

import (
	"context"

	"github.com/jsamuelsen/go-ambient/internal/domain"
)

// JobStore persists jobs.
type JobStore interface {
	// Create stores a new job.
	// Returns domain.ErrConflict if a job with the same ID exists.
	Create(ctx context.Context, job *domain.Job) error

	// Get returns a copy of the job.
	// Returns domain.ErrNotFound if the job does not exist.
	Get(ctx context.Context, id string) (*domain.Job, error)

	// Update applies fn to the stored job under the store's lock and returns a
	// copy of the result. An error from fn aborts the update.
	Update(ctx context.Context, id string, fn func(*domain.Job) error) (*domain.Job, error)

	// List returns up to limit jobs in creation order, starting after the job
	// with ID after ("" for the first page).
	List(ctx context.Context, after string, limit int) ([]*domain.Job, error)
}

// DownstreamResult is the outcome of a call to the downstream service.
type DownstreamResult struct {
	Status int
	Body   []byte
}

// Downstream calls the configured downstream service. Implementations forward
// the ambient ids of the calling goroutine as request headers.
type Downstream interface {
	// Fetch performs a GET on path.
	// Returns domain.ErrUnavailable if the service is unreachable.
	Fetch(ctx context.Context, path string) (*DownstreamResult, error)
}
