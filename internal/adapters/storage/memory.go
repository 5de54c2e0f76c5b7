// Package storage provides job store adapters.
package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/jsamuelsen/go-ambient/internal/domain"
)

// MemoryJobStore keeps jobs in process memory. Jobs are returned as copies so
// callers never share state with the store.
type MemoryJobStore struct {
	mu    sync.RWMutex
	jobs  map[string]*domain.Job
	order []string
}

// NewMemoryJobStore creates an empty store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*domain.Job)}
}

// Create stores a new job.
func (s *MemoryJobStore) Create(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return domain.NewConflictError("job", "id "+job.ID+" already exists")
	}

	s.jobs[job.ID] = clone(job)
	s.order = append(s.order, job.ID)

	return nil
}

// Get returns a copy of the job with the given id.
func (s *MemoryJobStore) Get(_ context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.NewNotFoundError("job", id)
	}

	return clone(job), nil
}

// Update applies fn to a copy of the stored job and saves it if fn succeeds.
func (s *MemoryJobStore) Update(_ context.Context, id string, fn func(*domain.Job) error) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.NewNotFoundError("job", id)
	}

	updated := clone(job)
	if err := fn(updated); err != nil {
		return nil, err
	}

	s.jobs[id] = updated

	return clone(updated), nil
}

// List returns up to limit jobs in creation order after the given id.
// An unknown cursor yields an empty page.
func (s *MemoryJobStore) List(_ context.Context, after string, limit int) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if after != "" {
		i := slices.Index(s.order, after)
		if i < 0 {
			return []*domain.Job{}, nil
		}
		start = i + 1
	}

	end := len(s.order)
	if limit > 0 {
		end = min(end, start+limit)
	}

	page := make([]*domain.Job, 0, end-start)
	for _, id := range s.order[start:end] {
		page = append(page, clone(s.jobs[id]))
	}

	return page, nil
}

func clone(job *domain.Job) *domain.Job {
	c := *job
	c.Steps = slices.Clone(job.Steps)
	return &c
}
