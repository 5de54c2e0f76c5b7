package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jsamuelsen/go-ambient/internal/app"
	"github.com/jsamuelsen/go-ambient/internal/domain"
	"github.com/jsamuelsen/go-ambient/internal/ports"
)

type mockHealthRegistry struct {
	mock.Mock
}

func (m *mockHealthRegistry) Register(checker ports.HealthChecker) error {
	return m.Called(checker).Error(0)
}

func (m *mockHealthRegistry) CheckAll(ctx context.Context) *ports.HealthResult {
	return m.Called(ctx).Get(0).(*ports.HealthResult)
}

type mockJobService struct {
	mock.Mock
}

func (m *mockJobService) Submit(ctx context.Context, req app.JobRequest) (*domain.Job, error) {
	args := m.Called(ctx, req)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func (m *mockJobService) SubmitBatch(ctx context.Context, reqs []app.JobRequest) ([]app.BatchResult, error) {
	args := m.Called(ctx, reqs)
	results, _ := args.Get(0).([]app.BatchResult)
	return results, args.Error(1)
}

func (m *mockJobService) Get(ctx context.Context, id string) (*domain.Job, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}

func (m *mockJobService) List(ctx context.Context, after string, limit int) ([]*domain.Job, error) {
	args := m.Called(ctx, after, limit)
	jobs, _ := args.Get(0).([]*domain.Job)
	return jobs, args.Error(1)
}

func (m *mockJobService) Cancel(ctx context.Context, id string) (*domain.Job, error) {
	args := m.Called(ctx, id)
	job, _ := args.Get(0).(*domain.Job)
	return job, args.Error(1)
}
