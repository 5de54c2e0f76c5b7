package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jsamuelsen/go-ambient/internal/ambient"
	"github.com/jsamuelsen/go-ambient/internal/domain"
	"github.com/jsamuelsen/go-ambient/internal/platform/poller"
	"github.com/jsamuelsen/go-ambient/internal/ports"
)

const (
	defaultJobDeadline = time.Minute
	batchConcurrency   = 4
	maxBatchSize       = 20
)

// JobRequest describes a job to submit.
type JobRequest struct {
	// Name is a free-form label.
	Name string

	// Target is the downstream path the job fetches, starting with "/".
	Target string
}

// JobServiceConfig configures a JobService.
type JobServiceConfig struct {
	Driver     *poller.Driver
	Store      ports.JobStore
	Downstream ports.Downstream

	// Deadline bounds each job, measured from submission.
	Deadline time.Duration

	Logger *slog.Logger
}

// JobService runs jobs in the background on the poll driver. Each job carries
// the ambient values of the goroutine that submitted it.
type JobService struct {
	driver     *poller.Driver
	store      ports.JobStore
	downstream ports.Downstream
	exec       *Executor
	deadline   time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	running map[string]*runningJob
}

type runningJob struct {
	handle *poller.Handle[*domain.Job]

	// recorded is closed once the outcome is in the store.
	recorded chan struct{}
}

// NewJobService creates a job service. It panics if a dependency is missing.
func NewJobService(cfg JobServiceConfig) *JobService {
	if cfg.Driver == nil || cfg.Store == nil || cfg.Downstream == nil {
		panic("app: job service requires a driver, a store and a downstream")
	}

	if cfg.Deadline <= 0 {
		cfg.Deadline = defaultJobDeadline
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "app.JobService"))

	return &JobService{
		driver:     cfg.Driver,
		store:      cfg.Store,
		downstream: cfg.Downstream,
		exec:       NewExecutor(logger),
		deadline:   cfg.Deadline,
		logger:     logger,
		running:    make(map[string]*runningJob),
	}
}

// Submit stores a pending job and spawns it. The job captures the caller's
// ambient values now and is bounded by a fresh deadline.
func (s *JobService) Submit(ctx context.Context, req JobRequest) (*domain.Job, error) {
	if err := validateJobRequest(req); err != nil {
		return nil, err
	}

	job := &domain.Job{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Target:        req.Target,
		Status:        domain.JobPending,
		TraceID:       domain.TraceIDs.Current(),
		RequestID:     domain.RequestIDs.Current(),
		CorrelationID: domain.CorrelationIDs.Current(),
		Tenant:        domain.Tenants.Current(),
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("storing job: %w", err)
	}

	task := ambient.WithCurrent(NewStaged(s.exec, s.operation(), job.ID), domain.AmbientKeys()...).
		With(domain.Deadlines.Bind(domain.DeadlineAfter(s.deadline)))
	snap := task.Snapshot()

	h, err := poller.Spawn(s.driver, task)
	if err != nil {
		s.complete(job.ID, err)
		return nil, domain.NewUnavailableError("poller", err.Error())
	}

	run := &runningJob{handle: h, recorded: make(chan struct{})}

	s.mu.Lock()
	s.running[job.ID] = run
	s.mu.Unlock()

	ambient.Go(snap, func() { s.await(job.ID, run) })

	s.logger.InfoContext(ctx, "job submitted",
		slog.String("job_id", job.ID),
		slog.String("target", job.Target),
	)

	return job, nil
}

// BatchResult is the outcome of one request of a batch.
type BatchResult struct {
	Job *domain.Job
	Err error
}

// SubmitBatch submits each request concurrently. A failing request does not
// stop the others.
func (s *JobService) SubmitBatch(ctx context.Context, reqs []JobRequest) ([]BatchResult, error) {
	if len(reqs) == 0 || len(reqs) > maxBatchSize {
		return nil, domain.NewValidationError("jobs", fmt.Sprintf("must contain between 1 and %d jobs", maxBatchSize))
	}

	fns := make([]func(context.Context) (*domain.Job, error), len(reqs))
	for i, req := range reqs {
		fns[i] = func(ctx context.Context) (*domain.Job, error) {
			return s.Submit(ctx, req)
		}
	}

	partial := ParallelPartial(ctx, batchConcurrency, fns...)

	results := make([]BatchResult, len(partial))
	for i, r := range partial {
		results[i] = BatchResult{Job: r.Value, Err: r.Err}
	}

	return results, nil
}

// Get returns the job with the given id.
func (s *JobService) Get(ctx context.Context, id string) (*domain.Job, error) {
	return s.store.Get(ctx, id)
}

// List returns a page of jobs after the given cursor.
func (s *JobService) List(ctx context.Context, after string, limit int) ([]*domain.Job, error) {
	return s.store.List(ctx, after, limit)
}

// Cancel asks a running job to stop. It returns domain.ErrConflict if the
// job has already finished.
func (s *JobService) Cancel(ctx context.Context, id string) (*domain.Job, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	run, ok := s.running[id]
	s.mu.Unlock()

	if !ok || job.Status.Terminal() {
		return nil, domain.NewConflictError("job", "job "+id+" is already "+string(job.Status))
	}

	// the task may have finished before its outcome was recorded
	select {
	case <-run.handle.Done():
		return nil, domain.NewConflictError("job", "job "+id+" has already finished")
	default:
	}

	run.handle.Cancel()
	s.logger.InfoContext(ctx, "job cancellation requested", slog.String("job_id", id))

	return job, nil
}

// Wait blocks until the job finishes or ctx is done and returns its final state.
func (s *JobService) Wait(ctx context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	run, ok := s.running[id]
	s.mu.Unlock()

	if ok {
		select {
		case <-run.recorded:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return s.store.Get(ctx, id)
}

// await records the outcome of a job. It runs with the job's snapshot
// attached so its log lines carry the job's ids.
func (s *JobService) await(id string, run *runningJob) {
	_, err := run.handle.Wait(context.Background())

	s.complete(id, err)
	close(run.recorded)

	s.mu.Lock()
	delete(s.running, id)
	s.mu.Unlock()
}

func (s *JobService) complete(id string, err error) {
	job, updateErr := s.store.Update(context.Background(), id, func(j *domain.Job) error {
		j.CompletedAt = time.Now().UTC()

		switch {
		case err == nil:
			j.Status = domain.JobSucceeded
		case errors.Is(err, ambient.ErrCancelled), errors.Is(err, poller.ErrStopped):
			j.Status = domain.JobCancelled
			j.Error = err.Error()
		default:
			j.Status = domain.JobFailed
			j.Error = err.Error()
		}

		return nil
	})
	if updateErr != nil {
		s.logger.Error("recording job outcome failed",
			slog.String("job_id", id),
			slog.Any("error", updateErr),
		)
		return
	}

	s.logger.Info("job finished",
		slog.String("job_id", id),
		slog.String("status", string(job.Status)),
	)
}

// jobResult is what the perform step observed downstream.
type jobResult struct {
	status int
}

func (s *JobService) operation() Operation[string, *ports.DownstreamResult, jobResult, *domain.Job] {
	return Operation[string, *ports.DownstreamResult, jobResult, *domain.Job]{
		Name: "job",
		OnStep: func(ctx context.Context, id string, step ExecutionStep) {
			_, err := s.store.Update(ctx, id, func(j *domain.Job) error {
				j.Steps = append(j.Steps, string(step))
				return nil
			})
			if err != nil {
				s.logger.WarnContext(ctx, "recording job step failed", slog.Any("error", err))
			}
		},
		Validate: func(ctx context.Context, id string) error {
			if domain.Deadlines.Current().Expired() {
				return fmt.Errorf("job deadline passed: %w", context.DeadlineExceeded)
			}

			_, err := s.store.Update(ctx, id, func(j *domain.Job) error {
				j.Status = domain.JobRunning
				j.ObservedTraceID = domain.TraceIDs.Current()
				return nil
			})

			return err
		},
		Perform: func(ctx context.Context, id string) (*ports.DownstreamResult, error) {
			job, err := s.store.Get(ctx, id)
			if err != nil {
				return nil, err
			}

			ctx, cancel := domain.ContextWithDeadline(ctx)
			defer cancel()

			return s.downstream.Fetch(ctx, job.Target)
		},
		Verify: func(_ context.Context, _ string, res *ports.DownstreamResult) (jobResult, error) {
			if res == nil {
				return jobResult{}, errors.New("no downstream response")
			}

			if res.Status >= http.StatusBadRequest {
				return jobResult{status: res.Status}, fmt.Errorf("downstream returned %d", res.Status)
			}

			return jobResult{status: res.Status}, nil
		},
		Archive: func(ctx context.Context, id string, verified jobResult) error {
			_, err := s.store.Update(ctx, id, func(j *domain.Job) error {
				j.DownstreamStatus = verified.status
				return nil
			})

			return err
		},
		Respond: func(ctx context.Context, id string, _ jobResult) (*domain.Job, error) {
			return s.store.Get(ctx, id)
		},
	}
}

func validateJobRequest(req JobRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return domain.NewValidationError("name", "is required")
	}

	if !strings.HasPrefix(req.Target, "/") {
		return domain.NewValidationError("target", "must be a path starting with /")
	}

	return nil
}
