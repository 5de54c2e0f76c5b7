package app

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/go-ambient/internal/adapters/storage"
	"github.com/jsamuelsen/go-ambient/internal/ambient"
	"github.com/jsamuelsen/go-ambient/internal/domain"
	"github.com/jsamuelsen/go-ambient/internal/platform/poller"
	"github.com/jsamuelsen/go-ambient/internal/ports"
)

// fakeDownstream records the trace id visible on the goroutine that calls it.
type fakeDownstream struct {
	mu     sync.Mutex
	status int
	err    error
	seen   map[string]domain.TraceID

	started chan struct{}
	release chan struct{}
}

func (f *fakeDownstream) Fetch(ctx context.Context, path string) (*ports.DownstreamResult, error) {
	f.mu.Lock()
	if f.seen == nil {
		f.seen = make(map[string]domain.TraceID)
	}
	f.seen[path] = domain.TraceIDs.Current()
	f.mu.Unlock()

	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}

	if f.err != nil {
		return nil, f.err
	}

	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("missing deadline")
	}

	return &ports.DownstreamResult{Status: f.status}, nil
}

func (f *fakeDownstream) traceFor(path string) domain.TraceID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[path]
}

func newJobService(t *testing.T, down ports.Downstream) *JobService {
	t.Helper()

	driver := poller.New(poller.Config{Size: 2}, nil)
	t.Cleanup(driver.Stop)

	return NewJobService(JobServiceConfig{
		Driver:     driver,
		Store:      storage.NewMemoryJobStore(),
		Downstream: down,
		Deadline:   time.Second,
	})
}

func submitAs(t *testing.T, svc *JobService, trace domain.TraceID, req JobRequest) *domain.Job {
	t.Helper()

	var (
		job *domain.Job
		err error
	)
	ambient.NewSnapshot(
		domain.TraceIDs.Bind(trace),
		domain.Tenants.Bind("acme"),
	).Run(func() {
		job, err = svc.Submit(context.Background(), req)
	})
	require.NoError(t, err)

	return job
}

func wait(t *testing.T, svc *JobService, id string) *domain.Job {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	job, err := svc.Wait(ctx, id)
	require.NoError(t, err)

	return job
}

func TestNewJobService_PanicsWithoutDependencies(t *testing.T) {
	assert.Panics(t, func() { NewJobService(JobServiceConfig{}) })
}

func TestJobService_Submit(t *testing.T) {
	down := &fakeDownstream{status: http.StatusOK}
	svc := newJobService(t, down)

	job := submitAs(t, svc, "trace-1", JobRequest{Name: "probe", Target: "/status"})

	assert.Equal(t, domain.JobPending, job.Status)
	assert.Equal(t, domain.TraceID("trace-1"), job.TraceID)
	assert.Equal(t, domain.TenantID("acme"), job.Tenant)

	done := wait(t, svc, job.ID)

	assert.Equal(t, domain.JobSucceeded, done.Status)
	assert.Equal(t, domain.TraceID("trace-1"), done.ObservedTraceID)
	assert.Equal(t, http.StatusOK, done.DownstreamStatus)
	assert.Equal(t, []string{"validate", "perform", "verify", "archive", "respond"}, done.Steps)
	assert.False(t, done.CompletedAt.IsZero())
	assert.Equal(t, domain.TraceID("trace-1"), down.traceFor("/status"))

	// The submitting goroutine is left clean.
	_, ok := domain.TraceIDs.TryCurrent()
	assert.False(t, ok)
}

func TestJobService_Submit_Validation(t *testing.T) {
	svc := newJobService(t, &fakeDownstream{status: http.StatusOK})

	tests := []struct {
		name  string
		req   JobRequest
		field string
	}{
		{name: "missing name", req: JobRequest{Target: "/x"}, field: "name"},
		{name: "relative target", req: JobRequest{Name: "n", Target: "x"}, field: "target"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tt.req)

			require.True(t, domain.IsValidation(err))

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestJobService_Failures(t *testing.T) {
	tests := []struct {
		name string
		down *fakeDownstream
		msg  string
	}{
		{name: "downstream error", down: &fakeDownstream{err: errors.New("unreachable")}, msg: "unreachable"},
		{name: "downstream status", down: &fakeDownstream{status: http.StatusBadGateway}, msg: "downstream returned 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newJobService(t, tt.down)

			job := submitAs(t, svc, "trace-f", JobRequest{Name: "probe", Target: "/x"})
			done := wait(t, svc, job.ID)

			assert.Equal(t, domain.JobFailed, done.Status)
			assert.Contains(t, done.Error, tt.msg)
			assert.Zero(t, done.DownstreamStatus)
		})
	}
}

func TestJobService_Cancel(t *testing.T) {
	down := &fakeDownstream{
		status:  http.StatusOK,
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := newJobService(t, down)

	job := submitAs(t, svc, "trace-c", JobRequest{Name: "slow", Target: "/slow"})

	<-down.started
	_, err := svc.Cancel(context.Background(), job.ID)
	require.NoError(t, err)
	close(down.release)

	done := wait(t, svc, job.ID)
	assert.Equal(t, domain.JobCancelled, done.Status)
	assert.Contains(t, done.Error, "cancelled")

	_, err = svc.Cancel(context.Background(), job.ID)
	assert.True(t, domain.IsConflict(err))

	_, err = svc.Cancel(context.Background(), "missing")
	assert.True(t, domain.IsNotFound(err))
}

// gatedStore holds back the update that records a job's outcome until
// release is closed. finishing is closed when that update arrives.
type gatedStore struct {
	ports.JobStore

	once      sync.Once
	finishing chan struct{}
	release   chan struct{}
}

func (g *gatedStore) Update(ctx context.Context, id string, fn func(*domain.Job) error) (*domain.Job, error) {
	if job, err := g.JobStore.Get(ctx, id); err == nil && fn(job) == nil && job.Status.Terminal() {
		g.once.Do(func() { close(g.finishing) })
		<-g.release
	}

	return g.JobStore.Update(ctx, id, fn)
}

func TestJobService_CancelAfterTaskFinished(t *testing.T) {
	store := &gatedStore{
		JobStore:  storage.NewMemoryJobStore(),
		finishing: make(chan struct{}),
		release:   make(chan struct{}),
	}

	driver := poller.New(poller.Config{Size: 1}, nil)
	t.Cleanup(driver.Stop)

	svc := NewJobService(JobServiceConfig{
		Driver:     driver,
		Store:      store,
		Downstream: &fakeDownstream{status: http.StatusOK},
		Deadline:   time.Second,
	})

	job := submitAs(t, svc, "trace-late", JobRequest{Name: "quick", Target: "/quick"})

	// the task is done but its outcome is not stored yet
	<-store.finishing

	_, err := svc.Cancel(context.Background(), job.ID)
	assert.True(t, domain.IsConflict(err), "cancelling a finished task must not be accepted")

	close(store.release)

	done := wait(t, svc, job.ID)
	assert.Equal(t, domain.JobSucceeded, done.Status)
}

func TestJobService_SubmitBatch(t *testing.T) {
	down := &fakeDownstream{status: http.StatusNoContent}
	svc := newJobService(t, down)

	var (
		results []BatchResult
		err     error
	)
	domain.TraceIDs.Run("trace-batch", func() {
		results, err = svc.SubmitBatch(context.Background(), []JobRequest{
			{Name: "a", Target: "/a"},
			{Name: "", Target: "/b"},
			{Name: "c", Target: "/c"},
		})
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.NoError(t, results[0].Err)
	assert.True(t, domain.IsValidation(results[1].Err))
	require.NoError(t, results[2].Err)

	for _, r := range []BatchResult{results[0], results[2]} {
		assert.Equal(t, domain.TraceID("trace-batch"), r.Job.TraceID)
		done := wait(t, svc, r.Job.ID)
		assert.Equal(t, domain.JobSucceeded, done.Status)
		assert.Equal(t, domain.TraceID("trace-batch"), done.ObservedTraceID)
	}

	_, err = svc.SubmitBatch(context.Background(), nil)
	assert.True(t, domain.IsValidation(err))
}

func TestJobService_List(t *testing.T) {
	svc := newJobService(t, &fakeDownstream{status: http.StatusOK})

	first := submitAs(t, svc, "t1", JobRequest{Name: "one", Target: "/1"})
	second := submitAs(t, svc, "t2", JobRequest{Name: "two", Target: "/2"})

	page, err := svc.List(context.Background(), "", 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)

	page, err = svc.List(context.Background(), first.ID, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, second.ID, page[0].ID)

	got, err := svc.Get(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, "two", got.Name)
}

func TestJobService_SubmitAfterStop(t *testing.T) {
	driver := poller.New(poller.Config{Size: 1}, nil)
	driver.Stop()

	svc := NewJobService(JobServiceConfig{
		Driver:     driver,
		Store:      storage.NewMemoryJobStore(),
		Downstream: &fakeDownstream{},
	})

	_, err := svc.Submit(context.Background(), JobRequest{Name: "late", Target: "/x"})
	assert.True(t, domain.IsUnavailable(err))
}
