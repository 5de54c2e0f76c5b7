package domain

import "time"

// JobStatus is the lifecycle state of a background job.
type JobStatus string

// Job statuses.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSucceeded, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// Job is a unit of background work submitted through the API and driven by
// the poller. The ambient ids are those captured at submission.
type Job struct {
	ID            string
	Name          string
	Target        string
	Status        JobStatus
	TraceID       TraceID
	RequestID     RequestID
	CorrelationID CorrelationID
	Tenant        TenantID

	// ObservedTraceID is the trace id the job read from ambient storage
	// while it was running on a worker.
	ObservedTraceID TraceID

	Steps            []string
	DownstreamStatus int
	Error            string

	CreatedAt   time.Time
	CompletedAt time.Time
}
