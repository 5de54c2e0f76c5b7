package dto

import (
	"time"

	"github.com/jsamuelsen/go-ambient/internal/domain"
)

// CreateJobRequest is the body of POST /api/v1/jobs.
type CreateJobRequest struct {
	Name   string `json:"name"   validate:"required,notempty,max=100"`
	Target string `json:"target" validate:"required,startswith=/,max=2048"`
}

// BatchCreateJobsRequest is the body of POST /api/v1/jobs/batch.
type BatchCreateJobsRequest struct {
	Jobs []CreateJobRequest `json:"jobs" validate:"required,min=1,max=20,dive"`
}

// JobPath binds the :id path parameter.
type JobPath struct {
	ID string `uri:"id" json:"id" validate:"required,uuid"`
}

// JobResponse is the API view of a job.
type JobResponse struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Target           string     `json:"target"`
	Status           string     `json:"status"`
	TraceID          string     `json:"traceId,omitempty"`
	RequestID        string     `json:"requestId,omitempty"`
	CorrelationID    string     `json:"correlationId,omitempty"`
	Tenant           string     `json:"tenant"`
	ObservedTraceID  string     `json:"observedTraceId,omitempty"`
	Steps            []string   `json:"steps"`
	DownstreamStatus int        `json:"downstreamStatus,omitempty"`
	Error            string     `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// NewJobResponse converts a domain job.
func NewJobResponse(job *domain.Job) *JobResponse {
	resp := &JobResponse{
		ID:               job.ID,
		Name:             job.Name,
		Target:           job.Target,
		Status:           string(job.Status),
		TraceID:          string(job.TraceID),
		RequestID:        string(job.RequestID),
		CorrelationID:    string(job.CorrelationID),
		Tenant:           string(job.Tenant),
		ObservedTraceID:  string(job.ObservedTraceID),
		Steps:            job.Steps,
		DownstreamStatus: job.DownstreamStatus,
		Error:            job.Error,
		CreatedAt:        job.CreatedAt,
	}

	if resp.Steps == nil {
		resp.Steps = []string{}
	}

	if !job.CompletedAt.IsZero() {
		completed := job.CompletedAt
		resp.CompletedAt = &completed
	}

	return resp
}

// BatchItem is one entry of a batch submission response, in request order.
type BatchItem struct {
	Job   *JobResponse `json:"job,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// BatchResponse is the body returned by POST /api/v1/jobs/batch.
type BatchResponse struct {
	Items    []BatchItem `json:"items"`
	Accepted int         `json:"accepted"`
	Rejected int         `json:"rejected"`
}

// ContextResponse echoes the ambient values of a request.
type ContextResponse struct {
	TraceID       string     `json:"traceId"`
	RequestID     string     `json:"requestId"`
	CorrelationID string     `json:"correlationId"`
	Tenant        string     `json:"tenant"`
	Deadline      *time.Time `json:"deadline,omitempty"`

	// Propagated holds the trace id read on goroutines started by the
	// handler; each entry should equal TraceID.
	Propagated []string `json:"propagated"`
}
