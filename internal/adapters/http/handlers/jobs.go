package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-ambient/internal/adapters/http/dto"
	"github.com/jsamuelsen/go-ambient/internal/app"
	"github.com/jsamuelsen/go-ambient/internal/domain"
)

// JobService is the application surface the job handlers need.
type JobService interface {
	Submit(ctx context.Context, req app.JobRequest) (*domain.Job, error)
	SubmitBatch(ctx context.Context, reqs []app.JobRequest) ([]app.BatchResult, error)
	Get(ctx context.Context, id string) (*domain.Job, error)
	List(ctx context.Context, after string, limit int) ([]*domain.Job, error)
	Cancel(ctx context.Context, id string) (*domain.Job, error)
}

// JobHandler handles job endpoints.
type JobHandler struct {
	service JobService
}

// NewJobHandler creates a new job handler.
func NewJobHandler(service JobService) *JobHandler {
	return &JobHandler{service: service}
}

// CreateJob handles POST /api/v1/jobs.
// The job is accepted with the request's ambient ids and runs in the
// background.
//
// @Summary Submit a job
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body dto.CreateJobRequest true "Job"
// @Success 202 {object} dto.JobResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/v1/jobs [post]
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	job, err := h.service.Submit(c.Request.Context(), toJobRequest(req))
	if err != nil {
		dto.RespondWithError(c, err)
		return
	}

	c.Header("Location", "/api/v1/jobs/"+job.ID)
	c.JSON(http.StatusAccepted, dto.NewJobResponse(job))
}

// CreateJobBatch handles POST /api/v1/jobs/batch.
// Entries are submitted concurrently; each item reports its own outcome in
// request order.
//
// @Summary Submit several jobs
// @Tags jobs
// @Accept json
// @Produce json
// @Param request body dto.BatchCreateJobsRequest true "Jobs"
// @Success 200 {object} dto.BatchResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/jobs/batch [post]
func (h *JobHandler) CreateJobBatch(c *gin.Context) {
	var req dto.BatchCreateJobsRequest
	if err := dto.BindAndValidate(c, &req); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	reqs := make([]app.JobRequest, len(req.Jobs))
	for i, j := range req.Jobs {
		reqs[i] = toJobRequest(j)
	}

	results, err := h.service.SubmitBatch(c.Request.Context(), reqs)
	if err != nil {
		dto.RespondWithError(c, err)
		return
	}

	resp := dto.BatchResponse{Items: make([]dto.BatchItem, len(results))}
	for i, r := range results {
		if r.Err != nil {
			_, errResp := dto.MapDomainError(r.Err)
			resp.Items[i].Error = &errResp.Error
			resp.Rejected++
			continue
		}

		resp.Items[i].Job = dto.NewJobResponse(r.Job)
		resp.Accepted++
	}

	c.JSON(http.StatusOK, resp)
}

// GetJob handles GET /api/v1/jobs/:id.
//
// @Summary Get a job
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} dto.JobResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/v1/jobs/{id} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	var path dto.JobPath
	if err := dto.BindURIAndValidate(c, &path); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	job, err := h.service.Get(c.Request.Context(), path.ID)
	if err != nil {
		dto.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.NewJobResponse(job))
}

// ListJobs handles GET /api/v1/jobs.
//
// @Summary List jobs
// @Tags jobs
// @Produce json
// @Param cursor query string false "Cursor from a previous page"
// @Param limit query int false "Page size (1-100)"
// @Success 200 {object} dto.PaginatedResponse[dto.JobResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/v1/jobs [get]
func (h *JobHandler) ListJobs(c *gin.Context) {
	var page dto.PaginationRequest
	if err := dto.BindQueryAndValidate(c, &page); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	after, err := page.After()
	if err != nil {
		dto.RespondWithErrorCode(c, dto.ErrorCodeBadRequest, err.Error())
		return
	}

	limit := page.GetLimit()

	jobs, err := h.service.List(c.Request.Context(), after, limit+1)
	if err != nil {
		dto.RespondWithError(c, err)
		return
	}

	items := make([]*dto.JobResponse, len(jobs))
	for i, j := range jobs {
		items[i] = dto.NewJobResponse(j)
	}

	c.JSON(http.StatusOK, dto.NewPaginatedResponse(items, limit, func(j *dto.JobResponse) string {
		return j.ID
	}))
}

// CancelJob handles DELETE /api/v1/jobs/:id.
// Cancellation takes effect before the job's next step; the response shows
// the job as it was when cancellation was requested.
//
// @Summary Cancel a job
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 202 {object} dto.JobResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/v1/jobs/{id} [delete]
func (h *JobHandler) CancelJob(c *gin.Context) {
	var path dto.JobPath
	if err := dto.BindURIAndValidate(c, &path); err != nil {
		dto.RespondWithBindError(c, err)
		return
	}

	job, err := h.service.Cancel(c.Request.Context(), path.ID)
	if err != nil {
		dto.RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, dto.NewJobResponse(job))
}

// RegisterJobRoutes registers job routes on the given router group.
func (h *JobHandler) RegisterJobRoutes(rg *gin.RouterGroup) {
	jobs := rg.Group("/jobs")
	jobs.POST("", h.CreateJob)
	jobs.POST("/batch", h.CreateJobBatch)
	jobs.GET("", h.ListJobs)
	jobs.GET("/:id", h.GetJob)
	jobs.DELETE("/:id", h.CancelJob)
}

func toJobRequest(req dto.CreateJobRequest) app.JobRequest {
	return app.JobRequest{Name: req.Name, Target: req.Target}
}
