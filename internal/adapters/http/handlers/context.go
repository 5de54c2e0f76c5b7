package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-ambient/internal/adapters/http/dto"
	"github.com/jsamuelsen/go-ambient/internal/app"
	"github.com/jsamuelsen/go-ambient/internal/domain"
)

const defaultFanOut = 3

// ContextHandler echoes the ambient values of a request.
type ContextHandler struct {
	fanOut int
}

// NewContextHandler creates a context handler that reads the trace id on
// fanOut goroutines per request.
func NewContextHandler(fanOut int) *ContextHandler {
	if fanOut <= 0 {
		fanOut = defaultFanOut
	}

	return &ContextHandler{fanOut: fanOut}
}

// GetContext handles GET /api/v1/context.
// Returns the trace, request and correlation ids, tenant and deadline visible
// to the handler, and the trace id as seen from goroutines it starts.
func (h *ContextHandler) GetContext(c *gin.Context) {
	fns := make([]func(context.Context) (string, error), h.fanOut)
	for i := range fns {
		fns[i] = func(context.Context) (string, error) {
			return string(domain.TraceIDs.Current()), nil
		}
	}

	propagated, err := app.Parallel(c.Request.Context(), fns...)
	if err != nil {
		dto.RespondWithError(c, err)
		return
	}

	resp := dto.ContextResponse{
		TraceID:       string(domain.TraceIDs.Current()),
		RequestID:     string(domain.RequestIDs.Current()),
		CorrelationID: string(domain.CorrelationIDs.Current()),
		Tenant:        string(domain.Tenants.Current()),
		Propagated:    propagated,
	}

	if d := domain.Deadlines.Current(); !d.IsZero() {
		at := d.At.UTC()
		resp.Deadline = &at
	}

	c.JSON(http.StatusOK, resp)
}

// RegisterContextRoutes registers the context route on the given router group.
func (h *ContextHandler) RegisterContextRoutes(rg *gin.RouterGroup) {
	rg.GET("/context", h.GetContext)
}
