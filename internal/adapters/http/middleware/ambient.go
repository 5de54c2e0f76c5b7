package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-ambient/internal/adapters/http/dto"
	"github.com/jsamuelsen/go-ambient/internal/ambient"
	"github.com/jsamuelsen/go-ambient/internal/domain"
	"github.com/jsamuelsen/go-ambient/internal/platform/telemetry"
)

// Default headers for the ambient middleware.
const (
	HeaderTraceID  = "X-Trace-ID"
	HeaderTenantID = "X-Tenant-ID"
)

// AmbientConfig names the headers the Ambient middleware reads.
type AmbientConfig struct {
	TraceHeader  string
	TenantHeader string
}

// Ambient returns middleware that attaches the request's trace id, tenant and
// deadline for the rest of the chain.
//
// The trace id is taken from the trace header, else from the OpenTelemetry
// span, else generated; it is echoed in the response. The tenant is attached
// only when the header is present, leaving the key's default otherwise. A
// deadline on the request context becomes the ambient deadline.
func Ambient(cfg AmbientConfig) gin.HandlerFunc {
	if cfg.TraceHeader == "" {
		cfg.TraceHeader = HeaderTraceID
	}
	if cfg.TenantHeader == "" {
		cfg.TenantHeader = HeaderTenantID
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		trace := domain.TraceID(c.GetHeader(cfg.TraceHeader))
		if trace == "" || len(trace) > maxIDLength {
			if id, ok := telemetry.SpanTraceID(ctx); ok {
				trace = domain.TraceID(id)
			} else {
				trace = domain.NewTraceID()
			}
		}

		c.Set(dto.TraceIDKey, string(trace))
		c.Header(cfg.TraceHeader, string(trace))

		snap := ambient.NewSnapshot(domain.TraceIDs.Bind(trace))

		if tenant := c.GetHeader(cfg.TenantHeader); tenant != "" {
			snap = snap.With(domain.Tenants.Bind(domain.TenantID(tenant)))
		}

		if at, ok := ctx.Deadline(); ok {
			snap = snap.With(domain.Deadlines.Bind(domain.Deadline{At: at}))
		}

		snap.Run(c.Next)
	}
}
