package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jsamuelsen/go-ambient/internal/ambient"
)

// DefaultTenant is reported when no tenant is attached.
const DefaultTenant TenantID = "default"

// TraceID identifies one logical operation across services and background jobs.
type TraceID string

// RequestID identifies a single inbound HTTP request.
type RequestID string

// CorrelationID groups related requests across service boundaries.
type CorrelationID string

// TenantID names the tenant an operation runs on behalf of.
type TenantID string

// Deadline is the point in time by which the current operation should finish.
type Deadline struct {
	At time.Time
}

// Ambient keys for the context types above.
var (
	TraceIDs       = ambient.Declare[TraceID]("trace_id")
	RequestIDs     = ambient.Declare[RequestID]("request_id")
	CorrelationIDs = ambient.Declare[CorrelationID]("correlation_id")
	Tenants        = ambient.Declare[TenantID]("tenant_id", ambient.WithDefault(DefaultTenant))
	Deadlines      = ambient.Declare[Deadline]("deadline")
)

// AmbientKeys returns every key the service propagates into background work,
// in attach order.
func AmbientKeys() []ambient.Capturer {
	return []ambient.Capturer{TraceIDs, RequestIDs, CorrelationIDs, Tenants, Deadlines}
}

// CaptureAmbient snapshots the current values of AmbientKeys.
func CaptureAmbient() ambient.Snapshot {
	return ambient.Capture(AmbientKeys()...)
}

// NewTraceID generates a random trace id.
func NewTraceID() TraceID {
	return TraceID(uuid.NewString())
}

// DeadlineAfter returns a deadline d from now.
func DeadlineAfter(d time.Duration) Deadline {
	return Deadline{At: time.Now().Add(d)}
}

// IsZero reports whether the deadline is unset.
func (d Deadline) IsZero() bool {
	return d.At.IsZero()
}

// Remaining returns the time left before the deadline, never negative.
// An unset deadline has no time remaining.
func (d Deadline) Remaining() time.Duration {
	if d.IsZero() {
		return 0
	}
	return max(time.Until(d.At), 0)
}

// Expired reports whether a set deadline has passed.
func (d Deadline) Expired() bool {
	return !d.IsZero() && !time.Now().Before(d.At)
}

// ContextWithDeadline derives a context that is cancelled at the ambient
// deadline. Without one, ctx is returned with a no-op cancel func.
func ContextWithDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	d, ok := Deadlines.TryCurrent()
	if !ok || d.IsZero() {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, d.At)
}
