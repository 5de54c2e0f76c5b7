// Package clients provides HTTP client adapters for downstream services.
package clients

import "errors"

// Default headers ambient ids are forwarded in.
const (
	HeaderTraceID       = "X-Trace-ID"
	HeaderRequestID     = "X-Request-ID"
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderTenantID      = "X-Tenant-ID"
)

// Client errors are infrastructure failures; Downstream translates both to
// domain.ErrUnavailable.
var (
	// ErrCircuitOpen is returned without sending the request while the
	// circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded is returned after all retry attempts have been
	// exhausted. The last attempt's error is included in the message.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)
