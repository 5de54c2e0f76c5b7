package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-ambient/internal/domain"
)

const (
	// HeaderCorrelationID is the default header name for correlation ID.
	// Unlike request ID (per-request), correlation ID tracks an entire
	// business transaction across multiple services.
	HeaderCorrelationID = "X-Correlation-ID"

	// ContextKeyCorrelationID is the gin context key for the correlation ID.
	ContextKeyCorrelationID = "correlation_id"
)

// CorrelationID returns middleware that propagates the correlation ID from
// header, or starts a new one, attached to domain.CorrelationIDs.
func CorrelationID(header string) gin.HandlerFunc {
	if header == "" {
		header = HeaderCorrelationID
	}

	return createIDMiddleware(header, ContextKeyCorrelationID, domain.CorrelationIDs)
}

// GetCorrelationID returns the correlation ID recorded in the gin.Context.
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(ContextKeyCorrelationID)
}
