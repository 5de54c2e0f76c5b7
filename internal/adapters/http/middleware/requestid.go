// Package middleware provides HTTP middleware components for the Gin server.
//
// Middleware that establishes an id runs the remainder of the chain inside an
// ambient scope, so handlers, loggers and outgoing clients read it from
// ambient storage rather than from the request context.
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-ambient/internal/domain"
)

const (
	// HeaderRequestID is the default header name for request ID.
	HeaderRequestID = "X-Request-ID"

	// ContextKeyRequestID is the gin context key for the request ID.
	ContextKeyRequestID = "request_id"
)

// RequestID returns middleware that extracts the request ID from header, or
// generates a UUID v4, attaches it to domain.RequestIDs for the rest of the
// chain and echoes it in the response.
func RequestID(header string) gin.HandlerFunc {
	if header == "" {
		header = HeaderRequestID
	}

	return createIDMiddleware(header, ContextKeyRequestID, domain.RequestIDs)
}

// GetRequestID returns the request ID recorded in the gin.Context.
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}
