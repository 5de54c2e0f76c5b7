package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/go-ambient/internal/adapters/http/dto"
	"github.com/jsamuelsen/go-ambient/internal/domain"
	"github.com/jsamuelsen/go-ambient/internal/platform/logging"
)

// Timeout returns middleware that enforces a request timeout. It sets a
// context deadline, attaches it as the ambient deadline while the handlers
// run, and if the deadline passed before anything was written, responds
// 503 Service Unavailable with the error envelope.
//
// Handlers run on the request goroutine so ambient values stay visible to
// them. A handler that ignores both its context and the ambient deadline
// still runs to completion.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		at, _ := ctx.Deadline()
		domain.Deadlines.Run(domain.Deadline{At: at}, c.Next)

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			handleTimeout(c, timeout)
		}
	}
}

// handleTimeout handles a timeout by logging and responding with an error.
func handleTimeout(c *gin.Context, timeout time.Duration) {
	logging.FromContext(c.Request.Context()).WarnContext(c.Request.Context(), "request timeout",
		slog.String("path", c.Request.URL.Path),
		slog.String("method", c.Request.Method),
		slog.Duration("timeout", timeout),
	)

	if c.Writer.Written() {
		c.Abort()
		return
	}

	dto.AbortWithErrorCode(c, http.StatusServiceUnavailable, dto.ErrorCodeTimeout, "request timeout exceeded")
}
