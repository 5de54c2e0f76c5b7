package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsamuelsen/go-ambient/internal/ambient"
)

// maxIDLength bounds ids accepted from clients; longer ones are replaced.
const maxIDLength = 128

// createIDMiddleware creates middleware that extracts or generates an ID and
// runs the rest of the chain with it attached to key. This is a shared
// implementation for request ID and correlation ID middleware.
func createIDMiddleware[T ~string](header, ginKey string, key *ambient.Key[T]) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(header)

		// Generate new UUID if not provided
		if id == "" || len(id) > maxIDLength {
			id = uuid.NewString()
		}

		// Kept in the gin context for code running after the scope unwinds
		c.Set(ginKey, id)
		c.Header(header, id)

		key.Run(T(id), c.Next)
	}
}
