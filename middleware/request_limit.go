package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"study-notes-platform/utils"
)

// multipartOverhead leaves room for form boundaries and headers around an
// upload of maxSize bytes.
const multipartOverhead = 1 << 20

// RequestSizeLimit rejects bodies that declare more than maxSize bytes and
// caps the rest with http.MaxBytesReader.
func RequestSizeLimit(maxSize int64) gin.HandlerFunc {
	limit := maxSize + multipartOverhead
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			utils.RespondWithError(c, http.StatusRequestEntityTooLarge,
				"request_too_large",
				"Request body exceeds maximum size",
				gin.H{
					"max_size":    maxSize,
					"received":    c.Request.ContentLength,
					"max_size_mb": maxSize / (1024 * 1024),
				})
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}
