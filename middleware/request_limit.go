package middleware

import (
	"net/http"

	"pdf-chat-service/utils"

	"github.com/gin-gonic/gin"
)

// multipartOverhead leaves room for multipart boundaries and headers
const multipartOverhead = 1 << 20

// RequestSizeLimit rejects bodies whose declared length exceeds maxSize and
// caps the body reader for requests that do not declare one.
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
