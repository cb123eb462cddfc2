package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/jsrun/internal/shared/id"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

const headerRequestID = "X-Request-ID"

// maxRequestIDLen bounds ids accepted from clients.
const maxRequestIDLen = 128

// RequestID tags every request with an id, reusing a caller-supplied
// X-Request-ID when it is reasonable, and echoes it in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(headerRequestID)
		if rid == "" || len(rid) > maxRequestIDLen {
			rid = id.NewRequestID().String()
		}
		c.Set(RequestIDKey, rid)
		c.Header(headerRequestID, rid)
		c.Next()
	}
}
