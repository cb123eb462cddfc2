package middleware

import (
	"errors"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var internalErrorBody = []byte(`{"ok":false,"error":"Internal server error"}`)

// Recovery turns a panic anywhere below it into a JSON 500. If a response
// was already started, or the client connection is gone, the panic is only
// logged.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			fields := []zap.Field{
				zap.Any("panic", rec),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetString(RequestIDKey)),
			}

			if brokenPipe(rec) {
				logger.Warn("client connection lost", fields...)
				c.Abort()
				return
			}

			logger.Error("panic recovered",
				append(fields, zap.ByteString("stack", debug.Stack()))...)

			if c.Writer.Written() {
				logger.Warn("response already sent, not writing error response",
					zap.String("request_id", c.GetString(RequestIDKey)))
				c.Abort()
				return
			}
			c.Data(http.StatusInternalServerError, "application/json; charset=utf-8", internalErrorBody)
			c.Abort()
		}()
		c.Next()
	}
}

func brokenPipe(rec interface{}) bool {
	err, ok := rec.(error)
	if !ok {
		return false
	}
	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		var sysErr *os.SyscallError
		if errors.As(opErr.Err, &sysErr) {
			msg := strings.ToLower(sysErr.Error())
			return strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
		}
	}
	return errors.Is(err, http.ErrAbortHandler)
}
