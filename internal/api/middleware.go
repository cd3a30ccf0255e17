package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/comigor/landing-chat/internal/logger"
)

// RequestLogger logs every request through the process logger.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		if c.Writer.Status() >= 500 {
			logger.L.Error("http request", attrs...)
			return
		}
		logger.L.Info("http request", attrs...)
	}
}
