// README: Request logging middleware; one line per request with a request id.
package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ridehail/internal/logger"
)

const RequestIDHeader = "X-Request-ID"

// Logging assigns a request id (reusing the client's when present), stores a
// request-scoped logger in the context and logs the outcome.
func Logging(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		l := base.With(slog.String("request_id", requestID))
		ctx := logger.WithRequestID(c.Request.Context(), requestID)
		ctx = logger.NewContext(ctx, l)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", time.Since(start)),
		}
		// Auth may have replaced the logger with one carrying the principal.
		reqLog := logger.FromContext(c.Request.Context(), l)
		switch {
		case status >= 500:
			reqLog.Error("request", attrs...)
		case status >= 400:
			reqLog.Warn("request", attrs...)
		default:
			reqLog.Info("request", attrs...)
		}
	}
}
