package middleware

import (
	"time"

	"postquery/api/response"
	"postquery/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LoggingMiddleware logs one line per request, tagged with the route
// template and, for lookups, the lookup name. Health checks log at debug.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		fullPath := route(c)
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("route", fullPath),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if name, ok := lookupName(fullPath); ok {
			fields = append(fields, zap.String("lookup", name))
		}

		log := logger.WithRequestID(response.GetRequestID(c))
		switch {
		case status >= 500:
			log.Error("HTTP Request", fields...)
		case status >= 400:
			log.Warn("HTTP Request", fields...)
		case isHealthCheck(fullPath):
			log.Debug("HTTP Request", fields...)
		default:
			log.Info("HTTP Request", fields...)
		}
	}
}
