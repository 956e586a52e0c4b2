package middleware

import (
	"fmt"

	"postquery/api/response"
	"postquery/pkg/errors"
	"postquery/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns a panic into the error envelope. A lookup answers
// with the same fixed message as any failed read; the panic value is only logged.
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}

			logger.Error("Panic recovered",
				zap.String("request_id", response.GetRequestID(c)),
				zap.String("route", route(c)),
				zap.Any("panic", recovered),
				zap.Stack("stack"))

			if c.Writer.Written() {
				c.Abort()
				return
			}

			cause := fmt.Errorf("panic: %v", recovered)
			var appErr *errors.AppError
			if _, ok := lookupName(route(c)); ok {
				appErr = errors.QueryFailed(cause)
			} else {
				appErr = errors.Internal("An unexpected error occurred")
				appErr.Err = cause
			}
			response.HandleAppError(c, appErr)
			c.Abort()
		}()

		c.Next()
	}
}
