package middleware

import (
	"go-userapi/internal/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxRequestIDLength = 128

// RequestLoggers injects request-scoped file and audit loggers into c.Locals.
// Both carry a "request_id" field. An incoming X-Request-ID is reused when present.
func RequestLoggers(baseFileLogger, baseAuditLogger *zap.Logger) fiber.Handler {
	if baseFileLogger == nil {
		baseFileLogger = zap.NewNop()
	}
	if baseAuditLogger == nil {
		baseAuditLogger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}

		c.Set(RequestIDHeader, requestID)
		c.Locals(RequestIDKey, requestID)
		c.Locals(RequestFileLoggerKey, baseFileLogger.With(zap.String("request_id", requestID)))
		c.Locals(RequestAuditLoggerKey, baseAuditLogger.With(
			zap.String("request_id", requestID),
			zap.String("ip", c.IP()),
		))

		return c.Next()
	}
}

// GetRequestFileLogger returns the request-scoped file/console logger,
// falling back to the global one.
func GetRequestFileLogger(c *fiber.Ctx) *zap.Logger {
	if logger, ok := c.Locals(RequestFileLoggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return logging.GetFileLogger()
}

// GetRequestAuditLogger returns the request-scoped audit logger,
// falling back to the global one (which may be Nop).
func GetRequestAuditLogger(c *fiber.Ctx) *zap.Logger {
	if logger, ok := c.Locals(RequestAuditLoggerKey).(*zap.Logger); ok && logger != nil {
		return logger
	}
	return logging.GetAuditLogger()
}

// GetRequestID returns the request ID, or "" outside RequestLoggers.
func GetRequestID(c *fiber.Ctx) string {
	if reqID, ok := c.Locals(RequestIDKey).(string); ok {
		return reqID
	}
	return ""
}
