package logging

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// FiberMiddleware logs one record per request and threads a request id
// through the handler context. Session-scoped routes get the session
// id as a field so a pipeline run can be traced across requests.
func FiberMiddleware(logger *Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestID := c.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
			c.Set("X-Request-ID", requestID)
		}
		ctx := WithRequestID(c.UserContext(), requestID)
		c.SetUserContext(WithLogger(ctx, logger))

		err := c.Next()

		status := c.Response().StatusCode()
		keyvals := []interface{}{
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", time.Since(start),
			"request_id", requestID,
		}
		if session := c.Params("session"); session != "" {
			keyvals = append(keyvals, "session_id", session)
		}
		if err != nil {
			keyvals = append(keyvals, "error", err)
		}

		switch {
		case err != nil || status >= 500:
			logger.Error("Request failed", keyvals...)
		case status >= 400:
			logger.Warn("Request rejected", keyvals...)
		default:
			logger.Info("Request completed", keyvals...)
		}
		return err
	}
}
