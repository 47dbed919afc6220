package server

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/torarnehave1/aichat-vegvisr-sub000/internal/metrics"
)

// requestIDKey is the fiber locals key carrying the request ID.
const requestIDKey = "requestid"

// RequestLogger returns a middleware that logs every request with a generated
// request ID, latency and status.
func RequestLogger(log logrus.FieldLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := uuid.NewString()
		c.Locals(requestIDKey, requestID)
		c.Set("X-Request-Id", requestID)

		err := c.Next()

		statusCode := c.Response().StatusCode()
		entry := log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     c.Method(),
			"path":       c.OriginalURL(),
			"status":     statusCode,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.IP(),
		})

		switch {
		case err != nil:
			entry.WithError(err).Error("request failed")
		case statusCode >= 500:
			entry.Error("request completed with server error")
		case statusCode >= 400:
			entry.Warn("request completed with client error")
		default:
			entry.Info("request completed")
		}

		return err
	}
}

// MetricsMiddleware records request counts and latency. Routes are recorded
// by pattern, not by raw URL, to keep label cardinality bounded.
func MetricsMiddleware(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Route().Path
		status := strconv.Itoa(c.Response().StatusCode())
		m.RecordHTTPRequest(c.Method(), path, status, time.Since(start).Seconds())

		return err
	}
}

// RequestID returns the request ID set by RequestLogger, "" outside of it.
func RequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(requestIDKey).(string); ok {
		return id
	}
	return ""
}
