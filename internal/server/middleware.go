package server

import (
	"errors"
	"log/slog"
	"time"

	"campuscreatives/internal/models"
	"campuscreatives/internal/observability"

	"github.com/gofiber/fiber/v2"
)

// contextMiddleware copies the request id into the request's context so
// handler logs carry it.
func contextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rid, ok := c.Locals("requestid").(string); ok && rid != "" {
			c.SetUserContext(observability.WithRequestID(c.UserContext(), rid))
		}
		return c.Next()
	}
}

// structuredLogger logs one line per request after it is handled.
func structuredLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		fields := []any{
			slog.Int("status", c.Response().StatusCode()),
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.String("ip", c.IP()),
			slog.Duration("latency", time.Since(start)),
		}
		if err != nil {
			fields = append(fields, slog.String("error", err.Error()))
			observability.Logger.ErrorContext(c.UserContext(), "request failed", fields...)
		} else {
			observability.Logger.DebugContext(c.UserContext(), "request processed", fields...)
		}
		return err
	}
}

// errorHandler renders framework errors (unknown routes, bad methods, body
// limits) with the same {"detail": ...} shape the handlers use.
func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	detail := "Internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		detail = fe.Message
	}
	return c.Status(status).JSON(models.ErrorResponse{Detail: detail})
}
