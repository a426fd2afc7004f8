package hosting

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// LogAllRequestsMiddleware logs every request once it has been answered.
// Reload polls are tagged so they can be told apart from page views.
func LogAllRequestsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		requestType := "normal"
		if c.Context().QueryArgs().Has("reload") {
			requestType = "reload"
		}

		err := c.Next()

		duration := time.Since(start)
		status := c.Response().StatusCode()

		if err != nil || status >= fiber.StatusInternalServerError {
			slog.Error("HTTP request",
				"type", requestType,
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"duration", duration.String(),
				"error", err,
			)
		} else {
			slog.Debug("HTTP request",
				"type", requestType,
				"method", c.Method(),
				"path", c.Path(),
				"status", status,
				"duration", duration.String(),
			)
		}
		return err
	}
}
