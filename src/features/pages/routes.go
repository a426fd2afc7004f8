package pages

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the document tree. Every method reaches the handler
// so that non-GET requests are answered with 405 instead of falling through.
func RegisterRoutes(app *fiber.App, handler *Handler) {
	app.All("/*", handler.Serve)
}
