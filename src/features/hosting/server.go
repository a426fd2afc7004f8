package hosting

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/contre95/mdlive/src/features/config"
	"github.com/contre95/mdlive/src/features/metrics"
	"github.com/contre95/mdlive/src/features/pages"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
)

// Server is the HTTP server for the application.
type Server struct {
	app     *fiber.App
	address string
}

// NewServer creates a new HTTP server. The metrics route, when enabled, is
// registered ahead of the document tree so it is never shadowed by a file.
func NewServer(cfg *config.Manager, views *html.Engine, handler *pages.Handler, m *metrics.Metrics) *Server {
	settings := cfg.Get()

	app := fiber.New(fiber.Config{
		Views:                 views,
		ErrorHandler:          errorHandler(m),
		AppName:               "mdlive",
		DisableStartupMessage: true,
		EnablePrintRoutes:     settings.Server.PrintRoutes,
	})

	app.Use(recover.New())
	app.Use(LogAllRequestsMiddleware())

	if settings.Metrics.Enabled {
		app.Get(settings.Metrics.Path, m.Handler())
	}
	pages.RegisterRoutes(app, handler)

	return &Server{app: app, address: settings.Server.Address()}
}

// errorHandler logs the failure and answers with the status text only. Error
// details carry filesystem paths and stay in the log.
func errorHandler(m *metrics.Metrics) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		e := fiber.ErrInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			e = fiberErr
		}
		if e.Code >= fiber.StatusInternalServerError {
			slog.Error("Internal Server Error", "path", c.Path(), "error", err)
		}
		m.Request("error", e.Code)
		return c.Status(e.Code).SendString(e.Message)
	}
}

// App exposes the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	slog.Info("Serving", "address", s.address)
	return s.app.Listen(s.address)
}

// Shutdown gracefully shuts down the server, giving open connections until
// ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	return s.app.ShutdownWithTimeout(timeout)
}
