// Package server assembles the Fiber application.
package server

import (
	"context"
	"errors"
	"io"
	"time"

	"sweetshop/internal/handlers"
	"sweetshop/internal/middleware"
	"sweetshop/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Options carries everything the app needs.
type Options struct {
	SweetService *services.SweetService
	// AuthService is nil when staff auth is disabled.
	AuthService *services.AuthService
	Gatherer    prometheus.Gatherer
	Log         *zerolog.Logger
	// AccessLog receives one line per request; nil disables it.
	AccessLog io.Writer
	// HealthCheck reports whether the store is reachable.
	HealthCheck func(ctx context.Context) error

	StoreName      string
	StaticDir      string
	MaxUploadBytes int
}

// NewApp builds the Fiber app with all routes and middleware.
func NewApp(opts Options) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "sweetshop",
		BodyLimit:             opts.MaxUploadBytes + 1<<20,
		ErrorHandler:          errorHandler(opts.Log),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if opts.AccessLog != nil {
		app.Use(logger.New(logger.Config{Output: opts.AccessLog}))
	}
	app.Use(cors.New())

	app.Get("/health", healthHandler(opts))
	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	var guard fiber.Handler
	if opts.AuthService != nil {
		handlers.NewAuthHandler(opts.AuthService, opts.Log).RegisterRoutes(app)
		guard = middleware.AuthRequired(opts.AuthService)
	}
	handlers.NewSweetHandler(opts.SweetService, opts.Log).RegisterRoutes(app, guard)

	if opts.StaticDir != "" {
		app.Static("/", opts.StaticDir)
	}
	return app
}

func healthHandler(opts Options) fiber.Handler {
	return func(c *fiber.Ctx) error {
		status, code := "healthy", fiber.StatusOK
		if opts.HealthCheck != nil {
			ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
			defer cancel()
			if err := opts.HealthCheck(ctx); err != nil {
				opts.Log.Warn().Err(err).Msg("health check failed")
				status, code = "unhealthy", fiber.StatusServiceUnavailable
			}
		}
		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"store":  opts.StoreName,
			"time":   time.Now().Format(time.RFC3339),
		})
	}
}

// errorHandler renders errors that escape handlers, including unknown
// routes and recovered panics, as {"error": message}.
func errorHandler(log *zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		msg := "Internal server error."

		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			msg = fe.Message
		} else {
			log.Error().Err(err).Str("method", c.Method()).Str("path", c.Path()).Msg("unhandled error")
		}
		return c.Status(code).JSON(fiber.Map{
			"error": msg,
		})
	}
}
