package httpapi

import (
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nhlakes/fishing-conditions/internal/fishing"
	"github.com/nhlakes/fishing-conditions/internal/metrics"
	"github.com/nhlakes/fishing-conditions/internal/store"
)

// NewApp builds the Fiber application serving the read API. Both the main
// binary and the API tests construct the app through here so they share
// middleware and error handling.
func NewApp(st *store.Store, locations []fishing.Location) *fiber.App {
	metrics.Init()

	app := fiber.New(fiber.Config{
		AppName:               "fishing-conditions",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Centralized error response
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(observeRequests())

	// Basic health endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "fishing-conditions",
		})
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	RegisterRoutes(app, st, locations)

	return app
}

// observeRequests records per-route counters and latency.
func observeRequests() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				status = e.Code
			}
		}
		metrics.ObserveHTTPRequest(c.Route().Path, status, time.Since(start))
		return err
	}
}
