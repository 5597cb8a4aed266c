package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/stocksight/stocksight/internal/config"
	"github.com/stocksight/stocksight/internal/handlers"
	"github.com/stocksight/stocksight/internal/logging"
	"github.com/stocksight/stocksight/internal/middleware"
	"github.com/stocksight/stocksight/internal/queue"
)

// Setup configures all routes and middlewares
func Setup(app *fiber.App, logger *logging.Logger, queueClient queue.Publisher, cfg *config.Config) *handlers.Handler {
	h := handlers.New(logger, queueClient, cfg)

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
	}))
	app.Use(logging.FiberMiddleware(logger))

	// Health check (no auth required)
	app.Get("/health", h.Health)

	authMiddleware := middleware.APIKeyAuth(logger, cfg.Auth.APIKeys, cfg.Auth.Enabled)

	// API v1 routes (protected by API key)
	v1 := app.Group("/v1", authMiddleware)

	// Session Management Routes
	v1.Post("/sessions", h.CreateSession)
	v1.Get("/sessions", h.ListSessions)
	v1.Get("/sessions/:session", h.GetSession)
	v1.Delete("/sessions/:session", h.DeleteSession)

	// Schema Resolution Routes
	v1.Post("/sessions/:session/schema/detect", h.DetectSchema)
	v1.Post("/sessions/:session/schema/resolve", h.ResolveSchema)
	v1.Put("/sessions/:session/schema/mapping", h.RemapColumn)
	v1.Get("/sessions/:session/schema/mapping", h.GetMapping)
	v1.Post("/sessions/:session/schema/confirm", h.ConfirmMapping)

	// Data Loading Routes
	v1.Post("/sessions/:session/load", h.Load)

	// Data Health Routes
	v1.Get("/sessions/:session/quality", h.GetQuality)
	v1.Post("/sessions/:session/quality/repair", h.RepairData)
	v1.Get("/sessions/:session/quality/pending", h.GetPendingIssues)

	// Pattern Discovery Routes
	v1.Get("/sessions/:session/clusters", h.GetClusters)

	// Anomaly Review Routes
	v1.Post("/sessions/:session/anomalies/detect", h.DetectAnomalies)
	v1.Get("/sessions/:session/anomalies", h.GetAnomalies)
	v1.Get("/sessions/:session/anomalies/review", h.GetReviewQueue)
	v1.Post("/sessions/:session/anomalies/dispositions", h.ApplyDispositions)

	// Feature Engineering Routes
	v1.Post("/sessions/:session/features", h.BuildFeatures)
	v1.Get("/sessions/:session/features/:sku", h.GetFeatureSet)
	v1.Get("/sessions/:session/features/:sku/importance", h.GetFeatureImportance)

	// Forecast Routes
	v1.Post("/sessions/:session/forecast/runs", h.CreateForecast)
	v1.Get("/sessions/:session/forecast/runs", h.ListForecastRuns)
	v1.Get("/sessions/:session/forecast/runs/:run", h.GetForecastRun)
	v1.Delete("/sessions/:session/forecast/runs/:run", h.DeleteForecastRun)
	v1.Get("/sessions/:session/forecast/runs/:run/problems", h.GetForecastProblems)
	v1.Get("/sessions/:session/forecast/estimate", h.EstimateForecast)
	v1.Post("/sessions/:session/forecast/compare", h.CompareModels)

	// 404 handler
	app.Use(h.NotFound)

	return h
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, queueClient queue.Publisher, cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "StockSight API",
		DisableStartupMessage: true,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	Setup(app, logger, queueClient, cfg)

	return app
}
