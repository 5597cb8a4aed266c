package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/stocksight/stocksight/internal/config"
	"github.com/stocksight/stocksight/internal/logging"
)

func newTestHandler() *Handler {
	cfg := config.DefaultConfig()
	cfg.Pipeline.ChunkSize = 10
	cfg.Forecast.MinDataPoints = 8
	return New(logging.NewWithWriter(io.Discard, zerolog.Disabled), nil, cfg)
}

// testApp registers every route the handlers serve, without the auth
// middleware
func testApp(h *Handler) *fiber.App {
	app := fiber.New()
	app.Get("/health", h.Health)

	v1 := app.Group("/v1")
	v1.Post("/sessions", h.CreateSession)
	v1.Get("/sessions", h.ListSessions)
	v1.Get("/sessions/:session", h.GetSession)
	v1.Delete("/sessions/:session", h.DeleteSession)
	v1.Post("/sessions/:session/schema/detect", h.DetectSchema)
	v1.Post("/sessions/:session/schema/resolve", h.ResolveSchema)
	v1.Put("/sessions/:session/schema/mapping", h.RemapColumn)
	v1.Get("/sessions/:session/schema/mapping", h.GetMapping)
	v1.Post("/sessions/:session/schema/confirm", h.ConfirmMapping)
	v1.Post("/sessions/:session/load", h.Load)
	v1.Get("/sessions/:session/quality", h.GetQuality)
	v1.Post("/sessions/:session/quality/repair", h.RepairData)
	v1.Get("/sessions/:session/quality/pending", h.GetPendingIssues)
	v1.Get("/sessions/:session/clusters", h.GetClusters)
	v1.Post("/sessions/:session/anomalies/detect", h.DetectAnomalies)
	v1.Get("/sessions/:session/anomalies", h.GetAnomalies)
	v1.Get("/sessions/:session/anomalies/review", h.GetReviewQueue)
	v1.Post("/sessions/:session/anomalies/dispositions", h.ApplyDispositions)
	v1.Post("/sessions/:session/features", h.BuildFeatures)
	v1.Get("/sessions/:session/features/:sku", h.GetFeatureSet)
	v1.Get("/sessions/:session/features/:sku/importance", h.GetFeatureImportance)
	v1.Post("/sessions/:session/forecast/runs", h.CreateForecast)
	v1.Get("/sessions/:session/forecast/runs", h.ListForecastRuns)
	v1.Get("/sessions/:session/forecast/runs/:run", h.GetForecastRun)
	v1.Delete("/sessions/:session/forecast/runs/:run", h.DeleteForecastRun)
	v1.Get("/sessions/:session/forecast/runs/:run/problems", h.GetForecastProblems)
	v1.Get("/sessions/:session/forecast/estimate", h.EstimateForecast)
	v1.Post("/sessions/:session/forecast/compare", h.CompareModels)
	app.Use(h.NotFound)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, 30000)
	if err != nil {
		t.Fatalf("Failed to perform request: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, data)
	}
}

// salesRows builds daily transaction rows for items keyed by sku
func salesRows(items map[string][]float64) ([]string, [][]string) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	header := []string{"date", "sku", "quantity"}
	var rows [][]string
	for sku, values := range items {
		for i, v := range values {
			rows = append(rows, []string{
				start.AddDate(0, 0, i).Format("2006-01-02"),
				sku,
				fmt.Sprintf("%g", v),
			})
		}
	}
	return header, rows
}

func steadyDemand(n int, base float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = base + float64(i%3)
	}
	return values
}
