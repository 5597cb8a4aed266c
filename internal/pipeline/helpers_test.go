package pipeline

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stocksight/stocksight/internal/config"
	"github.com/stocksight/stocksight/internal/dataset"
	"github.com/stocksight/stocksight/internal/logging"
	"github.com/stocksight/stocksight/internal/schema"
	"github.com/stocksight/stocksight/internal/timeseries"
)

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Pipeline.ChunkSize = 4
	cfg.Pipeline.Workers = 2
	cfg.Pipeline.MaxAnomalyPasses = 5
	cfg.Forecast.MinDataPoints = 8
	return cfg
}

func testLogger() *logging.Logger {
	return logging.NewWithWriter(io.Discard, zerolog.Disabled)
}

// testRows builds transaction rows for items keyed by sku. Values are
// daily quantities starting at testStart.
func testRows(items map[string][]float64) ([]string, [][]string) {
	header := []string{"date", "sku", "quantity"}
	var rows [][]string
	for sku, values := range items {
		for i, v := range values {
			rows = append(rows, []string{
				testStart.AddDate(0, 0, i).Format("2006-01-02"),
				sku,
				fmt.Sprintf("%g", v),
			})
		}
	}
	return header, rows
}

// steadyValues is flat demand with mild day-to-day movement
func steadyValues(n int, base float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = base + float64(i%3)
	}
	return values
}

func testMapping() *schema.ColumnMapping {
	return &schema.ColumnMapping{
		Columns: map[schema.Role]string{
			schema.RoleDate:     "date",
			schema.RoleItemID:   "sku",
			schema.RoleQuantity: "quantity",
		},
		Confirmed: true,
	}
}

// testHandle loads items straight into a dataset handle, bypassing the
// session schema flow for pool-level tests
func testHandle(t *testing.T, items map[string][]float64) *dataset.Handle {
	t.Helper()
	header, rows := testRows(items)
	h, err := dataset.Build(context.Background(), dataset.NewSliceSource(header, rows, 100), testMapping(), dataset.BuildOptions{
		Frequency:        timeseries.FrequencyDaily,
		MaxItemsInMemory: 10000,
	})
	if err != nil {
		t.Fatalf("building handle failed: %v", err)
	}
	return h
}

// loadedSession runs the schema flow and loads the items
func loadedSession(t *testing.T, cfg *config.Config, items map[string][]float64) *Session {
	t.Helper()
	s := NewSession(cfg, testLogger(), nil)

	header, rows := testRows(items)
	sample := rows
	if len(sample) > 100 {
		sample = sample[:100]
	}
	if _, err := s.ResolveSchema(header, sample); err != nil {
		t.Fatalf("schema resolution failed: %v", err)
	}
	if err := s.ConfirmMapping(); err != nil {
		t.Fatalf("confirming mapping failed: %v", err)
	}
	if _, err := s.Load(context.Background(), dataset.NewSliceSource(header, rows, 100), timeseries.FrequencyDaily); err != nil {
		t.Fatalf("loading failed: %v", err)
	}
	return s
}
