package forecast

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stocksight/stocksight/internal/config"
	"github.com/stocksight/stocksight/internal/dataset"
	"github.com/stocksight/stocksight/internal/schema"
	"github.com/stocksight/stocksight/internal/timeseries"
)

// Common test data and helpers for all forecast tests

var testStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func dailySeries(sku string, values []float64) *timeseries.Series {
	s := &timeseries.Series{SKU: sku, Frequency: timeseries.FrequencyDaily}
	for i, v := range values {
		s.Records = append(s.Records, timeseries.Record{
			Date:     testStart.AddDate(0, 0, i),
			Quantity: v,
		})
	}
	return s
}

// generateLinearSeries creates a series with pattern y = slope*i + intercept
func generateLinearSeries(sku string, n int, slope, intercept float64) *timeseries.Series {
	values := make([]float64, n)
	for i := range values {
		values[i] = slope*float64(i) + intercept
	}
	return dailySeries(sku, values)
}

// generateSeasonalSeries creates a series repeating a weekly pattern
func generateSeasonalSeries(sku string, weeks int) *timeseries.Series {
	pattern := []float64{10, 20, 30, 40, 50, 60, 70}
	values := make([]float64, 0, weeks*7)
	for w := 0; w < weeks; w++ {
		values = append(values, pattern...)
	}
	return dailySeries(sku, values)
}

func testForecastConfig() config.ForecastConfig {
	return config.ForecastConfig{
		DefaultHorizon:   12,
		HoldoutRatio:     0.2,
		MinHoldout:       4,
		GoodMAPE:         20,
		ReviewMAPE:       50,
		Confidence:       0.95,
		MinDataPoints:    8,
		ComparisonSample: 20,
		Strategies:       config.DefaultStrategies(),
	}
}

// buildHandle loads per-item constant histories into a dataset handle
func buildHandle(t *testing.T, items map[string][]float64) *dataset.Handle {
	t.Helper()

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

	mapping := &schema.ColumnMapping{
		Columns: map[schema.Role]string{
			schema.RoleDate:     "date",
			schema.RoleItemID:   "sku",
			schema.RoleQuantity: "quantity",
		},
		Confirmed: true,
	}

	h, err := dataset.Build(context.Background(), dataset.NewSliceSource(header, rows, 100), mapping, dataset.BuildOptions{
		Frequency:        timeseries.FrequencyDaily,
		MaxItemsInMemory: 10000,
	})
	if err != nil {
		t.Fatalf("building handle failed: %v", err)
	}
	return h
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
