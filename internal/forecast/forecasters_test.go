package forecast

import (
	"testing"
	"time"

	"github.com/stocksight/stocksight/internal/timeseries"
)

func TestRegistryHasAllModels(t *testing.T) {
	for _, name := range []string{"naive", "seasonal_naive", "sma", "exponential", "linear", "holt_winters"} {
		forecaster, err := GetForecaster(name)
		if err != nil {
			t.Errorf("forecaster %s not registered: %v", name, err)
			continue
		}
		if forecaster.Name() != name {
			t.Errorf("forecaster name mismatch: %s != %s", forecaster.Name(), name)
		}
	}
	if _, err := GetForecaster("oracle"); err == nil {
		t.Error("expected error for unknown forecaster")
	}
}

func TestNaiveForecaster(t *testing.T) {
	series := dailySeries("A", []float64{5, 7, 9, 11, 13, 15, 17, 19, 21, 23})

	config := DefaultModelConfig()
	config.Horizon = 5

	result, err := NewNaiveForecaster().Forecast(series, config)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	if len(result.Predictions) != 5 {
		t.Fatalf("expected 5 predictions, got %d", len(result.Predictions))
	}
	for i, p := range result.Predictions {
		if p.Value != 23 {
			t.Errorf("prediction %d = %v, want the last observation 23", i, p.Value)
		}
	}
	if result.ModelInfo.Algorithm != "naive" {
		t.Errorf("expected algorithm 'naive', got '%s'", result.ModelInfo.Algorithm)
	}

	// future dates continue daily from the last record
	wantFirst := series.Records[series.Len()-1].Date.AddDate(0, 0, 1)
	if !result.Predictions[0].Time.Equal(wantFirst) {
		t.Errorf("first prediction at %v, want %v", result.Predictions[0].Time, wantFirst)
	}
}

func TestNaiveForecasterInsufficientData(t *testing.T) {
	series := dailySeries("A", []float64{1, 2, 3})
	config := DefaultModelConfig()
	if _, err := NewNaiveForecaster().Forecast(series, config); err == nil {
		t.Error("expected error for insufficient data")
	}
}

func TestSeasonalNaiveForecaster(t *testing.T) {
	series := generateSeasonalSeries("A", 4)

	config := DefaultModelConfig()
	config.Horizon = 7

	result, err := NewSeasonalNaiveForecaster().Forecast(series, config)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	// a clean weekly pattern repeats exactly
	want := []float64{10, 20, 30, 40, 50, 60, 70}
	for i, p := range result.Predictions {
		if p.Value != want[i] {
			t.Errorf("prediction %d = %v, want %v", i, p.Value, want[i])
		}
	}
	if result.ModelInfo.MAPE != 0 {
		t.Errorf("exact repetition should fit perfectly, MAPE = %v", result.ModelInfo.MAPE)
	}
}

func TestSeasonalNaiveFallsBackWithoutFullSeason(t *testing.T) {
	series := dailySeries("A", []float64{5, 5, 5, 5, 5, 5, 5, 5})
	series.Frequency = timeseries.FrequencyWeekly // season length 52, history 8

	config := DefaultModelConfig()
	config.Horizon = 3

	result, err := NewSeasonalNaiveForecaster().Forecast(series, config)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	if result.ModelInfo.Algorithm != "naive" {
		t.Errorf("short history should fall back to naive, got '%s'", result.ModelInfo.Algorithm)
	}
}

func TestSMAForecaster(t *testing.T) {
	series := dailySeries("A", []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10})

	config := DefaultModelConfig()
	config.Horizon = 4
	config.WindowSize = 5

	result, err := NewSMAForecaster().Forecast(series, config)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	for i, p := range result.Predictions {
		if p.Value != 10 {
			t.Errorf("prediction %d = %v, want 10", i, p.Value)
		}
	}
	if result.ModelInfo.Parameters["window_size"] != 5 {
		t.Errorf("expected window_size 5, got %v", result.ModelInfo.Parameters["window_size"])
	}
}

func TestExponentialForecasterConvergesOnConstant(t *testing.T) {
	series := dailySeries("A", []float64{20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20, 20})

	config := DefaultModelConfig()
	config.Horizon = 3

	result, err := NewExponentialSmoothingForecaster().Forecast(series, config)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	for i, p := range result.Predictions {
		if !almostEqual(p.Value, 20) {
			t.Errorf("prediction %d = %v, want 20", i, p.Value)
		}
	}
}

func TestLinearForecasterExtrapolates(t *testing.T) {
	series := generateLinearSeries("A", 30, 2.0, 5.0)

	config := DefaultModelConfig()
	config.Horizon = 3

	result, err := NewLinearRegressionForecaster().Forecast(series, config)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	// fit is exact on noiseless data: y = 2x + 5, next index is 30
	for i, p := range result.Predictions {
		want := 2.0*float64(30+i) + 5.0
		if !almostEqual(p.Value, want) {
			t.Errorf("prediction %d = %v, want %v", i, p.Value, want)
		}
	}
	if !almostEqual(result.ModelInfo.Parameters["slope"].(float64), 2.0) {
		t.Errorf("expected slope 2, got %v", result.ModelInfo.Parameters["slope"])
	}
	if result.ModelInfo.MAPE > 1e-9 {
		t.Errorf("noiseless linear fit should have zero MAPE, got %v", result.ModelInfo.MAPE)
	}
}

func TestHoltWintersTracksSeasonality(t *testing.T) {
	series := generateSeasonalSeries("A", 8)

	config := DefaultModelConfig()
	config.Horizon = 7

	result, err := NewHoltWintersForecaster().Forecast(series, config)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}

	if result.ModelInfo.Algorithm != "holt_winters" {
		t.Fatalf("expected holt_winters to run, got '%s'", result.ModelInfo.Algorithm)
	}
	if result.ModelInfo.Parameters["period"] != 7 {
		t.Errorf("daily series should use a 7-period season, got %v", result.ModelInfo.Parameters["period"])
	}

	// the forecast should keep the weekly shape: day 6 of the pattern
	// sells 7x day 0
	if result.Predictions[6].Value <= result.Predictions[0].Value {
		t.Errorf("seasonal shape lost: day 6 (%v) should exceed day 0 (%v)",
			result.Predictions[6].Value, result.Predictions[0].Value)
	}
}

func TestHoltWintersFallsBackOnShortHistory(t *testing.T) {
	series := dailySeries("A", []float64{10, 12, 11, 13, 12, 14, 13, 15, 14, 16})

	config := DefaultModelConfig()
	config.Horizon = 3

	result, err := NewHoltWintersForecaster().Forecast(series, config)
	if err != nil {
		t.Fatalf("Forecast failed: %v", err)
	}
	if result.ModelInfo.Algorithm != "exponential" {
		t.Errorf("under two seasons should fall back to exponential, got '%s'", result.ModelInfo.Algorithm)
	}
}

func TestFutureDatesFollowFrequency(t *testing.T) {
	s := &timeseries.Series{SKU: "A", Frequency: timeseries.FrequencyMonthly}
	for i := 0; i < 12; i++ {
		s.Records = append(s.Records, timeseries.Record{
			Date:     time.Date(2024, time.Month(1+i), 1, 0, 0, 0, 0, time.UTC),
			Quantity: 100,
		})
	}

	dates := futureDates(s, 3)
	want := []time.Time{
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for i := range want {
		if !dates[i].Equal(want[i]) {
			t.Errorf("date %d = %v, want %v", i, dates[i], want[i])
		}
	}
}

func TestCalculateMAPESkipsZeroActuals(t *testing.T) {
	actual := []float64{0, 100, 0, 200}
	predicted := []float64{50, 110, 10, 180}

	// only the nonzero actuals count: |−10|/100 and |20|/200 -> 10% avg
	mape := CalculateMAPE(actual, predicted)
	if !almostEqual(mape, 10) {
		t.Errorf("MAPE = %v, want 10", mape)
	}

	if CalculateMAPE([]float64{0, 0}, []float64{1, 2}) != 0 {
		t.Error("all-zero actuals should yield MAPE 0")
	}
}

func TestMetricHelpers(t *testing.T) {
	actual := []float64{10, 20, 30}
	predicted := []float64{12, 18, 33}

	if !almostEqual(CalculateMAE(actual, predicted), (2.0+2.0+3.0)/3.0) {
		t.Errorf("MAE = %v", CalculateMAE(actual, predicted))
	}

	wantRMSE := 2.3804761428476167 // sqrt((4+4+9)/3)
	if !almostEqual(CalculateRMSE(actual, predicted), wantRMSE) {
		t.Errorf("RMSE = %v, want %v", CalculateRMSE(actual, predicted), wantRMSE)
	}
}

func TestPredictionIntervalWidensWithConfidence(t *testing.T) {
	lower95, upper95 := calculatePredictionInterval(100, 10, 0.95)
	lower99, upper99 := calculatePredictionInterval(100, 10, 0.99)

	if upper95-lower95 >= upper99-lower99 {
		t.Error("99% interval should be wider than 95%")
	}
	if !almostEqual(upper95, 100+1.96*10) {
		t.Errorf("95%% upper bound = %v", upper95)
	}
	if !almostEqual(upper99, 100+2.576*10) {
		t.Errorf("99%% upper bound = %v", upper99)
	}
}
