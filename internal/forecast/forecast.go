package forecast

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/stocksight/stocksight/internal/timeseries"
)

// Point represents a single forecast prediction
type Point struct {
	Time       time.Time `json:"time"`
	Value      float64   `json:"value"`
	LowerBound float64   `json:"lower_bound"`
	UpperBound float64   `json:"upper_bound"`
}

// ModelInfo contains metadata about the fitted model
type ModelInfo struct {
	Algorithm  string                 `json:"algorithm"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	MAPE       float64                `json:"mape,omitempty"` // Mean Absolute Percentage Error
	MAE        float64                `json:"mae,omitempty"`  // Mean Absolute Error
	RMSE       float64                `json:"rmse,omitempty"` // Root Mean Squared Error
	DataPoints int                    `json:"data_points"`    // Number of data points used
}

// Result contains the forecast predictions and model information
type Result struct {
	Predictions []Point   `json:"predictions"`
	Fitted      []float64 `json:"fitted,omitempty"`    // Fitted values for historical data
	Residuals   []float64 `json:"residuals,omitempty"` // Residuals (actual - fitted)
	ModelInfo   ModelInfo `json:"model_info"`
}

// ModelConfig holds tuning for the forecasting algorithms
type ModelConfig struct {
	Horizon        int     // Number of periods to forecast
	WindowSize     int     // Window size for moving average methods
	Alpha          float64 // Smoothing factor for exponential methods (0-1)
	Beta           float64 // Trend smoothing factor for Holt-Winters (0-1)
	Gamma          float64 // Seasonal smoothing factor for Holt-Winters (0-1)
	SeasonalPeriod int     // Period for seasonal methods; 0 = derive from frequency
	Confidence     float64 // Confidence level for prediction intervals (0-1)
	MinDataPoints  int     // Minimum data points required
}

// DefaultModelConfig returns default model configuration
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Horizon:       12,
		WindowSize:    7,
		Alpha:         0.3,
		Beta:          0.1,
		Gamma:         0.1,
		Confidence:    0.95,
		MinDataPoints: 8,
	}
}

// seasonalPeriod resolves the season length for a series: the
// configured period when set, otherwise the natural cycle of the
// series frequency.
func seasonalPeriod(series *timeseries.Series, config ModelConfig) int {
	if config.SeasonalPeriod > 0 {
		return config.SeasonalPeriod
	}
	return series.Frequency.SeasonLength()
}

// futureDates produces the horizon period-start dates following the
// last record, advancing by the series frequency so monthly series get
// calendar months rather than fixed durations.
func futureDates(series *timeseries.Series, horizon int) []time.Time {
	dates := make([]time.Time, horizon)
	t := series.Records[series.Len()-1].Date
	for i := 0; i < horizon; i++ {
		t = series.Frequency.Next(t)
		dates[i] = t
	}
	return dates
}

// Forecaster interface for all forecasting algorithms
type Forecaster interface {
	// Name returns the algorithm name
	Name() string
	// Forecast generates predictions for future periods
	Forecast(series *timeseries.Series, config ModelConfig) (*Result, error)
}

// Registry holds available forecasters
var forecasterRegistry = make(map[string]Forecaster)

// RegisterForecaster adds a forecaster to the registry
func RegisterForecaster(name string, forecaster Forecaster) {
	forecasterRegistry[name] = forecaster
}

// GetForecaster returns a forecaster by name
func GetForecaster(name string) (Forecaster, error) {
	if forecaster, ok := forecasterRegistry[name]; ok {
		return forecaster, nil
	}
	return nil, fmt.Errorf("unknown forecaster: %s", name)
}

// ListForecasters returns the available forecaster names, sorted
func ListForecasters() []string {
	names := make([]string, 0, len(forecasterRegistry))
	for name := range forecasterRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CalculateMAPE calculates Mean Absolute Percentage Error. Zero actuals
// are skipped so intermittent demand does not divide by zero.
func CalculateMAPE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	count := 0
	for i := range actual {
		if actual[i] != 0 {
			sum += math.Abs((actual[i] - predicted[i]) / actual[i])
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return (sum / float64(count)) * 100
}

// CalculateMAE calculates Mean Absolute Error
func CalculateMAE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual))
}

// CalculateRMSE calculates Root Mean Squared Error
func CalculateRMSE(actual, predicted []float64) float64 {
	if len(actual) != len(predicted) || len(actual) == 0 {
		return 0
	}

	sum := 0.0
	for i := range actual {
		diff := actual[i] - predicted[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(actual)))
}

// calculatePredictionInterval calculates prediction interval bounds
func calculatePredictionInterval(value, stdError, confidence float64) (lower, upper float64) {
	// Z-score for confidence level (approximate)
	var z float64
	switch {
	case confidence >= 0.99:
		z = 2.576
	case confidence >= 0.95:
		z = 1.96
	case confidence >= 0.90:
		z = 1.645
	default:
		z = 1.96
	}

	margin := z * stdError
	return value - margin, value + margin
}

// residualStdError computes the sample standard error of the residuals
func residualStdError(actual, fitted []float64) float64 {
	if len(actual) <= 1 {
		return 0
	}
	sumSquaredError := 0.0
	for i := range actual {
		diff := actual[i] - fitted[i]
		sumSquaredError += diff * diff
	}
	return math.Sqrt(sumSquaredError / float64(len(actual)-1))
}
