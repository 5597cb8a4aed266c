package forecast

import (
	"fmt"

	"github.com/stocksight/stocksight/internal/timeseries"
)

// SMAForecaster implements Simple Moving Average forecasting
type SMAForecaster struct{}

// NewSMAForecaster creates a new SMA forecaster
func NewSMAForecaster() *SMAForecaster {
	return &SMAForecaster{}
}

func init() {
	RegisterForecaster("sma", NewSMAForecaster())
}

// Name returns the algorithm name
func (f *SMAForecaster) Name() string {
	return "sma"
}

// Forecast generates predictions using Simple Moving Average
func (f *SMAForecaster) Forecast(series *timeseries.Series, config ModelConfig) (*Result, error) {
	n := series.Len()
	if n < config.MinDataPoints {
		return nil, fmt.Errorf("insufficient data points: need %d, have %d", config.MinDataPoints, n)
	}

	windowSize := config.WindowSize
	if windowSize <= 0 {
		windowSize = 7
	}
	if windowSize > n {
		windowSize = n
	}

	// Calculate fitted values using moving average
	fitted := make([]float64, n)
	actual := make([]float64, n)
	residuals := make([]float64, n)
	for i := 0; i < n; i++ {
		start := i - windowSize + 1
		if start < 0 {
			start = 0
		}
		sum := 0.0
		for j := start; j <= i; j++ {
			sum += series.Records[j].Quantity
		}
		fitted[i] = sum / float64(i-start+1)
		actual[i] = series.Records[i].Quantity
		residuals[i] = actual[i] - fitted[i]
	}
	stdError := residualStdError(actual, fitted)

	// Moving average of the last window is the forecast
	sum := 0.0
	for _, r := range series.Records[n-windowSize:] {
		sum += r.Quantity
	}
	forecastValue := sum / float64(windowSize)

	dates := futureDates(series, config.Horizon)
	predictions := make([]Point, config.Horizon)
	for i := 0; i < config.Horizon; i++ {
		lower, upper := calculatePredictionInterval(forecastValue, stdError, config.Confidence)
		predictions[i] = Point{
			Time:       dates[i],
			Value:      forecastValue,
			LowerBound: lower,
			UpperBound: upper,
		}
	}

	return &Result{
		Predictions: predictions,
		Fitted:      fitted,
		Residuals:   residuals,
		ModelInfo: ModelInfo{
			Algorithm:  "sma",
			Parameters: map[string]interface{}{"window_size": windowSize},
			MAPE:       CalculateMAPE(actual, fitted),
			MAE:        CalculateMAE(actual, fitted),
			RMSE:       CalculateRMSE(actual, fitted),
			DataPoints: n,
		},
	}, nil
}
