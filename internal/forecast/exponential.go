package forecast

import (
	"fmt"
	"math"

	"github.com/stocksight/stocksight/internal/timeseries"
)

// ExponentialSmoothingForecaster implements Simple Exponential Smoothing forecasting
type ExponentialSmoothingForecaster struct{}

// NewExponentialSmoothingForecaster creates a new Exponential Smoothing forecaster
func NewExponentialSmoothingForecaster() *ExponentialSmoothingForecaster {
	return &ExponentialSmoothingForecaster{}
}

func init() {
	RegisterForecaster("exponential", NewExponentialSmoothingForecaster())
}

// Name returns the algorithm name
func (f *ExponentialSmoothingForecaster) Name() string {
	return "exponential"
}

// Forecast generates predictions using Simple Exponential Smoothing
func (f *ExponentialSmoothingForecaster) Forecast(series *timeseries.Series, config ModelConfig) (*Result, error) {
	n := series.Len()
	if n < config.MinDataPoints {
		return nil, fmt.Errorf("insufficient data points: need %d, have %d", config.MinDataPoints, n)
	}

	alpha := config.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}

	// Calculate fitted values using exponential smoothing
	fitted := make([]float64, n)
	actual := make([]float64, n)
	residuals := make([]float64, n)
	fitted[0] = series.Records[0].Quantity
	actual[0] = series.Records[0].Quantity
	for i := 1; i < n; i++ {
		fitted[i] = alpha*series.Records[i-1].Quantity + (1-alpha)*fitted[i-1]
		actual[i] = series.Records[i].Quantity
		residuals[i] = actual[i] - fitted[i]
	}
	stdError := residualStdError(actual, fitted)

	// Final forecast value
	forecastValue := alpha*series.Records[n-1].Quantity + (1-alpha)*fitted[n-1]

	dates := futureDates(series, config.Horizon)
	predictions := make([]Point, config.Horizon)
	for i := 0; i < config.Horizon; i++ {
		// Increase uncertainty for further predictions
		adjustedStdError := stdError * math.Sqrt(float64(i+1))
		lower, upper := calculatePredictionInterval(forecastValue, adjustedStdError, config.Confidence)
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
			Algorithm:  "exponential",
			Parameters: map[string]interface{}{"alpha": alpha},
			MAPE:       CalculateMAPE(actual, fitted),
			MAE:        CalculateMAE(actual, fitted),
			RMSE:       CalculateRMSE(actual, fitted),
			DataPoints: n,
		},
	}, nil
}
