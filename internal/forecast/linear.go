package forecast

import (
	"fmt"
	"math"

	"github.com/stocksight/stocksight/internal/timeseries"
)

// LinearRegressionForecaster implements Linear Regression forecasting
type LinearRegressionForecaster struct{}

// NewLinearRegressionForecaster creates a new Linear Regression forecaster
func NewLinearRegressionForecaster() *LinearRegressionForecaster {
	return &LinearRegressionForecaster{}
}

func init() {
	RegisterForecaster("linear", NewLinearRegressionForecaster())
}

// Name returns the algorithm name
func (f *LinearRegressionForecaster) Name() string {
	return "linear"
}

// Forecast generates predictions using Linear Regression
func (f *LinearRegressionForecaster) Forecast(series *timeseries.Series, config ModelConfig) (*Result, error) {
	if series.Len() < config.MinDataPoints {
		return nil, fmt.Errorf("insufficient data points: need %d, have %d", config.MinDataPoints, series.Len())
	}

	n := float64(series.Len())

	// Calculate sums for linear regression
	sumX := 0.0
	sumY := 0.0
	sumXY := 0.0
	sumX2 := 0.0

	for i, r := range series.Records {
		x := float64(i)
		sumX += x
		sumY += r.Quantity
		sumXY += x * r.Quantity
		sumX2 += x * x
	}

	// Calculate slope and intercept
	denominator := n*sumX2 - sumX*sumX
	if denominator == 0 {
		return nil, fmt.Errorf("cannot calculate regression: all x values are the same")
	}

	slope := (n*sumXY - sumX*sumY) / denominator
	intercept := (sumY - slope*sumX) / n

	// Calculate fitted values
	fitted := make([]float64, series.Len())
	residuals := make([]float64, series.Len())
	actual := make([]float64, series.Len())
	sumSquaredError := 0.0

	for i, r := range series.Records {
		fitted[i] = intercept + slope*float64(i)
		actual[i] = r.Quantity
		residuals[i] = r.Quantity - fitted[i]
		sumSquaredError += residuals[i] * residuals[i]
	}

	stdError := 0.0
	if series.Len() > 2 {
		stdError = math.Sqrt(sumSquaredError / float64(series.Len()-2))
	}

	dates := futureDates(series, config.Horizon)
	predictions := make([]Point, config.Horizon)
	for i := 0; i < config.Horizon; i++ {
		forecastIdx := n + float64(i)
		forecastValue := intercept + slope*forecastIdx

		// Standard error increases for extrapolation
		meanX := sumX / n
		xDiff := forecastIdx - meanX
		predStdError := stdError * math.Sqrt(1+1/n+xDiff*xDiff/(sumX2-sumX*sumX/n))

		lower, upper := calculatePredictionInterval(forecastValue, predStdError, config.Confidence)

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
			Algorithm: "linear",
			Parameters: map[string]interface{}{
				"slope":     slope,
				"intercept": intercept,
			},
			MAPE:       CalculateMAPE(actual, fitted),
			MAE:        CalculateMAE(actual, fitted),
			RMSE:       CalculateRMSE(actual, fitted),
			DataPoints: series.Len(),
		},
	}, nil
}
