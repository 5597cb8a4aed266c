package forecast

import (
	"fmt"
	"math"

	"github.com/stocksight/stocksight/internal/timeseries"
)

// NaiveForecaster carries the last observed value forward. It is the
// baseline every other model has to beat.
type NaiveForecaster struct{}

// NewNaiveForecaster creates a new naive forecaster
func NewNaiveForecaster() *NaiveForecaster {
	return &NaiveForecaster{}
}

func init() {
	RegisterForecaster("naive", NewNaiveForecaster())
}

// Name returns the algorithm name
func (f *NaiveForecaster) Name() string {
	return "naive"
}

// Forecast repeats the last observation for every future period
func (f *NaiveForecaster) Forecast(series *timeseries.Series, config ModelConfig) (*Result, error) {
	n := series.Len()
	if n < config.MinDataPoints {
		return nil, fmt.Errorf("insufficient data points: need %d, have %d", config.MinDataPoints, n)
	}

	// Fitted value at each position is the previous observation
	fitted := make([]float64, n)
	actual := make([]float64, n)
	residuals := make([]float64, n)
	fitted[0] = series.Records[0].Quantity
	for i := 0; i < n; i++ {
		actual[i] = series.Records[i].Quantity
		if i > 0 {
			fitted[i] = series.Records[i-1].Quantity
		}
		residuals[i] = actual[i] - fitted[i]
	}
	stdError := residualStdError(actual, fitted)

	forecastValue := series.Records[n-1].Quantity
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
			Algorithm:  "naive",
			MAPE:       CalculateMAPE(actual, fitted),
			MAE:        CalculateMAE(actual, fitted),
			RMSE:       CalculateRMSE(actual, fitted),
			DataPoints: n,
		},
	}, nil
}
