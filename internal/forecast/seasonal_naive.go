package forecast

import (
	"fmt"
	"math"

	"github.com/stocksight/stocksight/internal/timeseries"
)

// SeasonalNaiveForecaster repeats the value from one season ago. Strong
// for demand with a stable weekly or yearly shape and nothing else.
type SeasonalNaiveForecaster struct{}

// NewSeasonalNaiveForecaster creates a new seasonal naive forecaster
func NewSeasonalNaiveForecaster() *SeasonalNaiveForecaster {
	return &SeasonalNaiveForecaster{}
}

func init() {
	RegisterForecaster("seasonal_naive", NewSeasonalNaiveForecaster())
}

// Name returns the algorithm name
func (f *SeasonalNaiveForecaster) Name() string {
	return "seasonal_naive"
}

// Forecast predicts each future period from the same position one
// season earlier
func (f *SeasonalNaiveForecaster) Forecast(series *timeseries.Series, config ModelConfig) (*Result, error) {
	n := series.Len()
	if n < config.MinDataPoints {
		return nil, fmt.Errorf("insufficient data points: need %d, have %d", config.MinDataPoints, n)
	}

	period := seasonalPeriod(series, config)
	if period <= 0 || n < period+1 {
		// Without a full season there is no seasonal lag to repeat
		return NewNaiveForecaster().Forecast(series, config)
	}

	fitted := make([]float64, n)
	actual := make([]float64, n)
	residuals := make([]float64, n)
	for i := 0; i < n; i++ {
		actual[i] = series.Records[i].Quantity
		if i >= period {
			fitted[i] = series.Records[i-period].Quantity
		} else {
			fitted[i] = series.Records[i].Quantity
		}
		residuals[i] = actual[i] - fitted[i]
	}
	stdError := residualStdError(actual, fitted)

	dates := futureDates(series, config.Horizon)
	predictions := make([]Point, config.Horizon)
	for i := 0; i < config.Horizon; i++ {
		// The value from the matching position one season back
		srcIdx := n - period + (i % period)
		forecastValue := series.Records[srcIdx].Quantity

		adjustedStdError := stdError * math.Sqrt(float64(i/period+1))
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
			Algorithm:  "seasonal_naive",
			Parameters: map[string]interface{}{"period": period},
			MAPE:       CalculateMAPE(actual, fitted),
			MAE:        CalculateMAE(actual, fitted),
			RMSE:       CalculateRMSE(actual, fitted),
			DataPoints: n,
		},
	}, nil
}
