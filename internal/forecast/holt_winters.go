package forecast

import (
	"fmt"
	"math"

	"github.com/stocksight/stocksight/internal/timeseries"
)

// HoltWintersForecaster implements Holt-Winters (Triple Exponential Smoothing) forecasting
type HoltWintersForecaster struct{}

// NewHoltWintersForecaster creates a new Holt-Winters forecaster
func NewHoltWintersForecaster() *HoltWintersForecaster {
	return &HoltWintersForecaster{}
}

func init() {
	RegisterForecaster("holt_winters", NewHoltWintersForecaster())
}

// Name returns the algorithm name
func (f *HoltWintersForecaster) Name() string {
	return "holt_winters"
}

// Forecast generates predictions using Holt-Winters Triple Exponential Smoothing
func (f *HoltWintersForecaster) Forecast(series *timeseries.Series, config ModelConfig) (*Result, error) {
	n := series.Len()
	if n < config.MinDataPoints {
		return nil, fmt.Errorf("insufficient data points: need %d, have %d", config.MinDataPoints, n)
	}

	alpha := config.Alpha
	beta := config.Beta
	gamma := config.Gamma
	period := seasonalPeriod(series, config)

	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	if beta <= 0 || beta > 1 {
		beta = 0.1
	}
	if gamma <= 0 || gamma > 1 {
		gamma = 0.1
	}

	// Need at least 2 complete seasons
	if period <= 0 || n < period*2 {
		// Fall back to simple exponential smoothing
		return NewExponentialSmoothingForecaster().Forecast(series, config)
	}

	// Initialize level, trend, and seasonal components
	level := make([]float64, n)
	trend := make([]float64, n)
	seasonal := make([]float64, n+config.Horizon)

	// Initialize level as mean of first season
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += series.Records[i].Quantity
	}
	level[0] = sum / float64(period)

	// Initialize trend
	trend[0] = (series.Records[period].Quantity - series.Records[0].Quantity) / float64(period)

	// Initialize seasonal factors
	for i := 0; i < period; i++ {
		if level[0] != 0 {
			seasonal[i] = series.Records[i].Quantity / level[0]
		} else {
			seasonal[i] = 1.0
		}
	}

	// Calculate fitted values
	fitted := make([]float64, n)
	fitted[0] = level[0] * seasonal[0]

	for i := 1; i < n; i++ {
		// Previous seasonal factor (from one period ago)
		var prevSeasonal float64
		if i >= period {
			prevSeasonal = seasonal[i-period]
		} else {
			prevSeasonal = seasonal[i]
		}

		if prevSeasonal == 0 {
			prevSeasonal = 1.0
		}

		value := series.Records[i].Quantity

		// Update level
		level[i] = alpha*(value/prevSeasonal) + (1-alpha)*(level[i-1]+trend[i-1])

		// Update trend
		trend[i] = beta*(level[i]-level[i-1]) + (1-beta)*trend[i-1]

		// Update seasonal
		if level[i] != 0 {
			seasonal[i] = gamma*(value/level[i]) + (1-gamma)*prevSeasonal
		} else {
			seasonal[i] = prevSeasonal
		}

		// Calculate fitted value
		fitted[i] = (level[i-1] + trend[i-1]) * prevSeasonal
	}

	// Calculate residuals and standard error
	residuals := make([]float64, n)
	actual := make([]float64, n)
	sumSquaredError := 0.0
	for i, r := range series.Records {
		actual[i] = r.Quantity
		residuals[i] = r.Quantity - fitted[i]
		sumSquaredError += residuals[i] * residuals[i]
	}
	stdError := 0.0
	if n > 1 {
		stdError = math.Sqrt(sumSquaredError / float64(n-1))
	}

	lastLevel := level[n-1]
	lastTrend := trend[n-1]

	dates := futureDates(series, config.Horizon)
	predictions := make([]Point, config.Horizon)
	for i := 0; i < config.Horizon; i++ {
		// Get seasonal factor from one period ago
		seasonalIdx := (n + i) % period
		seasonalFactor := seasonal[n-period+seasonalIdx]
		if seasonalFactor == 0 {
			seasonalFactor = 1.0
		}

		forecastValue := (lastLevel + float64(i+1)*lastTrend) * seasonalFactor

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
			Algorithm: "holt_winters",
			Parameters: map[string]interface{}{
				"alpha":  alpha,
				"beta":   beta,
				"gamma":  gamma,
				"period": period,
			},
			MAPE:       CalculateMAPE(actual, fitted),
			MAE:        CalculateMAE(actual, fitted),
			RMSE:       CalculateRMSE(actual, fitted),
			DataPoints: n,
		},
	}, nil
}
