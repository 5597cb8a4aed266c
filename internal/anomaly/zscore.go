package anomaly

import (
	"math"

	"github.com/stocksight/stocksight/internal/timeseries"
)

// ZScoreDetector detects anomalies using the standard score: points more
// than the threshold number of standard deviations from the global mean.
type ZScoreDetector struct{}

func init() {
	RegisterDetector("zscore", &ZScoreDetector{})
}

// Name returns the algorithm name
func (z *ZScoreDetector) Name() string {
	return "zscore"
}

// Detect finds anomalies using the z-score method
func (z *ZScoreDetector) Detect(series *timeseries.Series, config DetectorConfig) []Result {
	if series.Len() < config.MinDataPoints {
		return nil
	}

	values := series.Values()
	mean, stdDev := timeseries.MeanStdDev(values)

	if stdDev == 0 {
		return z.detectFlatline(values)
	}

	expectedRange := &Range{
		Min: mean - config.ZThreshold*stdDev,
		Max: mean + config.ZThreshold*stdDev,
	}

	var results []Result
	for i, v := range values {
		zScore := (v - mean) / stdDev
		if math.Abs(zScore) <= config.ZThreshold {
			continue
		}

		anomalyType := KindDrop
		if zScore > 0 {
			anomalyType = KindSpike
		}

		results = append(results, Result{
			Index:    i,
			Score:    math.Abs(zScore),
			Type:     anomalyType,
			Expected: expectedRange,
		})
	}

	return results
}

// detectFlatline reports a zero-variance series. Demand that never moves
// at all usually means a data extraction fault upstream.
func (z *ZScoreDetector) detectFlatline(values []float64) []Result {
	if len(values) == 0 || values[0] == 0 {
		return nil // an all-zero series is the zero-run detector's business
	}
	results := make([]Result, len(values))
	for i := range values {
		results[i] = Result{Index: i, Score: 1.0, Type: KindFlatline}
	}
	return results
}
