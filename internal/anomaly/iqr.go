package anomaly

import (
	"github.com/stocksight/stocksight/internal/timeseries"
)

// IQRDetector detects anomalies using the interquartile range method.
// Robust to outliers compared to z-score: anomalies are points outside
// [Q1 - k*IQR, Q3 + k*IQR] where k is typically 1.5.
type IQRDetector struct{}

func init() {
	RegisterDetector("iqr", &IQRDetector{})
}

// Name returns the algorithm name
func (iqr *IQRDetector) Name() string {
	return "iqr"
}

// Detect finds anomalies using the IQR method
func (iqr *IQRDetector) Detect(series *timeseries.Series, config DetectorConfig) []Result {
	if series.Len() < config.MinDataPoints {
		return nil
	}

	values := series.Values()
	q1, q3, iqrValue := timeseries.Quartiles(values)

	multiplier := config.IQRMultiplier
	if multiplier <= 0 {
		multiplier = 1.5
	}

	lowerBound := q1 - multiplier*iqrValue
	upperBound := q3 + multiplier*iqrValue

	expectedRange := &Range{Min: lowerBound, Max: upperBound}

	var results []Result
	for i, v := range values {
		if v >= lowerBound && v <= upperBound {
			continue
		}

		var score float64
		if iqrValue > 0 {
			if v < lowerBound {
				score = (lowerBound - v) / iqrValue
			} else {
				score = (v - upperBound) / iqrValue
			}
		} else {
			score = 1.0
		}

		anomalyType := KindOutlier
		if v > upperBound {
			anomalyType = KindSpike
		} else if v < lowerBound {
			anomalyType = KindDrop
		}

		results = append(results, Result{
			Index:    i,
			Score:    score,
			Type:     anomalyType,
			Expected: expectedRange,
		})
	}

	return results
}
