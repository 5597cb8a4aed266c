package anomaly

import (
	"math"

	"github.com/stocksight/stocksight/internal/timeseries"
)

// RollingDetector compares each point to the mean and deviation of its
// surrounding window, excluding the point itself. Catches local spikes
// that a global profile absorbs on trending or seasonal series.
type RollingDetector struct{}

func init() {
	RegisterDetector("rolling", &RollingDetector{})
}

// Name returns the algorithm name
func (r *RollingDetector) Name() string {
	return "rolling"
}

// Detect finds anomalies by local deviation from the rolling mean
func (r *RollingDetector) Detect(series *timeseries.Series, config DetectorConfig) []Result {
	if series.Len() < config.MinDataPoints {
		return nil
	}

	values := series.Values()

	windowSize := config.WindowSize
	if windowSize <= 0 {
		windowSize = 7
	}
	if windowSize > len(values) {
		windowSize = len(values) / 2
	}
	if windowSize < 3 {
		windowSize = 3
	}

	var results []Result
	for i, v := range values {
		start := i - windowSize/2
		end := i + windowSize/2
		if start < 0 {
			start = 0
		}
		if end >= len(values) {
			end = len(values) - 1
		}

		var sum float64
		count := 0
		for j := start; j <= end; j++ {
			if j == i {
				continue
			}
			sum += values[j]
			count++
		}
		if count == 0 {
			continue
		}
		localMean := sum / float64(count)

		var varianceSum float64
		for j := start; j <= end; j++ {
			if j == i {
				continue
			}
			diff := values[j] - localMean
			varianceSum += diff * diff
		}
		localStdDev := math.Sqrt(varianceSum / float64(count))
		if localStdDev == 0 {
			continue
		}

		deviation := math.Abs(v-localMean) / localStdDev
		if deviation <= config.ZThreshold {
			continue
		}

		anomalyType := KindDrop
		if v > localMean {
			anomalyType = KindSpike
		}

		results = append(results, Result{
			Index: i,
			Score: deviation,
			Type:  anomalyType,
			Expected: &Range{
				Min: localMean - config.ZThreshold*localStdDev,
				Max: localMean + config.ZThreshold*localStdDev,
			},
		})
	}

	return results
}
