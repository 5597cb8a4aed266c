package anomaly

import (
	"github.com/stocksight/stocksight/internal/timeseries"
)

// ZeroRunDetector flags extended runs of consecutive zero demand. A
// handful of zero days is normal for slow movers; a long unbroken run
// usually means a stockout or a delisted item still in the catalog.
type ZeroRunDetector struct{}

func init() {
	RegisterDetector("zero_run", &ZeroRunDetector{})
}

// Name returns the algorithm name
func (z *ZeroRunDetector) Name() string {
	return "zero_run"
}

// Detect flags every point inside a zero run of at least the configured
// length
func (z *ZeroRunDetector) Detect(series *timeseries.Series, config DetectorConfig) []Result {
	minRun := config.ZeroRunLength
	if minRun < 2 {
		minRun = 2
	}
	if series.Len() < minRun {
		return nil
	}

	values := series.Values()

	var results []Result
	runStart := -1
	flush := func(end int) {
		if runStart < 0 {
			return
		}
		runLen := end - runStart
		if runLen >= minRun {
			for i := runStart; i < end; i++ {
				results = append(results, Result{
					Index: i,
					Score: float64(runLen) / float64(minRun),
					Type:  KindZeroRun,
				})
			}
		}
		runStart = -1
	}

	for i, v := range values {
		if v == 0 {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		flush(i)
	}
	flush(len(values))

	return results
}
