package anomaly

import (
	"fmt"
	"sort"
	"time"

	"github.com/stocksight/stocksight/internal/config"
	"github.com/stocksight/stocksight/internal/timeseries"
)

// Kind classifies a detected anomaly
type Kind string

const (
	KindSpike    Kind = "spike"    // Sudden increase
	KindDrop     Kind = "drop"     // Sudden decrease
	KindOutlier  Kind = "outlier"  // Value outside normal range
	KindFlatline Kind = "flatline" // No variation at all
	KindZeroRun  Kind = "zero_run" // Extended run of zero demand
)

// Disposition is the review decision for one anomaly point
type Disposition string

const (
	DispositionPending     Disposition = "pending"
	DispositionKeep        Disposition = "keep"
	DispositionFlag        Disposition = "flag"
	DispositionAutoCorrect Disposition = "auto_correct"
	DispositionRemove      Disposition = "remove"
)

// Valid reports whether the disposition is one of the known values
func (d Disposition) Valid() bool {
	switch d {
	case DispositionPending, DispositionKeep, DispositionFlag, DispositionAutoCorrect, DispositionRemove:
		return true
	}
	return false
}

// Range is the expected value range at a point
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Result is one detector's finding for a single record index
type Result struct {
	Index    int     // Index in the series records
	Score    float64 // Higher = more abnormal
	Type     Kind
	Expected *Range
}

// DetectorConfig holds tuning for the detection algorithms
type DetectorConfig struct {
	IQRMultiplier float64 // k in the Q1-k*IQR / Q3+k*IQR bounds
	ZThreshold    float64 // Standard deviations for z-score detection
	WindowSize    int     // Window for the rolling detector
	MinDataPoints int     // Below this, detectors return nothing
	ZeroRunLength int     // Consecutive zeros forming a zero-run
}

// DefaultConfig returns default detector configuration
func DefaultConfig() DetectorConfig {
	return DetectorConfig{
		IQRMultiplier: 1.5,
		ZThreshold:    3.0,
		WindowSize:    7,
		MinDataPoints: 10,
		ZeroRunLength: 7,
	}
}

// ConfigFrom maps application configuration onto detector tuning
func ConfigFrom(cfg config.AnomalyConfig) DetectorConfig {
	return DetectorConfig{
		IQRMultiplier: cfg.IQRMultiplier,
		ZThreshold:    cfg.ZScoreThreshold,
		WindowSize:    cfg.RollingWindow,
		MinDataPoints: cfg.MinDataPoints,
		ZeroRunLength: cfg.ZeroRunLength,
	}
}

// Detector interface for all anomaly detection algorithms
type Detector interface {
	// Name returns the algorithm name
	Name() string

	// Detect finds anomalous record indices in the series
	Detect(series *timeseries.Series, config DetectorConfig) []Result
}

// Registry holds available detectors
var detectorRegistry = make(map[string]Detector)

// RegisterDetector adds a detector to the registry
func RegisterDetector(name string, detector Detector) {
	detectorRegistry[name] = detector
}

// GetDetector returns a detector by name
func GetDetector(name string) (Detector, error) {
	if detector, ok := detectorRegistry[name]; ok {
		return detector, nil
	}
	return nil, fmt.Errorf("unknown anomaly detector: %s", name)
}

// ListDetectors returns the available detector names, sorted
func ListDetectors() []string {
	names := make([]string, 0, len(detectorRegistry))
	for name := range detectorRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Point is one anomalous observation with its review state. Multiple
// methods flagging the same date merge into one point carrying every
// method name.
type Point struct {
	SKU         string      `json:"sku"`
	Date        time.Time   `json:"date"`
	Observed    float64     `json:"observed"`
	Expected    *Range      `json:"expected,omitempty"`
	Score       float64     `json:"score"`
	Type        Kind        `json:"type"`
	Methods     []string    `json:"methods"`
	Disposition Disposition `json:"disposition"`
	Corrected   bool        `json:"corrected"`
}

// Detect runs the named detection methods over one series and merges
// their findings by date (union). A point flagged by several methods
// keeps the highest score and lists every method that fired.
func Detect(series *timeseries.Series, methods []string, cfg DetectorConfig) ([]Point, error) {
	merged := make(map[int]*Point)

	for _, method := range methods {
		detector, err := GetDetector(method)
		if err != nil {
			return nil, err
		}
		for _, res := range detector.Detect(series, cfg) {
			if res.Index < 0 || res.Index >= series.Len() {
				continue
			}
			rec := series.Records[res.Index]
			p, ok := merged[res.Index]
			if !ok {
				p = &Point{
					SKU:         series.SKU,
					Date:        rec.Date,
					Observed:    rec.Quantity,
					Expected:    res.Expected,
					Score:       res.Score,
					Type:        res.Type,
					Disposition: DispositionPending,
				}
				merged[res.Index] = p
			}
			p.Methods = append(p.Methods, method)
			if res.Score > p.Score {
				p.Score = res.Score
				p.Type = res.Type
			}
			if p.Expected == nil {
				p.Expected = res.Expected
			}
		}
	}

	indexes := make([]int, 0, len(merged))
	for idx := range merged {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	points := make([]Point, 0, len(merged))
	for _, idx := range indexes {
		p := merged[idx]
		sort.Strings(p.Methods)
		points = append(points, *p)
	}
	return points, nil
}
