package health

import (
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/stocksight/stocksight/internal/config"
	"github.com/stocksight/stocksight/internal/dataset"
	"github.com/stocksight/stocksight/internal/timeseries"
)

// Issue classes handled by repair policies
const (
	ClassMissing    = "missing"
	ClassDuplicates = "duplicates"
	ClassNegatives  = "negatives"
	ClassOutliers   = "outliers"
)

// RepairPolicyError reports an unsupported policy for an issue class
type RepairPolicyError struct {
	Class  string
	Policy string
}

func (e *RepairPolicyError) Error() string {
	return fmt.Sprintf("unsupported %s policy: %q", e.Class, e.Policy)
}

// Policy selects one repair action per issue class
type Policy struct {
	Missing    string `json:"missing"`    // fill_forward, zero, mean, drop_row
	Duplicates string `json:"duplicates"` // sum, average, take_first
	Negatives  string `json:"negatives"`  // zero, absolute
	Outliers   string `json:"outliers"`   // remove, cap
}

// PolicyFromConfig builds the default policy from configuration
func PolicyFromConfig(cfg config.QualityConfig) Policy {
	return Policy{
		Missing:    cfg.MissingPolicy,
		Duplicates: cfg.DuplicatePolicy,
		Negatives:  cfg.NegativePolicy,
		Outliers:   cfg.OutlierPolicy,
	}
}

// Validate checks every policy value against its issue class
func (p Policy) Validate() error {
	valid := map[string][]string{
		ClassMissing:    {"fill_forward", "zero", "mean", "drop_row"},
		ClassDuplicates: {"sum", "average", "take_first"},
		ClassNegatives:  {"zero", "absolute"},
		ClassOutliers:   {"remove", "cap"},
	}
	chosen := map[string]string{
		ClassMissing:    p.Missing,
		ClassDuplicates: p.Duplicates,
		ClassNegatives:  p.Negatives,
		ClassOutliers:   p.Outliers,
	}
	for _, class := range []string{ClassDuplicates, ClassMissing, ClassNegatives, ClassOutliers} {
		ok := false
		for _, v := range valid[class] {
			if chosen[class] == v {
				ok = true
				break
			}
		}
		if !ok {
			return &RepairPolicyError{Class: class, Policy: chosen[class]}
		}
	}
	return nil
}

// MetricStatus grades a metric for presentation
type MetricStatus string

const (
	StatusGood     MetricStatus = "good"
	StatusWarning  MetricStatus = "warning"
	StatusCritical MetricStatus = "critical"
)

// Metric is one graded quality measurement
type Metric struct {
	Value  float64      `json:"value"`
	Status MetricStatus `json:"status"`
}

// PendingIssue is an anomaly flagged for manual review rather than
// auto-repair
type PendingIssue struct {
	SKU  string    `json:"sku"`
	Date time.Time `json:"date"`
	Note string    `json:"note"`
}

// QualityReport summarizes dataset health. Score starts at 100 and
// loses capped deductions per issue class.
type QualityReport struct {
	TotalRecords     int     `json:"total_records"`
	Items            int     `json:"items"`
	MissingCount     int     `json:"missing_count"`
	DuplicateCount   int     `json:"duplicate_count"`
	NegativeCount    int     `json:"negative_count"`
	OutlierCount     int     `json:"outlier_count"`
	DateRangeDays    int     `json:"date_range_days"`
	AvgPointsPerItem float64 `json:"avg_points_per_item"`
	Score            float64 `json:"score"`

	Metrics         map[string]Metric `json:"metrics"`
	Issues          []string          `json:"issues"`
	Recommendations []string          `json:"recommendations"`
	Pending         []PendingIssue    `json:"pending,omitempty"`
}

// Engine computes quality reports and applies repair policies. It also
// holds the queue of anomaly points flagged for manual review.
type Engine struct {
	cfg config.QualityConfig

	mu      sync.Mutex
	pending []PendingIssue
}

// NewEngine creates a health engine
func NewEngine(cfg config.QualityConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Analyze scans the dataset and produces a quality report. It is pure:
// no series is modified.
func (e *Engine) Analyze(ctx context.Context, h *dataset.Handle, chunkSize int) (*QualityReport, error) {
	report := &QualityReport{Metrics: make(map[string]Metric)}

	var sum, sumSq float64
	var minDate, maxDate time.Time

	it := h.Chunks(chunkSize)
	for {
		chunk, err := it.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, series := range chunk.Series {
			report.Items++
			report.TotalRecords += series.Len()
			report.MissingCount += len(series.Gaps())
			report.DuplicateCount += duplicateCount(series)

			for _, r := range series.Records {
				if r.Quantity < 0 {
					report.NegativeCount++
				}
				sum += r.Quantity
				sumSq += r.Quantity * r.Quantity
				if minDate.IsZero() || r.Date.Before(minDate) {
					minDate = r.Date
				}
				if maxDate.IsZero() || r.Date.After(maxDate) {
					maxDate = r.Date
				}
			}
		}
	}

	if report.TotalRecords == 0 {
		report.Issues = append(report.Issues, "no records loaded")
		return report, nil
	}

	mean := sum / float64(report.TotalRecords)
	variance := sumSq/float64(report.TotalRecords) - mean*mean
	if variance < 0 {
		variance = 0
	}
	stdDev := math.Sqrt(variance)

	// second pass for outliers once the global profile is known
	if stdDev > 0 {
		lower := mean - e.cfg.OutlierZThreshold*stdDev
		upper := mean + e.cfg.OutlierZThreshold*stdDev
		it = h.Chunks(chunkSize)
		for {
			chunk, err := it.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			for _, series := range chunk.Series {
				for _, r := range series.Records {
					if r.Quantity < lower || r.Quantity > upper {
						report.OutlierCount++
					}
				}
			}
		}
	}

	report.DateRangeDays = int(maxDate.Sub(minDate).Hours() / 24)
	report.AvgPointsPerItem = float64(report.TotalRecords) / float64(report.Items)
	e.score(report)

	e.mu.Lock()
	report.Pending = append([]PendingIssue(nil), e.pending...)
	e.mu.Unlock()

	return report, nil
}

// score fills the graded metrics and the 0-100 quality score
func (e *Engine) score(report *QualityReport) {
	score := 100.0

	missingPct := float64(report.MissingCount) / float64(report.TotalRecords+report.MissingCount) * 100
	report.Metrics["missing_data"] = Metric{Value: missingPct, Status: grade(missingPct, 5, 15)}
	if missingPct > 5 {
		report.Issues = append(report.Issues, fmt.Sprintf("%.1f%% missing periods detected", missingPct))
		report.Recommendations = append(report.Recommendations, "fill missing periods with forward fill or zeros")
		score -= math.Min(20, missingPct)
	}

	dupPct := float64(report.DuplicateCount) / float64(report.TotalRecords) * 100
	report.Metrics["duplicates"] = Metric{Value: dupPct, Status: gradeZero(dupPct, 5)}
	if report.DuplicateCount > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d duplicate item+date entries found", report.DuplicateCount))
		report.Recommendations = append(report.Recommendations, "aggregate duplicates by sum or average")
		score -= math.Min(15, dupPct*2)
	}

	negPct := float64(report.NegativeCount) / float64(report.TotalRecords) * 100
	report.Metrics["negative_values"] = Metric{Value: negPct, Status: gradeZero(negPct, 2)}
	if report.NegativeCount > 0 {
		report.Issues = append(report.Issues, fmt.Sprintf("%d negative quantity values", report.NegativeCount))
		report.Recommendations = append(report.Recommendations, "review negative values, they may indicate returns")
		score -= math.Min(10, negPct*3)
	}

	report.Metrics["data_coverage"] = Metric{
		Value:  report.AvgPointsPerItem,
		Status: e.coverageGrade(report.AvgPointsPerItem),
	}
	if report.AvgPointsPerItem < e.cfg.MinPointsPerItem {
		report.Issues = append(report.Issues,
			fmt.Sprintf("low data points per item: %.1f (minimum recommended: %.0f)", report.AvgPointsPerItem, e.cfg.MinPointsPerItem))
		report.Recommendations = append(report.Recommendations, "consider weekly or monthly aggregation")
		score -= 10
	}

	report.Score = math.Max(0, math.Min(100, score))
}

func grade(v, warn, critical float64) MetricStatus {
	switch {
	case v < warn:
		return StatusGood
	case v < critical:
		return StatusWarning
	default:
		return StatusCritical
	}
}

func gradeZero(v, critical float64) MetricStatus {
	switch {
	case v == 0:
		return StatusGood
	case v < critical:
		return StatusWarning
	default:
		return StatusCritical
	}
}

// coverageGrade bands average points per item against the configured
// coverage thresholds
func (e *Engine) coverageGrade(points float64) MetricStatus {
	switch {
	case points >= e.cfg.CoverageGoodPoints:
		return StatusGood
	case points >= e.cfg.CoverageWarnPoints:
		return StatusWarning
	default:
		return StatusCritical
	}
}

func duplicateCount(series *timeseries.Series) int {
	seen := make(map[time.Time]bool, series.Len())
	dups := 0
	for _, r := range series.Records {
		if seen[r.Date] {
			dups++
		}
		seen[r.Date] = true
	}
	return dups
}

// Repair applies one policy per issue class in fixed order: duplicates,
// then missing, then negatives, then outliers. Later classes assume
// earlier ones are resolved; running out of order would double-count.
// Writes repaired series back into the handle and returns a fresh report.
func (e *Engine) Repair(ctx context.Context, h *dataset.Handle, chunkSize int, policy Policy) (*QualityReport, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	// stage 1: per-series repairs
	it := h.Chunks(chunkSize)
	for {
		chunk, err := it.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, series := range chunk.Series {
			changed := repairDuplicates(series, policy.Duplicates)
			changed = repairMissing(series, policy.Missing) || changed
			changed = repairNegatives(series, policy.Negatives) || changed
			if changed {
				if err := h.ReplaceSeries(series); err != nil {
					return nil, err
				}
			}
		}
	}

	// stage 2: outlier bounds from the repaired global profile
	mean, stdDev, err := globalProfile(ctx, h, chunkSize)
	if err != nil {
		return nil, err
	}
	if stdDev > 0 {
		lower := mean - e.cfg.OutlierZThreshold*stdDev
		upper := mean + e.cfg.OutlierZThreshold*stdDev
		it = h.Chunks(chunkSize)
		for {
			chunk, err := it.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			for _, series := range chunk.Series {
				if repairOutliers(series, policy.Outliers, lower, upper) {
					if err := h.ReplaceSeries(series); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	return e.Analyze(ctx, h, chunkSize)
}

func globalProfile(ctx context.Context, h *dataset.Handle, chunkSize int) (mean, stdDev float64, err error) {
	var sum, sumSq float64
	var n int
	it := h.Chunks(chunkSize)
	for {
		chunk, err := it.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, 0, err
		}
		for _, series := range chunk.Series {
			for _, r := range series.Records {
				sum += r.Quantity
				sumSq += r.Quantity * r.Quantity
				n++
			}
		}
	}
	if n == 0 {
		return 0, 0, nil
	}
	mean = sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance), nil
}

// repairDuplicates merges records sharing the same date
func repairDuplicates(series *timeseries.Series, policy string) bool {
	byDate := make(map[time.Time][]timeseries.Record, series.Len())
	order := make([]time.Time, 0, series.Len())
	for _, r := range series.Records {
		if _, ok := byDate[r.Date]; !ok {
			order = append(order, r.Date)
		}
		byDate[r.Date] = append(byDate[r.Date], r)
	}
	if len(order) == series.Len() {
		return false
	}

	merged := make([]timeseries.Record, 0, len(order))
	for _, date := range order {
		group := byDate[date]
		if len(group) == 1 {
			merged = append(merged, group[0])
			continue
		}
		rec := group[0]
		switch policy {
		case "take_first":
			// keep rec as is
		case "sum", "average":
			total := 0.0
			for _, g := range group {
				total += g.Quantity
			}
			if policy == "average" {
				total /= float64(len(group))
			}
			rec.Quantity = total
		}
		merged = append(merged, rec)
	}
	series.Records = merged
	sort.Slice(series.Records, func(i, j int) bool {
		return series.Records[i].Date.Before(series.Records[j].Date)
	})
	return true
}

// repairMissing materializes synthetic records at gap periods
func repairMissing(series *timeseries.Series, policy string) bool {
	if policy == "drop_row" {
		return false // gaps stay explicit
	}
	gaps := series.Gaps()
	if len(gaps) == 0 {
		return false
	}

	mean := series.Mean()
	for _, gap := range gaps {
		value := 0.0
		switch policy {
		case "zero":
			value = 0
		case "mean":
			value = mean
		case "fill_forward":
			for i := len(series.Records) - 1; i >= 0; i-- {
				if series.Records[i].Date.Before(gap) {
					value = series.Records[i].Quantity
					break
				}
			}
		}
		series.Records = append(series.Records, timeseries.Record{Date: gap, Quantity: value})
	}
	series.Sort()
	return true
}

func repairNegatives(series *timeseries.Series, policy string) bool {
	changed := false
	for i, r := range series.Records {
		if r.Quantity >= 0 {
			continue
		}
		switch policy {
		case "zero":
			series.Records[i].Quantity = 0
		case "absolute":
			series.Records[i].Quantity = -r.Quantity
		}
		changed = true
	}
	return changed
}

func repairOutliers(series *timeseries.Series, policy string, lower, upper float64) bool {
	changed := false
	switch policy {
	case "remove":
		kept := series.Records[:0]
		for _, r := range series.Records {
			if r.Quantity < lower || r.Quantity > upper {
				changed = true
				continue
			}
			kept = append(kept, r)
		}
		series.Records = kept
	case "cap":
		for i, r := range series.Records {
			if r.Quantity > upper {
				series.Records[i].Quantity = upper
				changed = true
			} else if r.Quantity < lower {
				series.Records[i].Quantity = lower
				changed = true
			}
		}
	}
	return changed
}

// FlagPending queues an anomaly point for manual review. Re-flagging the
// same point is a no-op.
func (e *Engine) FlagPending(sku string, date time.Time, note string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, p := range e.pending {
		if p.SKU == sku && p.Date.Equal(date) {
			return
		}
	}
	e.pending = append(e.pending, PendingIssue{SKU: sku, Date: date, Note: note})
}

// PendingIssues returns the queued manual-review items
func (e *Engine) PendingIssues() []PendingIssue {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]PendingIssue(nil), e.pending...)
}

// ResolvePending drops a queued item once reviewed
func (e *Engine) ResolvePending(sku string, date time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.pending[:0]
	for _, p := range e.pending {
		if p.SKU == sku && p.Date.Equal(date) {
			continue
		}
		kept = append(kept, p)
	}
	e.pending = kept
}
