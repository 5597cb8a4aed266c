package features

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/stocksight/stocksight/internal/config"
	"github.com/stocksight/stocksight/internal/dataset"
	"github.com/stocksight/stocksight/internal/timeseries"
)

// Definition describes one feature in the fixed catalog. Advanced
// features are the heavier computations that only run when a caller
// opts in.
type Definition struct {
	Name     string
	Advanced bool
	compute  func(s *timeseries.Series) []float64
}

// catalog is the fixed feature catalog. Order is the column order of
// every FeatureSet built from it.
var catalog = []Definition{
	{Name: "lag_1", compute: lagFeature(1)},
	{Name: "lag_7", compute: lagFeature(7)},
	{Name: "lag_14", compute: lagFeature(14)},
	{Name: "lag_28", compute: lagFeature(28)},
	{Name: "rolling_mean_7", compute: rollingMeanFeature(7)},
	{Name: "rolling_std_7", compute: rollingStdFeature(7)},
	{Name: "day_of_week", compute: dayOfWeek},
	{Name: "month", compute: monthOfYear},
	{Name: "quarter", compute: quarterOfYear},
	{Name: "week_of_year", compute: weekOfYear},
	{Name: "is_weekend", compute: isWeekend},
	{Name: "price_change_pct", compute: priceChangePct},
	{Name: "price_relative_to_avg", compute: priceRelativeToAvg},
	{Name: "promo_flag", compute: promoFlag},
	{Name: "promo_intensity", compute: promoIntensityFeature(7)},
	{Name: "trend_component", compute: trendComponent},
	{Name: "seasonal_index", compute: seasonalIndex},
	{Name: "rolling_mean_28", Advanced: true, compute: rollingMeanFeature(28)},
	{Name: "rolling_std_28", Advanced: true, compute: rollingStdFeature(28)},
	{Name: "seasonal_index_secondary", Advanced: true, compute: seasonalIndexSecondary},
}

// presets maps a preset name to the feature names it includes. The
// volume-tier to preset assignment lives in configuration; the preset
// contents are fixed alongside the catalog.
var presets = map[string][]string{
	"full": {
		"lag_1", "lag_7", "lag_14", "lag_28",
		"rolling_mean_7", "rolling_std_7",
		"day_of_week", "month", "quarter", "week_of_year", "is_weekend",
		"price_change_pct", "price_relative_to_avg",
		"promo_flag", "promo_intensity",
		"trend_component", "seasonal_index",
	},
	"medium": {
		"lag_1", "lag_7",
		"rolling_mean_7",
		"day_of_week", "month", "is_weekend",
		"promo_flag",
		"trend_component", "seasonal_index",
	},
	"minimal": {
		"lag_1",
		"rolling_mean_7",
		"month",
		"promo_flag",
	},
}

// advancedNames lists the opt-in features appended when Build runs with
// advanced enabled.
var advancedNames = []string{"rolling_mean_28", "rolling_std_28", "seasonal_index_secondary"}

// Catalog returns the full feature catalog.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Presets returns the known preset names, sorted.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FeatureSet holds the computed feature columns for one item, aligned
// with the series records. Undefined positions (lag warmups, missing
// prices) are NaN. Preset and Epoch record what the set was built from
// so stale sets can be recomputed after repairs.
type FeatureSet struct {
	SKU      string
	Preset   string
	Advanced bool
	Epoch    int64
	Names    []string
	Columns  map[string][]float64
	Target   []float64
}

// Column returns one feature column by name.
func (fs *FeatureSet) Column(name string) ([]float64, bool) {
	col, ok := fs.Columns[name]
	return col, ok
}

// Stale reports whether the set was built from an older dataset epoch.
func (fs *FeatureSet) Stale(epoch int64) bool {
	return fs.Epoch != epoch
}

// Engine builds feature sets according to the configured tier presets.
type Engine struct {
	cfg config.FeaturesConfig
}

// NewEngine creates a feature engineering engine.
func NewEngine(cfg config.FeaturesConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Build computes the preset's feature columns for one series. With
// advanced enabled the heavier opt-in features are appended.
func (e *Engine) Build(series *timeseries.Series, preset string, advanced bool) (*FeatureSet, error) {
	preset = strings.ToLower(preset)
	names, ok := presets[preset]
	if !ok {
		return nil, fmt.Errorf("unknown feature preset: %s", preset)
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("cannot build features for empty series %s", series.SKU)
	}

	selected := names
	if advanced {
		selected = append(append([]string{}, names...), advancedNames...)
	}

	fs := &FeatureSet{
		SKU:      series.SKU,
		Preset:   preset,
		Advanced: advanced,
		Names:    make([]string, 0, len(selected)),
		Columns:  make(map[string][]float64, len(selected)),
		Target:   series.Values(),
	}

	byName := make(map[string]Definition, len(catalog))
	for _, def := range catalog {
		byName[def.Name] = def
	}
	for _, name := range selected {
		def, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("preset %s references unknown feature %s", preset, name)
		}
		fs.Names = append(fs.Names, name)
		fs.Columns[name] = def.compute(series)
	}
	return fs, nil
}

// BuildForItem resolves an item's series from the handle, maps its
// volume tier to a preset, and stamps the result with the handle epoch.
func (e *Engine) BuildForItem(h *dataset.Handle, sku, tier string, advanced bool) (*FeatureSet, error) {
	series, err := h.Series(sku)
	if err != nil {
		return nil, err
	}
	fs, err := e.Build(series, e.cfg.PresetFor(tier), advanced)
	if err != nil {
		return nil, err
	}
	fs.Epoch = h.Epoch()
	return fs, nil
}

func lagFeature(k int) func(*timeseries.Series) []float64 {
	return func(s *timeseries.Series) []float64 {
		out := nanColumn(s.Len())
		for i := k; i < s.Len(); i++ {
			out[i] = s.Records[i-k].Quantity
		}
		return out
	}
}

// rollingMeanFeature averages the w records preceding each position.
// The current record is excluded so the column carries no target leak.
func rollingMeanFeature(w int) func(*timeseries.Series) []float64 {
	return func(s *timeseries.Series) []float64 {
		out := nanColumn(s.Len())
		var sum float64
		for i, r := range s.Records {
			if i >= w {
				out[i] = sum / float64(w)
				sum -= s.Records[i-w].Quantity
			}
			sum += r.Quantity
		}
		return out
	}
}

func rollingStdFeature(w int) func(*timeseries.Series) []float64 {
	return func(s *timeseries.Series) []float64 {
		out := nanColumn(s.Len())
		values := s.Values()
		for i := w; i < len(values); i++ {
			_, std := timeseries.MeanStdDev(values[i-w : i])
			out[i] = std
		}
		return out
	}
}

func dayOfWeek(s *timeseries.Series) []float64 {
	out := make([]float64, s.Len())
	for i, r := range s.Records {
		out[i] = float64(r.Date.Weekday())
	}
	return out
}

func monthOfYear(s *timeseries.Series) []float64 {
	out := make([]float64, s.Len())
	for i, r := range s.Records {
		out[i] = float64(r.Date.Month())
	}
	return out
}

func quarterOfYear(s *timeseries.Series) []float64 {
	out := make([]float64, s.Len())
	for i, r := range s.Records {
		out[i] = float64((int(r.Date.Month())-1)/3 + 1)
	}
	return out
}

func weekOfYear(s *timeseries.Series) []float64 {
	out := make([]float64, s.Len())
	for i, r := range s.Records {
		_, week := r.Date.ISOWeek()
		out[i] = float64(week)
	}
	return out
}

func isWeekend(s *timeseries.Series) []float64 {
	out := make([]float64, s.Len())
	for i, r := range s.Records {
		if wd := r.Date.Weekday(); wd == 0 || wd == 6 {
			out[i] = 1
		}
	}
	return out
}

func priceChangePct(s *timeseries.Series) []float64 {
	out := nanColumn(s.Len())
	prev := math.NaN()
	for i, r := range s.Records {
		if !r.HasPrice {
			continue
		}
		if !math.IsNaN(prev) && prev != 0 {
			out[i] = (r.Price - prev) / prev * 100
		}
		prev = r.Price
	}
	return out
}

func priceRelativeToAvg(s *timeseries.Series) []float64 {
	out := nanColumn(s.Len())
	var sum float64
	count := 0
	for _, r := range s.Records {
		if r.HasPrice {
			sum += r.Price
			count++
		}
	}
	if count == 0 {
		return out
	}
	avg := sum / float64(count)
	if avg == 0 {
		return out
	}
	for i, r := range s.Records {
		if r.HasPrice {
			out[i] = r.Price / avg
		}
	}
	return out
}

func promoFlag(s *timeseries.Series) []float64 {
	out := make([]float64, s.Len())
	for i, r := range s.Records {
		if r.HasPromo && r.Promo {
			out[i] = 1
		}
	}
	return out
}

// promoIntensityFeature is the share of promo periods in the trailing
// window, the current record included.
func promoIntensityFeature(w int) func(*timeseries.Series) []float64 {
	return func(s *timeseries.Series) []float64 {
		out := make([]float64, s.Len())
		for i := range s.Records {
			start := i - w + 1
			if start < 0 {
				start = 0
			}
			promos := 0
			for j := start; j <= i; j++ {
				if s.Records[j].HasPromo && s.Records[j].Promo {
					promos++
				}
			}
			out[i] = float64(promos) / float64(i-start+1)
		}
		return out
	}
}

// trendComponent is the least-squares line fitted to the quantity over
// the record index, evaluated at each position.
func trendComponent(s *timeseries.Series) []float64 {
	out := make([]float64, s.Len())
	n := float64(s.Len())
	if s.Len() < 2 {
		for i, r := range s.Records {
			out[i] = r.Quantity
		}
		return out
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, r := range s.Records {
		x := float64(i)
		sumX += x
		sumY += r.Quantity
		sumXY += x * r.Quantity
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		mean := sumY / n
		for i := range out {
			out[i] = mean
		}
		return out
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	for i := range out {
		out[i] = intercept + slope*float64(i)
	}
	return out
}

// seasonalIndex is the ratio of the mean for the record's primary
// seasonal position (weekday for daily series, week for weekly, month
// for monthly) to the overall mean.
func seasonalIndex(s *timeseries.Series) []float64 {
	return periodIndex(s, primaryPeriod(s.Frequency))
}

// seasonalIndexSecondary uses the longer second seasonal cycle: the
// yearly month pattern for daily series, the quarter for the rest.
func seasonalIndexSecondary(s *timeseries.Series) []float64 {
	if s.Frequency == timeseries.FrequencyDaily {
		return periodIndex(s, func(r timeseries.Record) int { return int(r.Date.Month()) })
	}
	return periodIndex(s, func(r timeseries.Record) int { return (int(r.Date.Month())-1)/3 + 1 })
}

func primaryPeriod(f timeseries.Frequency) func(timeseries.Record) int {
	switch f {
	case timeseries.FrequencyWeekly:
		return func(r timeseries.Record) int { _, w := r.Date.ISOWeek(); return w }
	case timeseries.FrequencyMonthly:
		return func(r timeseries.Record) int { return int(r.Date.Month()) }
	default:
		return func(r timeseries.Record) int { return int(r.Date.Weekday()) }
	}
}

func periodIndex(s *timeseries.Series, key func(timeseries.Record) int) []float64 {
	out := nanColumn(s.Len())
	overall := s.Mean()
	if overall == 0 {
		return out
	}

	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, r := range s.Records {
		k := key(r)
		sums[k] += r.Quantity
		counts[k]++
	}
	for i, r := range s.Records {
		k := key(r)
		out[i] = (sums[k] / float64(counts[k])) / overall
	}
	return out
}

func nanColumn(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
