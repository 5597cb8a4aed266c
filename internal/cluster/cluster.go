package cluster

import (
	"context"
	"io"
	"sort"

	"github.com/stocksight/stocksight/internal/config"
	"github.com/stocksight/stocksight/internal/dataset"
	"github.com/stocksight/stocksight/internal/timeseries"
)

// Volume tiers
const (
	TierA = "A"
	TierB = "B"
	TierC = "C"
)

// Pattern types
const (
	PatternSteady   = "steady"
	PatternSeasonal = "seasonal"
	PatternErratic  = "erratic"
	PatternVariable = "variable"
)

var tierNames = map[string]string{
	TierA: "High Volume",
	TierB: "Medium Volume",
	TierC: "Low Volume",
}

var patternNames = map[string]string{
	PatternSteady:   "Steady",
	PatternSeasonal: "Seasonal",
	PatternErratic:  "Erratic",
	PatternVariable: "Variable",
}

// Label builds the display label for a tier and pattern combination
func Label(tier, pattern string) string {
	return tierNames[tier] + " - " + patternNames[pattern]
}

// Assignment is one item's cluster membership
type Assignment struct {
	SKU             string  `json:"sku"`
	VolumeTier      string  `json:"volume_tier"`
	PatternType     string  `json:"pattern_type"`
	Label           string  `json:"cluster_label"`
	TotalVolume     float64 `json:"total_volume"`
	CV              float64 `json:"cv"`
	Q4Concentration float64 `json:"q4_concentration"`
}

// Summary aggregates one tier x pattern cluster
type Summary struct {
	Label       string  `json:"cluster"`
	VolumeTier  string  `json:"volume_tier"`
	PatternType string  `json:"pattern_type"`
	ItemCount   int     `json:"item_count"`
	TotalVolume float64 `json:"total_volume"`
	PctOfItems  float64 `json:"pct_of_items"`
	PctOfVolume float64 `json:"pct_of_volume"`
}

// Result holds a full clustering run. Epoch records the dataset state the
// run was computed at, for lazy invalidation.
type Result struct {
	Assignments map[string]Assignment `json:"assignments"`
	Epoch       int64                 `json:"epoch"`
}

// Engine assigns volume tiers and pattern types from summary statistics.
// Pure threshold logic over ItemSeries stats; it never mutates data.
type Engine struct {
	cfg config.ClusterConfig
}

// NewEngine creates a clustering engine
func NewEngine(cfg config.ClusterConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Classify runs the full clustering pass: per-item statistics in chunked
// iteration, then the cumulative-volume ABC partition, then pattern
// typing. Ties on volume break by item id so runs are reproducible.
func (e *Engine) Classify(ctx context.Context, h *dataset.Handle, chunkSize int) (*Result, error) {
	epoch := h.Epoch()

	var stats []timeseries.Stats
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
			stats = append(stats, series.Summarize())
		}
	}

	result := &Result{
		Assignments: make(map[string]Assignment, len(stats)),
		Epoch:       epoch,
	}
	if len(stats) == 0 {
		return result, nil
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].TotalVolume != stats[j].TotalVolume {
			return stats[i].TotalVolume > stats[j].TotalVolume
		}
		return stats[i].SKU < stats[j].SKU
	})

	grandTotal := 0.0
	for _, s := range stats {
		grandTotal += s.TotalVolume
	}

	// ABC partition: A is the smallest leading prefix covering the A cut,
	// B extends it to the B cut, C is the remainder
	cumulative := 0.0
	tier := TierA
	for _, s := range stats {
		if grandTotal > 0 {
			cumPct := cumulative / grandTotal * 100
			if tier == TierA && cumPct >= e.cfg.ClassACumulative {
				tier = TierB
			}
			if tier == TierB && cumPct >= e.cfg.ClassBCumulative {
				tier = TierC
			}
		}
		cumulative += s.TotalVolume

		pattern := e.patternType(s)
		result.Assignments[s.SKU] = Assignment{
			SKU:             s.SKU,
			VolumeTier:      tier,
			PatternType:     pattern,
			Label:           Label(tier, pattern),
			TotalVolume:     s.TotalVolume,
			CV:              s.CV,
			Q4Concentration: s.Q4Concentration,
		}
	}

	return result, nil
}

// patternType applies the CV and Q4-concentration thresholds. Seasonality
// wins over volatility when both fire.
func (e *Engine) patternType(s timeseries.Stats) string {
	if s.Q4Concentration >= e.cfg.SeasonalQ4 {
		return PatternSeasonal
	}
	switch {
	case s.CV >= e.cfg.ErraticCV:
		return PatternErratic
	case s.CV >= e.cfg.VariableCV:
		return PatternVariable
	default:
		return PatternSteady
	}
}

// ItemsByTier returns the item ids in one volume tier, sorted
func (r *Result) ItemsByTier(tier string) []string {
	var out []string
	for sku, a := range r.Assignments {
		if a.VolumeTier == tier {
			out = append(out, sku)
		}
	}
	sort.Strings(out)
	return out
}

// ItemsByPattern returns the item ids with one pattern type, sorted
func (r *Result) ItemsByPattern(pattern string) []string {
	var out []string
	for sku, a := range r.Assignments {
		if a.PatternType == pattern {
			out = append(out, sku)
		}
	}
	sort.Strings(out)
	return out
}

// Tier returns one item's volume tier, defaulting to C for unknown items
func (r *Result) Tier(sku string) string {
	if a, ok := r.Assignments[sku]; ok {
		return a.VolumeTier
	}
	return TierC
}

// Summarize groups the assignments into the tier x pattern matrix
func (r *Result) Summarize() []Summary {
	byKey := make(map[[2]string]*Summary)
	totalItems := 0
	totalVolume := 0.0

	for _, a := range r.Assignments {
		key := [2]string{a.VolumeTier, a.PatternType}
		s, ok := byKey[key]
		if !ok {
			s = &Summary{
				Label:       a.Label,
				VolumeTier:  a.VolumeTier,
				PatternType: a.PatternType,
			}
			byKey[key] = s
		}
		s.ItemCount++
		s.TotalVolume += a.TotalVolume
		totalItems++
		totalVolume += a.TotalVolume
	}

	out := make([]Summary, 0, len(byKey))
	for _, s := range byKey {
		if totalItems > 0 {
			s.PctOfItems = float64(s.ItemCount) / float64(totalItems) * 100
		}
		if totalVolume > 0 {
			s.PctOfVolume = s.TotalVolume / totalVolume * 100
		}
		out = append(out, *s)
	}

	tierOrder := map[string]int{TierA: 0, TierB: 1, TierC: 2}
	sort.Slice(out, func(i, j int) bool {
		if tierOrder[out[i].VolumeTier] != tierOrder[out[j].VolumeTier] {
			return tierOrder[out[i].VolumeTier] < tierOrder[out[j].VolumeTier]
		}
		return out[i].PatternType < out[j].PatternType
	})
	return out
}
