package cluster

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stocksight/stocksight/internal/config"
	"github.com/stocksight/stocksight/internal/dataset"
	"github.com/stocksight/stocksight/internal/schema"
	"github.com/stocksight/stocksight/internal/timeseries"
)

func testClusterConfig() config.ClusterConfig {
	return config.ClusterConfig{
		ClassACumulative: 80.0,
		ClassBCumulative: 95.0,
		SeasonalQ4:       0.45,
		ErraticCV:        1.0,
		VariableCV:       0.5,
	}
}

// buildVolumeHandle creates items with strictly decreasing steady volume:
// item i contributes (items-i) units per day for 10 days.
func buildVolumeHandle(t *testing.T, items int) *dataset.Handle {
	t.Helper()
	var rows [][]string
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < items; i++ {
		for d := 0; d < 10; d++ {
			rows = append(rows, []string{
				start.AddDate(0, 0, d).Format("2006-01-02"),
				fmt.Sprintf("SKU-%03d", i),
				fmt.Sprintf("%d", items-i),
			})
		}
	}
	return buildRows(t, rows)
}

func buildRows(t *testing.T, rows [][]string) *dataset.Handle {
	t.Helper()
	mapping := &schema.ColumnMapping{
		Columns: map[schema.Role]string{
			schema.RoleDate:     "date",
			schema.RoleItemID:   "sku",
			schema.RoleQuantity: "qty",
		},
		Confidence: map[schema.Role]float64{},
	}
	src := dataset.NewSliceSource([]string{"date", "sku", "qty"}, rows, 100)
	h, err := dataset.Build(context.Background(), src, mapping, dataset.BuildOptions{
		Frequency: timeseries.FrequencyDaily,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return h
}

func TestABCPartition(t *testing.T) {
	h := buildVolumeHandle(t, 20)
	result, err := NewEngine(testClusterConfig()).Classify(context.Background(), h, 7)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if len(result.Assignments) != 20 {
		t.Fatalf("expected 20 assignments, got %d", len(result.Assignments))
	}

	// every item in exactly one tier
	counts := map[string]int{}
	for _, a := range result.Assignments {
		counts[a.VolumeTier]++
	}
	if counts[TierA]+counts[TierB]+counts[TierC] != 20 {
		t.Errorf("tiers must partition items: %v", counts)
	}
	for tier := range counts {
		if tier != TierA && tier != TierB && tier != TierC {
			t.Errorf("unexpected tier %q", tier)
		}
	}

	// cumulative volume of A is >= the A cut and < the B cut
	total := 0.0
	tierAVolume := 0.0
	tierABVolume := 0.0
	for _, a := range result.Assignments {
		total += a.TotalVolume
		if a.VolumeTier == TierA {
			tierAVolume += a.TotalVolume
		}
		if a.VolumeTier == TierA || a.VolumeTier == TierB {
			tierABVolume += a.TotalVolume
		}
	}
	aPct := tierAVolume / total * 100
	if aPct < 80 {
		t.Errorf("tier A cumulative volume %.1f%% below the 80%% cut", aPct)
	}
	if aPct >= 95 {
		t.Errorf("tier A cumulative volume %.1f%% should stay below the B cut", aPct)
	}
	if abPct := tierABVolume / total * 100; abPct < 95 {
		t.Errorf("tiers A+B cumulative volume %.1f%% below the 95%% cut", abPct)
	}

	// highest-volume item is tier A, lowest is tier C
	if result.Assignments["SKU-000"].VolumeTier != TierA {
		t.Error("highest-volume item should be tier A")
	}
	if result.Assignments["SKU-019"].VolumeTier != TierC {
		t.Error("lowest-volume item should be tier C")
	}
}

func TestABCTieBreakByItemID(t *testing.T) {
	// two items with identical volume and a config where only one fits in A
	var rows [][]string
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, sku := range []string{"B-ITEM", "A-ITEM"} {
		for d := 0; d < 5; d++ {
			rows = append(rows, []string{start.AddDate(0, 0, d).Format("2006-01-02"), sku, "10"})
		}
	}
	h := buildRows(t, rows)

	cfg := testClusterConfig()
	cfg.ClassACumulative = 40.0
	cfg.ClassBCumulative = 90.0

	first, err := NewEngine(cfg).Classify(context.Background(), h, 10)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	second, err := NewEngine(cfg).Classify(context.Background(), h, 1)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	// A-ITEM sorts first on the tie, so it lands in the higher tier, and
	// the result is identical across chunk sizes
	if first.Assignments["A-ITEM"].VolumeTier != TierA {
		t.Errorf("tie should break by item id: A-ITEM got %s", first.Assignments["A-ITEM"].VolumeTier)
	}
	for sku, a := range first.Assignments {
		if second.Assignments[sku].VolumeTier != a.VolumeTier {
			t.Errorf("chunk size changed tier for %s", sku)
		}
	}
}

func TestPatternTypes(t *testing.T) {
	engine := NewEngine(testClusterConfig())

	tests := []struct {
		name     string
		stats    timeseries.Stats
		expected string
	}{
		{"steady", timeseries.Stats{CV: 0.2, Q4Concentration: 0.25}, PatternSteady},
		{"variable", timeseries.Stats{CV: 0.7, Q4Concentration: 0.25}, PatternVariable},
		{"erratic", timeseries.Stats{CV: 1.5, Q4Concentration: 0.25}, PatternErratic},
		{"seasonal", timeseries.Stats{CV: 0.7, Q4Concentration: 0.6}, PatternSeasonal},
		{"seasonal beats erratic", timeseries.Stats{CV: 2.0, Q4Concentration: 0.5}, PatternSeasonal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := engine.patternType(tt.stats); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestZeroTailLowerCVThanSpike(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	var rows [][]string
	days := 730
	for d := 0; d < days; d++ {
		date := start.AddDate(0, 0, d).Format("2006-01-02")

		// zero-tail: steady 10/day, all-zero final quarter
		qty := "10"
		if d >= days-91 {
			qty = "0"
		}
		rows = append(rows, []string{date, "ZERO-TAIL", qty})

		// spike: steady 10/day with one 50x day
		qty = "10"
		if d == 100 {
			qty = "500"
		}
		rows = append(rows, []string{date, "SPIKE", qty})
	}
	h := buildRows(t, rows)

	result, err := NewEngine(testClusterConfig()).Classify(context.Background(), h, 10)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	zeroTail := result.Assignments["ZERO-TAIL"]
	spike := result.Assignments["SPIKE"]
	if zeroTail.CV >= spike.CV {
		t.Errorf("zero-tail CV %.3f should be below spike CV %.3f", zeroTail.CV, spike.CV)
	}
}

func TestSummarize(t *testing.T) {
	h := buildVolumeHandle(t, 10)
	result, err := NewEngine(testClusterConfig()).Classify(context.Background(), h, 4)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	summary := result.Summarize()
	if len(summary) == 0 {
		t.Fatal("expected at least one cluster in summary")
	}

	itemPct := 0.0
	volumePct := 0.0
	for _, s := range summary {
		itemPct += s.PctOfItems
		volumePct += s.PctOfVolume
		if s.Label == "" {
			t.Error("summary rows need labels")
		}
	}
	if itemPct < 99.9 || itemPct > 100.1 {
		t.Errorf("item percentages should sum to 100, got %.2f", itemPct)
	}
	if volumePct < 99.9 || volumePct > 100.1 {
		t.Errorf("volume percentages should sum to 100, got %.2f", volumePct)
	}

	// sorted by tier then pattern
	tierOrder := map[string]int{TierA: 0, TierB: 1, TierC: 2}
	for i := 1; i < len(summary); i++ {
		prev, cur := summary[i-1], summary[i]
		if tierOrder[prev.VolumeTier] > tierOrder[cur.VolumeTier] {
			t.Error("summary not sorted by tier")
		}
	}
}

func TestLabel(t *testing.T) {
	if got := Label(TierA, PatternSeasonal); got != "High Volume - Seasonal" {
		t.Errorf("unexpected label: %s", got)
	}
	if got := Label(TierC, PatternSteady); got != "Low Volume - Steady" {
		t.Errorf("unexpected label: %s", got)
	}
}
