package forecast

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stocksight/stocksight/internal/timeseries"
)

func constantHistory(n int, value float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = value
	}
	return values
}

func TestFactoryRunSimpleStrategy(t *testing.T) {
	h := buildHandle(t, map[string][]float64{
		"SKU-001": constantHistory(40, 100),
		"SKU-002": constantHistory(40, 50),
		"SKU-003": constantHistory(40, 10),
	})
	tiers := map[string]string{"SKU-001": "A", "SKU-002": "B", "SKU-003": "C"}

	factory := NewFactory(testForecastConfig())
	run, err := factory.Run(context.Background(), h, tiers, Request{Strategy: "simple", Horizon: 6}, 2)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.ID == "" {
		t.Error("run should have an id")
	}
	if len(run.Items) != 3 {
		t.Fatalf("expected 3 item forecasts, got %d", len(run.Items))
	}

	for sku, item := range run.Items {
		if item.Status != StatusGood {
			t.Errorf("constant demand should forecast cleanly, %s got status %s (%s)", sku, item.Status, item.Note)
		}
		if len(item.Predictions) != 6 {
			t.Errorf("%s: expected 6 predictions, got %d", sku, len(item.Predictions))
		}
		if item.Predictions[0].Value != h.Volume(sku)/40 {
			t.Errorf("%s: constant series should predict its level, got %v", sku, item.Predictions[0].Value)
		}
	}

	if run.Summary.Good != 3 || run.Summary.Review != 0 {
		t.Errorf("summary mismatch: %+v", run.Summary)
	}
	if run.StrategyName != "Simple & Fast" {
		t.Errorf("expected display name from config, got %s", run.StrategyName)
	}

	stored, ok := factory.GetRun(run.ID)
	if !ok || stored != run {
		t.Error("run should be retrievable by id")
	}
}

func TestFactoryAdvancedRequiresTierA(t *testing.T) {
	cfg := testForecastConfig()
	factory := NewFactory(cfg)
	series := dailySeries("SKU-001", constantHistory(40, 100))

	for _, tier := range []string{"B", "C"} {
		_, err := factory.ForecastItem(series, tier, "advanced", 6)
		var notAllowed *StrategyNotAllowedError
		if !errors.As(err, &notAllowed) {
			t.Fatalf("tier %s: expected StrategyNotAllowedError, got %v", tier, err)
		}
		if notAllowed.Tier != tier || notAllowed.Strategy != "advanced" {
			t.Errorf("error should carry the attempt: %+v", notAllowed)
		}
	}

	if _, err := factory.ForecastItem(series, "A", "advanced", 6); err != nil {
		t.Errorf("tier A should be allowed the advanced strategy: %v", err)
	}
}

func TestFactoryAdvancedCoversAllowedTiersOnly(t *testing.T) {
	h := buildHandle(t, map[string][]float64{
		"SKU-001": constantHistory(40, 100),
		"SKU-002": constantHistory(40, 50),
		"SKU-003": constantHistory(40, 10),
	})
	tiers := map[string]string{"SKU-001": "A", "SKU-002": "B", "SKU-003": "C"}

	factory := NewFactory(testForecastConfig())
	run, err := factory.Run(context.Background(), h, tiers, Request{Strategy: "advanced"}, 10)
	if err != nil {
		t.Fatalf("advanced on a mixed catalog should run over the A items: %v", err)
	}
	if len(run.Items) != 1 {
		t.Fatalf("expected only the A item in the run, got %d items", len(run.Items))
	}
	if _, ok := run.Items["SKU-001"]; !ok {
		t.Error("the A item should be forecast")
	}
	if run.Summary.Items != 1 {
		t.Errorf("summary should count scoped items only: %+v", run.Summary)
	}
}

func TestFactoryExplicitScopeGatesTiers(t *testing.T) {
	h := buildHandle(t, map[string][]float64{
		"SKU-001": constantHistory(40, 100),
		"SKU-002": constantHistory(40, 50),
	})
	tiers := map[string]string{"SKU-001": "A", "SKU-002": "B"}

	factory := NewFactory(testForecastConfig())
	_, err := factory.Run(context.Background(), h, tiers, Request{
		Strategy: "advanced",
		SKUs:     []string{"SKU-001", "SKU-002"},
	}, 10)
	var notAllowed *StrategyNotAllowedError
	if !errors.As(err, &notAllowed) {
		t.Fatalf("explicitly requesting a B item must fail before any work, got %v", err)
	}
	if notAllowed.Tier != "B" {
		t.Errorf("error should carry the offending tier, got %+v", notAllowed)
	}
	if len(factory.ListRuns()) != 0 {
		t.Error("a rejected request must not store a run")
	}

	run, err := factory.Run(context.Background(), h, tiers, Request{
		Strategy: "advanced",
		SKUs:     []string{"SKU-001"},
	}, 10)
	if err != nil {
		t.Fatalf("an A-only scope should run: %v", err)
	}
	if len(run.Items) != 1 {
		t.Errorf("scoped run should cover exactly the requested item, got %d", len(run.Items))
	}

	if _, err := factory.Run(context.Background(), h, tiers, Request{
		Strategy: "simple",
		SKUs:     []string{"SKU-999"},
	}, 10); err == nil {
		t.Error("an unknown item in the scope should fail")
	}
}

func TestFactoryNoEligibleItemsFails(t *testing.T) {
	h := buildHandle(t, map[string][]float64{"SKU-001": constantHistory(40, 50)})
	tiers := map[string]string{"SKU-001": "C"}

	factory := NewFactory(testForecastConfig())
	_, err := factory.Run(context.Background(), h, tiers, Request{Strategy: "advanced"}, 10)
	var notAllowed *StrategyNotAllowedError
	if !errors.As(err, &notAllowed) {
		t.Fatalf("expected StrategyNotAllowedError when nothing is eligible, got %v", err)
	}
}

func TestFactoryFinerFrequencyFails(t *testing.T) {
	h := buildHandle(t, map[string][]float64{"SKU-001": constantHistory(40, 100)})
	h.Frequency = timeseries.FrequencyWeekly

	factory := NewFactory(testForecastConfig())
	_, err := factory.Run(context.Background(), h, nil, Request{
		Strategy:  "simple",
		Frequency: timeseries.FrequencyDaily,
	}, 10)

	var mismatch *FrequencyMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected FrequencyMismatchError, got %v", err)
	}
	if mismatch.Actual != timeseries.FrequencyWeekly {
		t.Errorf("error should name the dataset frequency, got %s", mismatch.Actual)
	}
}

func TestFactoryAggregatesToCoarserFrequency(t *testing.T) {
	// 70 days of constant 10/day resample to 10 full weeks of 70
	h := buildHandle(t, map[string][]float64{"SKU-001": constantHistory(70, 10)})

	factory := NewFactory(testForecastConfig())
	run, err := factory.Run(context.Background(), h, nil, Request{
		Strategy:  "simple",
		Horizon:   4,
		Frequency: timeseries.FrequencyWeekly,
	}, 10)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if run.Frequency != timeseries.FrequencyWeekly {
		t.Errorf("run should carry the aggregated frequency, got %s", run.Frequency)
	}
	item := run.Items["SKU-001"]
	if item == nil {
		t.Fatal("missing item forecast")
	}
	for _, p := range item.Predictions {
		if math.Abs(p.Value-70) > 1e-6 {
			t.Errorf("weekly prediction should be the period sum 70, got %v", p.Value)
		}
	}
}

func TestFactoryUnknownStrategy(t *testing.T) {
	h := buildHandle(t, map[string][]float64{"SKU-001": constantHistory(40, 100)})
	factory := NewFactory(testForecastConfig())
	if _, err := factory.Run(context.Background(), h, nil, Request{Strategy: "psychic"}, 10); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestFactoryShortHistoryBecomesReview(t *testing.T) {
	h := buildHandle(t, map[string][]float64{
		"SKU-001": constantHistory(40, 100),
		"SKU-002": constantHistory(3, 5), // below minimum history
	})

	factory := NewFactory(testForecastConfig())
	run, err := factory.Run(context.Background(), h, nil, Request{Strategy: "simple"}, 10)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	short := run.Items["SKU-002"]
	if short.Status != StatusReview {
		t.Errorf("short history should be review, got %s", short.Status)
	}
	if short.Note == "" {
		t.Error("review items should carry a note")
	}
	if run.Items["SKU-001"].Status != StatusGood {
		t.Error("one weak item must not affect the rest of the batch")
	}

	problems := run.Problems()
	if len(problems) != 1 || problems[0].SKU != "SKU-002" {
		t.Errorf("problem list should carry the review item, got %+v", problems)
	}
}

func TestFactoryMidHistorySpikeGradesReview(t *testing.T) {
	spiked := constantHistory(60, 100)
	spiked[20] = 5000

	h := buildHandle(t, map[string][]float64{"SKU-001": spiked})
	factory := NewFactory(testForecastConfig())

	// The held-out tail is clean, so tail MAPE alone would grade this
	// good. The worst fitted point still sees the spike.
	run, err := factory.Run(context.Background(), h, nil, Request{Strategy: "simple", Horizon: 6}, 10)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	item := run.Items["SKU-001"]
	if item.Status != StatusReview {
		t.Fatalf("spiked history should grade review, got %s (mape %.2f)", item.Status, item.MAPE)
	}
	if item.Note == "" {
		t.Error("the escalation should carry a note")
	}

	clean := buildHandle(t, map[string][]float64{"SKU-001": constantHistory(60, 100)})
	run, err = factory.Run(context.Background(), clean, nil, Request{Strategy: "simple", Horizon: 6}, 10)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := run.Items["SKU-001"].Status; got != StatusGood {
		t.Errorf("the same history without the spike should grade good, got %s", got)
	}
}

func TestFactoryGrading(t *testing.T) {
	factory := NewFactory(testForecastConfig())

	cases := []struct {
		mape float64
		want string
	}{
		{0, StatusGood},
		{19.9, StatusGood},
		{20, StatusFair},
		{49.9, StatusFair},
		{50, StatusReview},
		{300, StatusReview},
	}
	for _, tc := range cases {
		if got := factory.grade(tc.mape); got != tc.want {
			t.Errorf("grade(%v) = %s, want %s", tc.mape, got, tc.want)
		}
	}
}

func TestFactoryRunsCoexist(t *testing.T) {
	h := buildHandle(t, map[string][]float64{"SKU-001": constantHistory(40, 100)})
	factory := NewFactory(testForecastConfig())

	first, err := factory.Run(context.Background(), h, nil, Request{Strategy: "simple"}, 10)
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	second, err := factory.Run(context.Background(), h, nil, Request{Strategy: "balanced"}, 10)
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}

	if first.ID == second.ID {
		t.Error("runs must get distinct ids")
	}
	if len(factory.ListRuns()) != 2 {
		t.Errorf("expected 2 stored runs, got %d", len(factory.ListRuns()))
	}

	if !factory.DeleteRun(first.ID) {
		t.Error("deleting an existing run should succeed")
	}
	if factory.DeleteRun(first.ID) {
		t.Error("deleting twice should fail")
	}
	if _, ok := factory.GetRun(first.ID); ok {
		t.Error("deleted run should be gone")
	}
	if _, ok := factory.GetRun(second.ID); !ok {
		t.Error("other runs must survive a delete")
	}
}

func TestFactoryEstimateDuration(t *testing.T) {
	factory := NewFactory(testForecastConfig())

	simple, err := factory.EstimateDuration("simple", 1000)
	if err != nil {
		t.Fatalf("EstimateDuration failed: %v", err)
	}
	advanced, _ := factory.EstimateDuration("advanced", 1000)
	if simple >= advanced {
		t.Errorf("advanced should cost more: simple=%v advanced=%v", simple, advanced)
	}
	if _, err := factory.EstimateDuration("psychic", 10); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestCompareModels(t *testing.T) {
	items := make(map[string][]float64)
	for _, sku := range []string{"SKU-001", "SKU-002", "SKU-003", "SKU-004", "SKU-005"} {
		history := make([]float64, 60)
		for i := range history {
			history[i] = 30 + float64(i%7)*2
		}
		items[sku] = history
	}
	h := buildHandle(t, items)

	factory := NewFactory(testForecastConfig())
	cmp, err := factory.CompareModels(context.Background(), h, 5)
	if err != nil {
		t.Fatalf("CompareModels failed: %v", err)
	}

	if cmp.SampleSize != 5 {
		t.Errorf("expected sample of 5, got %d", cmp.SampleSize)
	}
	if len(cmp.Models) != len(ListForecasters()) {
		t.Errorf("comparison should cover every registered model, got %d", len(cmp.Models))
	}

	wins := 0
	for _, mc := range cmp.Models {
		wins += mc.Wins
	}
	if wins != 5 {
		t.Errorf("each sampled item has one winner, got %d wins", wins)
	}

	for i := 1; i < len(cmp.Models); i++ {
		if cmp.Models[i].AvgMAPE < cmp.Models[i-1].AvgMAPE {
			t.Error("comparison should be sorted by average MAPE")
		}
	}
}
