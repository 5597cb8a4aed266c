package forecast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stocksight/stocksight/internal/config"
	"github.com/stocksight/stocksight/internal/dataset"
	"github.com/stocksight/stocksight/internal/timeseries"
)

// Item forecast status values
const (
	StatusGood   = "good"
	StatusFair   = "fair"
	StatusReview = "review"
)

// Request describes one forecast run over a dataset
type Request struct {
	Strategy  string                // Strategy key from configuration
	Horizon   int                   // Periods ahead; 0 uses the configured default
	Frequency timeseries.Frequency  // Must match the dataset frequency when set
	SKUs      []string              // Optional explicit item scope; empty means all eligible items
}

// ItemForecast is one item's outcome inside a run
type ItemForecast struct {
	SKU         string  `json:"sku"`
	Tier        string  `json:"tier"`
	Model       string  `json:"model"`
	Status      string  `json:"status"`
	MAPE        float64 `json:"mape"`
	MAE         float64 `json:"mae"`
	RMSE        float64 `json:"rmse"`
	InSample    bool    `json:"in_sample"` // Metrics from fit, not a held-out tail
	Predictions []Point `json:"predictions,omitempty"`
	Note        string  `json:"note,omitempty"`
}

// Summary aggregates a run for display
type Summary struct {
	Items   int            `json:"items"`
	Good    int            `json:"good"`
	Fair    int            `json:"fair"`
	Review  int            `json:"review"`
	AvgMAPE float64        `json:"avg_mape"`
	Models  map[string]int `json:"models"` // Winning model -> item count
}

// Run is one completed forecast run. Runs are kept side by side so
// strategies can be compared after the fact.
type Run struct {
	ID           string                   `json:"id"`
	Strategy     string                   `json:"strategy"`
	StrategyName string                   `json:"strategy_name"`
	Horizon      int                      `json:"horizon"`
	Frequency    timeseries.Frequency     `json:"frequency"`
	CreatedAt    time.Time                `json:"created_at"`
	Items        map[string]*ItemForecast `json:"items"`
	Summary      Summary                  `json:"summary"`
}

// Problems returns the review-status items, sorted by MAPE descending
// so the worst forecasts surface first.
func (r *Run) Problems() []*ItemForecast {
	var out []*ItemForecast
	for _, item := range r.Items {
		if item.Status == StatusReview {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MAPE != out[j].MAPE {
			return out[i].MAPE > out[j].MAPE
		}
		return out[i].SKU < out[j].SKU
	})
	return out
}

// Factory runs forecast strategies over datasets and keeps the
// completed runs.
type Factory struct {
	cfg config.ForecastConfig

	mu   sync.RWMutex
	runs map[string]*Run
}

// NewFactory creates a forecast factory
func NewFactory(cfg config.ForecastConfig) *Factory {
	return &Factory{
		cfg:  cfg,
		runs: make(map[string]*Run),
	}
}

// EstimateDuration predicts the wall-clock cost of running a strategy
// over the given item count, from the configured per-item estimate.
func (f *Factory) EstimateDuration(strategy string, items int) (time.Duration, error) {
	strat, ok := f.cfg.Strategy(strategy)
	if !ok {
		return 0, fmt.Errorf("unknown strategy: %s", strategy)
	}
	return strat.PerItemEstimate * time.Duration(items), nil
}

// Run forecasts the dataset with the requested strategy. Without an
// explicit item scope the run covers the items whose volume tier the
// strategy permits, so a tier-A-only strategy runs over the A items of
// a mixed catalog. Explicitly listing an item outside the permitted
// tiers fails the whole request with StrategyNotAllowedError rather
// than silently downgrading; permissions are checked before any work
// starts. A coarser requested frequency resamples each series by
// period sums first; a finer one cannot be derived and fails. Item fit
// failures inside the run become review-status outcomes and the run
// continues.
func (f *Factory) Run(ctx context.Context, h *dataset.Handle, tiers map[string]string, req Request, chunkSize int) (*Run, error) {
	strat, ok := f.cfg.Strategy(req.Strategy)
	if !ok {
		return nil, fmt.Errorf("unknown strategy: %s", req.Strategy)
	}
	runFreq := h.Frequency
	aggregate := false
	if req.Frequency != "" && req.Frequency != h.Frequency {
		if !coarser(req.Frequency, h.Frequency) {
			return nil, &FrequencyMismatchError{Requested: req.Frequency, Actual: h.Frequency}
		}
		runFreq = req.Frequency
		aggregate = true
	}
	horizon := req.Horizon
	if horizon <= 0 {
		horizon = f.cfg.DefaultHorizon
	}
	if chunkSize <= 0 {
		chunkSize = 200
	}

	scope := make(map[string]bool)
	if len(req.SKUs) > 0 {
		catalog := make(map[string]bool, h.Len())
		for _, sku := range h.Items() {
			catalog[sku] = true
		}
		for _, sku := range req.SKUs {
			if !catalog[sku] {
				return nil, fmt.Errorf("unknown item: %s", sku)
			}
			if tier := tierFor(tiers, sku); !strat.TierAllowed(tier) {
				return nil, &StrategyNotAllowedError{Strategy: req.Strategy, Tier: tier}
			}
			scope[sku] = true
		}
	} else {
		for _, sku := range h.Items() {
			if strat.TierAllowed(tierFor(tiers, sku)) {
				scope[sku] = true
			}
		}
		if len(scope) == 0 {
			tier := "C"
			if items := h.Items(); len(items) > 0 {
				tier = tierFor(tiers, items[0])
			}
			return nil, &StrategyNotAllowedError{Strategy: req.Strategy, Tier: tier}
		}
	}

	run := &Run{
		ID:           uuid.New().String(),
		Strategy:     req.Strategy,
		StrategyName: strat.Name,
		Horizon:      horizon,
		Frequency:    runFreq,
		CreatedAt:    time.Now().UTC(),
		Items:        make(map[string]*ItemForecast, len(scope)),
	}

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
			if !scope[series.SKU] {
				continue
			}
			if aggregate {
				series = series.Aggregate(runFreq)
			}
			run.Items[series.SKU] = f.forecastItem(series, tierFor(tiers, series.SKU), strat, horizon)
		}
	}

	run.Summary = summarize(run.Items)

	f.mu.Lock()
	f.runs[run.ID] = run
	f.mu.Unlock()
	return run, nil
}

// ForecastItem runs one strategy on a single series, with the same tier
// gate as a full run.
func (f *Factory) ForecastItem(series *timeseries.Series, tier, strategy string, horizon int) (*ItemForecast, error) {
	strat, ok := f.cfg.Strategy(strategy)
	if !ok {
		return nil, fmt.Errorf("unknown strategy: %s", strategy)
	}
	if !strat.TierAllowed(tier) {
		return nil, &StrategyNotAllowedError{Strategy: strategy, Tier: tier}
	}
	if horizon <= 0 {
		horizon = f.cfg.DefaultHorizon
	}
	return f.forecastItem(series, tier, strat, horizon), nil
}

// coarser reports whether a is a coarser sampling than b
func coarser(a, b timeseries.Frequency) bool {
	rank := map[timeseries.Frequency]int{
		timeseries.FrequencyDaily:   0,
		timeseries.FrequencyWeekly:  1,
		timeseries.FrequencyMonthly: 2,
	}
	return rank[a] > rank[b]
}

// GetRun returns a stored run by id
func (f *Factory) GetRun(id string) (*Run, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	run, ok := f.runs[id]
	return run, ok
}

// ListRuns returns all stored runs, newest first
func (f *Factory) ListRuns() []*Run {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Run, 0, len(f.runs))
	for _, run := range f.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DeleteRun removes a stored run
func (f *Factory) DeleteRun(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.runs[id]; !ok {
		return false
	}
	delete(f.runs, id)
	return true
}

// forecastItem selects the strategy's best model by validation MAPE on
// a held-out tail, refits it on the full history and grades the
// outcome. Short histories fall back to in-sample metrics.
func (f *Factory) forecastItem(series *timeseries.Series, tier string, strat config.StrategyConfig, horizon int) *ItemForecast {
	item := &ItemForecast{SKU: series.SKU, Tier: tier}

	n := series.Len()
	if n < f.cfg.MinDataPoints {
		item.Status = StatusReview
		item.Note = fmt.Sprintf("insufficient history: %d points, need %d", n, f.cfg.MinDataPoints)
		return item
	}

	holdout := int(float64(n) * f.cfg.HoldoutRatio)
	validated := holdout >= f.cfg.MinHoldout && n-holdout >= f.cfg.MinDataPoints

	var (
		bestModel  string
		bestMAPE   = 0.0
		bestMAE    = 0.0
		bestRMSE   = 0.0
		found      bool
		lastErr    error
	)

	if validated {
		train := prefixSeries(series, n-holdout)
		actual := make([]float64, holdout)
		for i := 0; i < holdout; i++ {
			actual[i] = series.Records[n-holdout+i].Quantity
		}

		for _, model := range strat.Models {
			forecaster, err := GetForecaster(model)
			if err != nil {
				lastErr = err
				continue
			}
			res, err := forecaster.Forecast(train, f.modelConfig(holdout))
			if err != nil {
				lastErr = &FitFailure{SKU: series.SKU, Model: model, Err: err}
				continue
			}
			predicted := make([]float64, holdout)
			for i, p := range res.Predictions {
				predicted[i] = p.Value
			}
			mape := CalculateMAPE(actual, predicted)
			if !found || mape < bestMAPE {
				found = true
				bestModel = model
				bestMAPE = mape
				bestMAE = CalculateMAE(actual, predicted)
				bestRMSE = CalculateRMSE(actual, predicted)
			}
		}
	} else {
		item.InSample = true
		for _, model := range strat.Models {
			forecaster, err := GetForecaster(model)
			if err != nil {
				lastErr = err
				continue
			}
			res, err := forecaster.Forecast(series, f.modelConfig(horizon))
			if err != nil {
				lastErr = &FitFailure{SKU: series.SKU, Model: model, Err: err}
				continue
			}
			if !found || res.ModelInfo.MAPE < bestMAPE {
				found = true
				bestModel = model
				bestMAPE = res.ModelInfo.MAPE
				bestMAE = res.ModelInfo.MAE
				bestRMSE = res.ModelInfo.RMSE
			}
		}
	}

	if !found {
		item.Status = StatusReview
		if lastErr != nil {
			item.Note = lastErr.Error()
		} else {
			item.Note = "no model produced a forecast"
		}
		return item
	}

	// Refit the winner on the full history for the final forecast
	forecaster, err := GetForecaster(bestModel)
	var res *Result
	if err == nil {
		res, err = forecaster.Forecast(series, f.modelConfig(horizon))
		if err == nil {
			item.Predictions = res.Predictions
		}
	}
	if err != nil {
		item.Status = StatusReview
		item.Note = (&FitFailure{SKU: series.SKU, Model: bestModel, Err: err}).Error()
		return item
	}

	item.Model = bestModel
	item.MAPE = bestMAPE
	item.MAE = bestMAE
	item.RMSE = bestRMSE
	item.Status = f.grade(bestMAPE)

	// The held-out tail never sees a mid-history shock, so the worst
	// single point of the full-history fit also gates the status.
	if item.Status != StatusReview {
		if worst := maxFitAPE(series, res.Fitted); worst >= f.cfg.ReviewMAPE {
			item.Status = StatusReview
			item.Note = fmt.Sprintf("fit deviates %.0f%% at worst point", worst)
		}
	}
	return item
}

// maxFitAPE returns the largest single-point absolute percentage error
// of a full-history fit. Zero actuals are skipped, matching the MAPE
// convention.
func maxFitAPE(series *timeseries.Series, fitted []float64) float64 {
	var worst float64
	for i, r := range series.Records {
		if i >= len(fitted) || r.Quantity == 0 {
			continue
		}
		ape := math.Abs(r.Quantity-fitted[i]) / math.Abs(r.Quantity) * 100
		if ape > worst {
			worst = ape
		}
	}
	return worst
}

// grade maps a MAPE to the forecast status
func (f *Factory) grade(mape float64) string {
	switch {
	case mape < f.cfg.GoodMAPE:
		return StatusGood
	case mape < f.cfg.ReviewMAPE:
		return StatusFair
	default:
		return StatusReview
	}
}

func (f *Factory) modelConfig(horizon int) ModelConfig {
	cfg := DefaultModelConfig()
	cfg.Horizon = horizon
	cfg.Confidence = f.cfg.Confidence
	cfg.MinDataPoints = f.cfg.MinDataPoints
	return cfg
}

func tierFor(tiers map[string]string, sku string) string {
	if tier, ok := tiers[sku]; ok {
		return tier
	}
	return "C"
}

// prefixSeries is a view of the first n records; forecasters do not
// mutate their input.
func prefixSeries(s *timeseries.Series, n int) *timeseries.Series {
	return &timeseries.Series{
		SKU:       s.SKU,
		Category:  s.Category,
		Frequency: s.Frequency,
		Records:   s.Records[:n],
	}
}

func summarize(items map[string]*ItemForecast) Summary {
	sum := Summary{Items: len(items), Models: make(map[string]int)}
	var mapeTotal float64
	graded := 0
	for _, item := range items {
		switch item.Status {
		case StatusGood:
			sum.Good++
		case StatusFair:
			sum.Fair++
		default:
			sum.Review++
		}
		if item.Model != "" {
			sum.Models[item.Model]++
			mapeTotal += item.MAPE
			graded++
		}
	}
	if graded > 0 {
		sum.AvgMAPE = mapeTotal / float64(graded)
	}
	return sum
}

// ModelComparison is one algorithm's aggregate performance over the
// comparison sample
type ModelComparison struct {
	Model    string  `json:"model"`
	AvgMAPE  float64 `json:"avg_mape"`
	AvgMAE   float64 `json:"avg_mae"`
	Wins     int     `json:"wins"`     // Items where this model had the lowest MAPE
	Failures int     `json:"failures"` // Items the model could not fit
}

// Comparison reports how every registered model performs on a sample
// of the dataset, without committing a run.
type Comparison struct {
	SampleSize int               `json:"sample_size"`
	Models     []ModelComparison `json:"models"`
}

// CompareModels fits every registered forecaster on a stratified item
// sample and reports average held-out error and win counts per model.
func (f *Factory) CompareModels(ctx context.Context, h *dataset.Handle, sample int) (*Comparison, error) {
	if sample <= 0 {
		sample = f.cfg.ComparisonSample
	}
	skus := h.SampleItems(sample, true)
	models := ListForecasters()

	type agg struct {
		mapeSum, maeSum float64
		fitted          int
		wins            int
		failures        int
	}
	stats := make(map[string]*agg, len(models))
	for _, m := range models {
		stats[m] = &agg{}
	}

	for _, sku := range skus {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		series, err := h.Series(sku)
		if err != nil {
			return nil, err
		}
		n := series.Len()
		holdout := int(float64(n) * f.cfg.HoldoutRatio)
		if holdout < f.cfg.MinHoldout || n-holdout < f.cfg.MinDataPoints {
			continue
		}
		train := prefixSeries(series, n-holdout)
		actual := make([]float64, holdout)
		for i := 0; i < holdout; i++ {
			actual[i] = series.Records[n-holdout+i].Quantity
		}

		winner := ""
		winnerMAPE := 0.0
		for _, model := range models {
			forecaster, err := GetForecaster(model)
			if err != nil {
				continue
			}
			res, err := forecaster.Forecast(train, f.modelConfig(holdout))
			if err != nil {
				stats[model].failures++
				continue
			}
			predicted := make([]float64, holdout)
			for i, p := range res.Predictions {
				predicted[i] = p.Value
			}
			mape := CalculateMAPE(actual, predicted)
			a := stats[model]
			a.mapeSum += mape
			a.maeSum += CalculateMAE(actual, predicted)
			a.fitted++
			if winner == "" || mape < winnerMAPE {
				winner = model
				winnerMAPE = mape
			}
		}
		if winner != "" {
			stats[winner].wins++
		}
	}

	cmp := &Comparison{SampleSize: len(skus)}
	for _, model := range models {
		a := stats[model]
		mc := ModelComparison{Model: model, Wins: a.wins, Failures: a.failures}
		if a.fitted > 0 {
			mc.AvgMAPE = a.mapeSum / float64(a.fitted)
			mc.AvgMAE = a.maeSum / float64(a.fitted)
		}
		cmp.Models = append(cmp.Models, mc)
	}
	sort.Slice(cmp.Models, func(i, j int) bool {
		if cmp.Models[i].AvgMAPE != cmp.Models[j].AvgMAPE {
			return cmp.Models[i].AvgMAPE < cmp.Models[j].AvgMAPE
		}
		return cmp.Models[i].Model < cmp.Models[j].Model
	})
	return cmp, nil
}

// IsFitFailure reports whether err wraps a per-item fit failure
func IsFitFailure(err error) bool {
	var ff *FitFailure
	return errors.As(err, &ff)
}
