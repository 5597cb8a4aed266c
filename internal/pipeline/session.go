package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/stocksight/stocksight/internal/anomaly"
	"github.com/stocksight/stocksight/internal/cluster"
	"github.com/stocksight/stocksight/internal/config"
	"github.com/stocksight/stocksight/internal/dataset"
	"github.com/stocksight/stocksight/internal/features"
	"github.com/stocksight/stocksight/internal/forecast"
	"github.com/stocksight/stocksight/internal/health"
	"github.com/stocksight/stocksight/internal/logging"
	"github.com/stocksight/stocksight/internal/queue"
	"github.com/stocksight/stocksight/internal/schema"
	"github.com/stocksight/stocksight/internal/timeseries"
)

// Session owns one dataset and the engines working on it. Results that
// derive from the data (cluster assignments, feature sets) carry the
// dataset epoch they were computed at; a repair or anomaly fix bumps
// the epoch and the stale results are recomputed on next access
// instead of eagerly.
type Session struct {
	ID  string
	cfg *config.Config
	log *logging.Logger

	notifier *Notifier
	resolver *schema.Resolver
	health   *health.Engine
	cluster  *cluster.Engine
	features *features.Engine
	factory  *forecast.Factory
	pool     *Pool

	mu          sync.RWMutex
	mapping     *schema.ColumnMapping
	handle      *dataset.Handle
	quality     *health.QualityReport
	assignments *cluster.Result
	featureSets map[string]*features.FeatureSet
	anomalies   map[string][]anomaly.Point
}

// NewSession creates a session with its engines wired from config.
// publisher may be nil; progress events are then skipped.
func NewSession(cfg *config.Config, log *logging.Logger, publisher queue.Publisher) *Session {
	id := uuid.New().String()
	return &Session{
		ID:          id,
		cfg:         cfg,
		log:         log,
		notifier:    NewNotifier(id, publisher, log),
		resolver:    schema.NewResolver(cfg.Schema),
		health:      health.NewEngine(cfg.Quality),
		cluster:     cluster.NewEngine(cfg.Cluster),
		features:    features.NewEngine(cfg.Features),
		factory:     forecast.NewFactory(cfg.Forecast),
		pool:        NewPool(cfg.Pipeline.Workers),
		featureSets: make(map[string]*features.FeatureSet),
		anomalies:   make(map[string][]anomaly.Point),
	}
}

// OnProgress registers an in-process observer for the session's stage
// events, alongside whatever the queue receives. Set it before starting
// work; it is called synchronously from the running stage.
func (s *Session) OnProgress(fn func(Event)) {
	s.notifier.OnEvent(fn)
}

// DetectSchema scores the columns of a sample against every role
func (s *Session) DetectSchema(header []string, sample [][]string) []schema.Detection {
	return s.resolver.Detect(header, sample)
}

// ResolveSchema resolves and stores the column mapping for the session
func (s *Session) ResolveSchema(header []string, sample [][]string) (*schema.ColumnMapping, error) {
	mapping, err := s.resolver.Resolve(header, sample)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.mapping = mapping
	s.mu.Unlock()
	return mapping, nil
}

// RemapColumn overrides one role assignment before loading. Remapping
// after a dataset is loaded invalidates it; the data has to be loaded
// again under the corrected mapping.
func (s *Session) RemapColumn(role schema.Role, column string) (*schema.ColumnMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mapping == nil {
		return nil, fmt.Errorf("no column mapping resolved yet")
	}
	s.mapping = s.mapping.Remap(role, column)
	if s.handle != nil {
		s.handle.Invalidate()
		s.handle = nil
		s.clearDerivedLocked()
	}
	return s.mapping, nil
}

// ConfirmMapping freezes the mapping for loading
func (s *Session) ConfirmMapping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mapping == nil {
		return fmt.Errorf("no column mapping resolved yet")
	}
	return s.mapping.Confirm()
}

// Mapping returns the current column mapping
func (s *Session) Mapping() *schema.ColumnMapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mapping
}

// Load builds the dataset handle from a row source under the confirmed
// mapping. Any previously loaded dataset and its derived results are
// dropped.
func (s *Session) Load(ctx context.Context, src dataset.ChunkSource, freq timeseries.Frequency) (*dataset.Handle, error) {
	s.mu.Lock()
	mapping := s.mapping
	s.mu.Unlock()
	if mapping == nil || !mapping.Confirmed {
		return nil, fmt.Errorf("column mapping must be resolved and confirmed before loading")
	}

	opts := dataset.OptionsFromConfig(freq, s.cfg.Dataset, s.cfg.Pipeline)
	h, err := dataset.Build(ctx, src, mapping, opts)
	if err != nil {
		s.notifier.Failed(ctx, StageLoad, err)
		return nil, err
	}

	s.mu.Lock()
	if s.handle != nil {
		s.handle.Invalidate()
	}
	s.handle = h
	s.quality = nil
	s.clearDerivedLocked()
	s.mu.Unlock()

	s.log.Info("Dataset loaded",
		"session_id", s.ID,
		"items", h.Len(),
		"frequency", string(freq),
		"skipped_rows", h.SkippedRows)
	s.notifier.Completed(ctx, StageLoad, fmt.Sprintf("%d items loaded", h.Len()))
	return h, nil
}

// Handle returns the loaded dataset
func (s *Session) Handle() (*dataset.Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.handle == nil {
		return nil, fmt.Errorf("no dataset loaded")
	}
	return s.handle, nil
}

// clearDerivedLocked drops every result derived from the dataset.
// Callers hold s.mu.
func (s *Session) clearDerivedLocked() {
	s.assignments = nil
	s.featureSets = make(map[string]*features.FeatureSet)
	s.anomalies = make(map[string][]anomaly.Point)
}

// AnalyzeQuality profiles the dataset and stores the report
func (s *Session) AnalyzeQuality(ctx context.Context) (*health.QualityReport, error) {
	h, err := s.Handle()
	if err != nil {
		return nil, err
	}

	report, err := s.health.Analyze(ctx, h, s.cfg.Pipeline.ChunkSize)
	if err != nil {
		s.notifier.Failed(ctx, StageQuality, err)
		return nil, err
	}

	s.mu.Lock()
	s.quality = report
	s.mu.Unlock()

	s.log.Info("Quality analysis complete",
		"session_id", s.ID,
		"score", report.Score,
		"items", report.Items)
	s.notifier.Completed(ctx, StageQuality, fmt.Sprintf("score %.1f", report.Score))
	return report, nil
}

// Quality returns the last quality report
func (s *Session) Quality() *health.QualityReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quality
}

// Repair applies a repair policy to the dataset. The handle epoch
// moves forward for every changed item, which lazily invalidates
// cluster assignments and feature sets.
func (s *Session) Repair(ctx context.Context, policy health.Policy) (*health.QualityReport, error) {
	h, err := s.Handle()
	if err != nil {
		return nil, err
	}

	report, err := s.health.Repair(ctx, h, s.cfg.Pipeline.ChunkSize, policy)
	if err != nil {
		s.notifier.Failed(ctx, StageRepair, err)
		return nil, err
	}

	s.mu.Lock()
	s.quality = report
	s.mu.Unlock()

	s.log.Info("Repair complete",
		"session_id", s.ID,
		"score", report.Score)
	s.notifier.Completed(ctx, StageRepair, fmt.Sprintf("score %.1f", report.Score))
	return report, nil
}

// Classify returns the cluster assignments, recomputing them only when
// the dataset epoch moved since the cached result.
func (s *Session) Classify(ctx context.Context) (*cluster.Result, error) {
	h, err := s.Handle()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	cached := s.assignments
	s.mu.RUnlock()
	if cached != nil && cached.Epoch == h.Epoch() {
		return cached, nil
	}

	result, err := s.cluster.Classify(ctx, h, s.cfg.Pipeline.ChunkSize)
	if err != nil {
		s.notifier.Failed(ctx, StageCluster, err)
		return nil, err
	}

	s.mu.Lock()
	s.assignments = result
	s.mu.Unlock()

	s.notifier.Completed(ctx, StageCluster, fmt.Sprintf("%d items classified", len(result.Assignments)))
	return result, nil
}

// DetectAnomalies runs the configured detectors over every item with
// the chunk worker pool and stores the findings per item.
func (s *Session) DetectAnomalies(ctx context.Context, methods []string) (map[string][]anomaly.Point, error) {
	h, err := s.Handle()
	if err != nil {
		return nil, err
	}
	if len(methods) == 0 {
		methods = s.cfg.Anomaly.Detectors
	}
	detectorCfg := anomaly.ConfigFrom(s.cfg.Anomaly)

	chunkSize := s.cfg.Pipeline.ChunkSize
	totalChunks := (h.Len() + chunkSize - 1) / chunkSize

	found := make(map[string][]anomaly.Point)
	var foundMu sync.Mutex

	err = s.pool.Run(ctx, h.Chunks(chunkSize), func(ctx context.Context, chunk *dataset.Chunk) error {
		for _, series := range chunk.Series {
			points, err := anomaly.Detect(series, methods, detectorCfg)
			if err != nil {
				return err
			}
			if len(points) == 0 {
				continue
			}
			foundMu.Lock()
			found[series.SKU] = points
			foundMu.Unlock()
		}
		return nil
	}, func(done int) {
		s.notifier.Progress(ctx, StageAnomaly, done, totalChunks)
	})
	if err != nil {
		s.notifier.Failed(ctx, StageAnomaly, err)
		return nil, err
	}

	s.mu.Lock()
	s.anomalies = found
	s.mu.Unlock()

	s.notifier.Completed(ctx, StageAnomaly, fmt.Sprintf("%d items flagged", len(found)))
	return found, nil
}

// Anomalies returns the stored findings for one item
func (s *Session) Anomalies(sku string) []anomaly.Point {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.anomalies[sku]
}

// AnomalyItems returns the items with stored findings, sorted
func (s *Session) AnomalyItems() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.anomalies))
	for sku := range s.anomalies {
		out = append(out, sku)
	}
	sort.Strings(out)
	return out
}

// ReviewQueue returns every stored pending anomaly across items,
// highest severity first, so a reviewer works the worst cases down.
func (s *Session) ReviewQueue() []anomaly.Point {
	s.mu.RLock()
	var queue []anomaly.Point
	for _, points := range s.anomalies {
		for _, p := range points {
			if p.Disposition == anomaly.DispositionPending {
				queue = append(queue, p)
			}
		}
	}
	s.mu.RUnlock()

	sort.Slice(queue, func(i, j int) bool {
		if queue[i].Score != queue[j].Score {
			return queue[i].Score > queue[j].Score
		}
		if queue[i].SKU != queue[j].SKU {
			return queue[i].SKU < queue[j].SKU
		}
		return queue[i].Date.Before(queue[j].Date)
	})
	return queue
}

// Resolution aggregates what applying dispositions did
type Resolution struct {
	Corrected int `json:"corrected"`
	Removed   int `json:"removed"`
	Flagged   int `json:"flagged"`
	Changed   int `json:"changed_items"`
}

// ApplyDispositions resolves reviewed anomaly points against their
// series. Changed series re-enter the dataset and bump its epoch;
// flagged points land on the data health pending list.
func (s *Session) ApplyDispositions(ctx context.Context, points []anomaly.Point) (*Resolution, error) {
	h, err := s.Handle()
	if err != nil {
		return nil, err
	}

	bySKU := make(map[string][]anomaly.Point)
	for _, p := range points {
		bySKU[p.SKU] = append(bySKU[p.SKU], p)
	}

	res := &Resolution{}
	for sku, pts := range bySKU {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		series, err := h.Series(sku)
		if err != nil {
			return nil, err
		}
		outcome, err := anomaly.Resolve(series, pts)
		if err != nil {
			return nil, err
		}
		if outcome.Changed {
			if err := h.ReplaceSeries(series); err != nil {
				return nil, err
			}
			res.Changed++
		}
		res.Corrected += outcome.Corrected
		res.Removed += outcome.Removed
		for _, p := range outcome.Flagged {
			s.health.FlagPending(p.SKU, p.Date, fmt.Sprintf("anomaly %s flagged for review", p.Type))
			res.Flagged++
		}

		s.mu.Lock()
		s.anomalies[sku] = outcome.Points
		s.mu.Unlock()
	}

	return res, nil
}

// Decider maps a detected point to its disposition during the
// automatic anomaly loop
type Decider func(p anomaly.Point) anomaly.Disposition

// RunAnomalyLoop drives detect, decide and resolve rounds until the
// detectors come back clean, no decision changes the data, or the
// bounded pass count runs out. Correcting one anomaly can expose the
// next smaller one; the bound keeps pathological series from looping
// forever.
func (s *Session) RunAnomalyLoop(ctx context.Context, methods []string, decide Decider, maxPasses int) (int, error) {
	if maxPasses <= 0 {
		maxPasses = s.cfg.Pipeline.MaxAnomalyPasses
	}

	passes := 0
	for passes < maxPasses {
		found, err := s.DetectAnomalies(ctx, methods)
		if err != nil {
			return passes, err
		}
		passes++
		if len(found) == 0 {
			return passes, nil
		}

		var decided []anomaly.Point
		mutating := false
		for _, points := range found {
			for _, p := range points {
				p.Disposition = decide(p)
				if p.Disposition == anomaly.DispositionAutoCorrect || p.Disposition == anomaly.DispositionRemove {
					mutating = true
				}
				decided = append(decided, p)
			}
		}
		if !mutating {
			// Nothing will change the data, so re-detection would
			// find the same points again
			return passes, nil
		}

		if _, err := s.ApplyDispositions(ctx, decided); err != nil {
			return passes, err
		}
	}
	return passes, nil
}

// BuildFeatures computes feature sets for the given items (all items
// when skus is nil), reusing cached sets that are still at the current
// dataset epoch.
func (s *Session) BuildFeatures(ctx context.Context, skus []string, advanced bool) (map[string]*features.FeatureSet, error) {
	h, err := s.Handle()
	if err != nil {
		return nil, err
	}
	assignments, err := s.Classify(ctx)
	if err != nil {
		return nil, err
	}
	if skus == nil {
		skus = h.Items()
	}

	epoch := h.Epoch()
	out := make(map[string]*features.FeatureSet, len(skus))
	built := 0
	for i, sku := range skus {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.mu.RLock()
		cached := s.featureSets[sku]
		s.mu.RUnlock()
		if cached != nil && !cached.Stale(epoch) && cached.Advanced == advanced {
			out[sku] = cached
			continue
		}

		fs, err := s.features.BuildForItem(h, sku, assignments.Tier(sku), advanced)
		if err != nil {
			s.notifier.Failed(ctx, StageFeatures, err)
			return nil, err
		}
		s.mu.Lock()
		s.featureSets[sku] = fs
		s.mu.Unlock()
		out[sku] = fs
		built++

		if built%s.cfg.Pipeline.ChunkSize == 0 {
			s.notifier.Progress(ctx, StageFeatures, i+1, len(skus))
		}
	}

	s.notifier.Completed(ctx, StageFeatures, fmt.Sprintf("%d feature sets built, %d reused", built, len(skus)-built))
	return out, nil
}

// Forecast runs a strategy over the dataset using the current cluster
// assignments for tier gating.
func (s *Session) Forecast(ctx context.Context, req forecast.Request) (*forecast.Run, error) {
	h, err := s.Handle()
	if err != nil {
		return nil, err
	}
	assignments, err := s.Classify(ctx)
	if err != nil {
		return nil, err
	}

	tiers := make(map[string]string, len(assignments.Assignments))
	for sku, a := range assignments.Assignments {
		tiers[sku] = a.VolumeTier
	}

	run, err := s.factory.Run(ctx, h, tiers, req, s.cfg.Pipeline.ChunkSize)
	if err != nil {
		s.notifier.Failed(ctx, StageForecast, err)
		return nil, err
	}

	s.log.Info("Forecast run complete",
		"session_id", s.ID,
		"run_id", run.ID,
		"strategy", run.Strategy,
		"items", run.Summary.Items,
		"review", run.Summary.Review)
	s.notifier.Completed(ctx, StageForecast, fmt.Sprintf("run %s: %d items", run.ID, run.Summary.Items))
	return run, nil
}

// CompareModels benchmarks every registered model on a dataset sample
func (s *Session) CompareModels(ctx context.Context, sample int) (*forecast.Comparison, error) {
	h, err := s.Handle()
	if err != nil {
		return nil, err
	}
	return s.factory.CompareModels(ctx, h, sample)
}

// Factory exposes the forecast factory for run retrieval
func (s *Session) Factory() *forecast.Factory {
	return s.factory
}

// PendingIssues returns the data health pending-review list
func (s *Session) PendingIssues() []health.PendingIssue {
	return s.health.PendingIssues()
}
