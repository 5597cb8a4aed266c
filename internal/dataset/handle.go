package dataset

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/stocksight/stocksight/internal/config"
	"github.com/stocksight/stocksight/internal/schema"
	"github.com/stocksight/stocksight/internal/timeseries"
)

// Handle is the logical reference to one loaded dataset, partitioned by
// item id. Series stay resident for small catalogs and spill to a
// compressed disk cache for large ones; either way access goes through
// chunked iteration so the full dataset is never required in memory.
type Handle struct {
	ID        string
	Frequency timeseries.Frequency

	mu       sync.RWMutex
	items    []string // sorted for deterministic chunking
	resident map[string]*timeseries.Series
	volumes  map[string]float64
	spill    *SpillCache
	epoch    int64
	valid    bool

	SkippedRows int // rows dropped during build (bad date, missing item id or quantity)
}

// BuildOptions controls dataset construction
type BuildOptions struct {
	Frequency        timeseries.Frequency
	MaxItemsInMemory int
	SpillDir         string
	SpillEnabled     bool
}

// OptionsFromConfig derives build options from configuration
func OptionsFromConfig(freq timeseries.Frequency, dcfg config.DatasetConfig, pcfg config.PipelineConfig) BuildOptions {
	return BuildOptions{
		Frequency:        freq,
		MaxItemsInMemory: pcfg.MaxItemsInMemory,
		SpillDir:         dcfg.DataDir + "/spill",
		SpillEnabled:     dcfg.SpillEnabled,
	}
}

// Build consumes a chunked row source and partitions it into per-item
// series using the confirmed column mapping. The mapping must have all
// required roles resolved.
func Build(ctx context.Context, src ChunkSource, mapping *schema.ColumnMapping, opts BuildOptions) (*Handle, error) {
	if !mapping.Complete() {
		return nil, fmt.Errorf("column mapping incomplete: missing roles %v", mapping.MissingRequired())
	}
	if !opts.Frequency.Valid() {
		return nil, fmt.Errorf("invalid frequency: %s", opts.Frequency)
	}

	cols := columnIndexes(src.Header(), mapping)
	if cols.date < 0 || cols.item < 0 || cols.quantity < 0 {
		return nil, fmt.Errorf("mapped columns not present in header")
	}

	h := &Handle{
		ID:        uuid.New().String(),
		Frequency: opts.Frequency,
		resident:  make(map[string]*timeseries.Series),
		volumes:   make(map[string]float64),
		valid:     true,
	}

	for {
		rows, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset chunk: %w", err)
		}
		for _, row := range rows {
			h.ingest(row, cols, opts.Frequency)
		}
	}

	h.items = make([]string, 0, len(h.resident))
	for sku, series := range h.resident {
		series.Sort()
		h.items = append(h.items, sku)
	}
	sort.Strings(h.items)

	if opts.SpillEnabled && opts.MaxItemsInMemory > 0 && len(h.items) > opts.MaxItemsInMemory {
		cache, err := NewSpillCache(opts.SpillDir)
		if err != nil {
			return nil, err
		}
		for _, series := range h.resident {
			if err := cache.Store(series); err != nil {
				return nil, err
			}
		}
		h.spill = cache
		h.resident = nil
	}

	return h, nil
}

type columnSet struct {
	date, item, quantity, category, price, promo int
}

func columnIndexes(header []string, mapping *schema.ColumnMapping) columnSet {
	cols := columnSet{date: -1, item: -1, quantity: -1, category: -1, price: -1, promo: -1}
	index := func(role schema.Role) int {
		name, ok := mapping.Column(role)
		if !ok {
			return -1
		}
		for i, col := range header {
			if col == name {
				return i
			}
		}
		return -1
	}
	cols.date = index(schema.RoleDate)
	cols.item = index(schema.RoleItemID)
	cols.quantity = index(schema.RoleQuantity)
	cols.category = index(schema.RoleCategory)
	cols.price = index(schema.RolePrice)
	cols.promo = index(schema.RolePromo)
	return cols
}

func (h *Handle) ingest(row []string, cols columnSet, freq timeseries.Frequency) {
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	sku := cell(cols.item)
	date, dateOK := schema.ParseDate(cell(cols.date))
	quantity, qtyErr := strconv.ParseFloat(cell(cols.quantity), 64)
	if sku == "" || !dateOK || qtyErr != nil {
		h.SkippedRows++
		return
	}

	rec := timeseries.Record{Date: date, Quantity: quantity}
	if v := cell(cols.price); v != "" {
		if price, err := strconv.ParseFloat(v, 64); err == nil {
			rec.Price = price
			rec.HasPrice = true
		}
	}
	if v := cell(cols.promo); v != "" {
		rec.Promo = isTruthy(v)
		rec.HasPromo = true
	}

	series, ok := h.resident[sku]
	if !ok {
		series = &timeseries.Series{SKU: sku, Frequency: freq}
		h.resident[sku] = series
	}
	if series.Category == "" {
		series.Category = cell(cols.category)
	}
	series.Records = append(series.Records, rec)
	h.volumes[sku] += quantity
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// Len returns the item count
func (h *Handle) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.items)
}

// Items returns the sorted item ids
func (h *Handle) Items() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.items))
	copy(out, h.items)
	return out
}

// Epoch returns the mutation counter. Derived artifacts (cluster
// assignments, feature sets) record the epoch they were computed at and
// recompute lazily when it moves.
func (h *Handle) Epoch() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.epoch
}

// Valid reports whether the handle still owns live data
func (h *Handle) Valid() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.valid
}

// Invalidate releases the handle when new data is loaded over it
func (h *Handle) Invalidate() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.valid = false
	h.items = nil
	h.resident = nil
	h.volumes = nil
	if h.spill != nil {
		_ = h.spill.Clear()
		h.spill = nil
	}
}

// Series returns a snapshot of one item's series. Callers own the copy;
// mutations are published back through ReplaceSeries.
func (h *Handle) Series(sku string) (*timeseries.Series, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.valid {
		return nil, fmt.Errorf("dataset handle invalidated")
	}
	if h.spill != nil {
		return h.spill.Load(sku)
	}
	series, ok := h.resident[sku]
	if !ok {
		return nil, fmt.Errorf("unknown item: %s", sku)
	}
	return series.Clone(), nil
}

// ReplaceSeries writes a repaired or corrected series back into the
// dataset and advances the epoch.
func (h *Handle) ReplaceSeries(series *timeseries.Series) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.valid {
		return fmt.Errorf("dataset handle invalidated")
	}

	if _, ok := h.volumes[series.SKU]; !ok {
		return fmt.Errorf("unknown item: %s", series.SKU)
	}

	stored := series.Clone()
	stored.Sort()

	if h.spill != nil {
		if err := h.spill.Store(stored); err != nil {
			return err
		}
	} else {
		h.resident[stored.SKU] = stored
	}

	total := 0.0
	for _, r := range stored.Records {
		total += r.Quantity
	}
	h.volumes[stored.SKU] = total
	h.epoch++
	return nil
}

// Volume returns the total quantity for one item
func (h *Handle) Volume(sku string) float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.volumes[sku]
}

// SampleItems returns up to n item ids. Stratified sampling splits items
// into volume terciles and draws evenly from each, so comparison runs see
// high, mid and low volume behavior.
func (h *Handle) SampleItems(n int, stratified bool) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if n <= 0 || len(h.items) == 0 {
		return nil
	}
	if n >= len(h.items) {
		out := make([]string, len(h.items))
		copy(out, h.items)
		return out
	}

	if !stratified {
		step := float64(len(h.items)) / float64(n)
		out := make([]string, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, h.items[int(float64(i)*step)])
		}
		return out
	}

	byVolume := make([]string, len(h.items))
	copy(byVolume, h.items)
	sort.Slice(byVolume, func(i, j int) bool {
		if h.volumes[byVolume[i]] != h.volumes[byVolume[j]] {
			return h.volumes[byVolume[i]] > h.volumes[byVolume[j]]
		}
		return byVolume[i] < byVolume[j]
	})

	third := len(byVolume) / 3
	bands := [][]string{byVolume[:third], byVolume[third : 2*third], byVolume[2*third:]}
	perBand := n / 3
	out := make([]string, 0, n)
	for _, band := range bands {
		take := perBand
		if len(out)+take > n {
			take = n - len(out)
		}
		if take > len(band) {
			take = len(band)
		}
		if take == 0 && len(out) < n && len(band) > 0 {
			take = 1
		}
		step := float64(len(band)) / float64(take+1)
		for i := 0; i < take; i++ {
			out = append(out, band[int(float64(i+1)*step)])
		}
	}
	// top up from the largest band if rounding left us short
	for i := 0; len(out) < n && i < len(byVolume); i++ {
		found := false
		for _, s := range out {
			if s == byVolume[i] {
				found = true
				break
			}
		}
		if !found {
			out = append(out, byVolume[i])
		}
	}
	return out
}

// Chunk is one bounded batch of item series
type Chunk struct {
	Index  int
	Series []*timeseries.Series
}

// ChunkIterator yields bounded chunks of item series in item-id order.
// It is restartable: Checkpoint returns the position to resume from.
type ChunkIterator struct {
	h      *Handle
	size   int
	offset int
	index  int
}

// Chunks starts chunked iteration from the beginning
func (h *Handle) Chunks(size int) *ChunkIterator {
	return h.ChunksFrom(size, 0)
}

// ChunksFrom resumes chunked iteration from a checkpoint offset
func (h *Handle) ChunksFrom(size, checkpoint int) *ChunkIterator {
	if size < 1 {
		size = 1
	}
	return &ChunkIterator{h: h, size: size, offset: checkpoint, index: checkpoint / size}
}

// Checkpoint returns the item offset the next chunk starts at
func (it *ChunkIterator) Checkpoint() int {
	return it.offset
}

// Next returns the next chunk, or io.EOF when the dataset is exhausted.
// The context check between chunks is the cooperative cancellation point.
func (it *ChunkIterator) Next(ctx context.Context) (*Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	items := it.h.Items()
	if it.offset >= len(items) {
		return nil, io.EOF
	}

	end := it.offset + it.size
	if end > len(items) {
		end = len(items)
	}

	chunk := &Chunk{Index: it.index, Series: make([]*timeseries.Series, 0, end-it.offset)}
	for _, sku := range items[it.offset:end] {
		series, err := it.h.Series(sku)
		if err != nil {
			return nil, fmt.Errorf("load chunk %d: %w", it.index, err)
		}
		chunk.Series = append(chunk.Series, series)
	}

	it.offset = end
	it.index++
	return chunk, nil
}
