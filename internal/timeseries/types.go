// Package timeseries provides the shared per-item series types and summary
// statistics used across the analytical engines (health, cluster, anomaly,
// features, forecast).
package timeseries

import (
	"math"
	"sort"
	"time"
)

// Frequency is the declared spacing between records of a series.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is a supported frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// Interval returns the nominal duration of one period.
// Monthly uses 30 days; callers that need calendar arithmetic use Next.
func (f Frequency) Interval() time.Duration {
	switch f {
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Next returns the period start following t.
func (f Frequency) Next(t time.Time) time.Time {
	switch f {
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// SeasonLength returns the natural season length in periods for f
// (week for daily data, year for weekly and monthly data).
func (f Frequency) SeasonLength() int {
	switch f {
	case FrequencyWeekly:
		return 52
	case FrequencyMonthly:
		return 12
	default:
		return 7
	}
}

// Record is a single dated observation for one item. Price and Promo are
// optional; HasPrice/HasPromo report whether they were present in the source.
type Record struct {
	Date     time.Time
	Quantity float64
	Price    float64
	Promo    bool
	HasPrice bool
	HasPromo bool
}

// Series is one item's ordered observations. Records are sorted by date and
// unique per date once data health repairs have run.
type Series struct {
	SKU       string
	Category  string
	Frequency Frequency
	Records   []Record
}

// Len returns the number of records.
func (s *Series) Len() int { return len(s.Records) }

// Values extracts the quantity column.
func (s *Series) Values() []float64 {
	values := make([]float64, len(s.Records))
	for i, r := range s.Records {
		values[i] = r.Quantity
	}
	return values
}

// Dates extracts the date column.
func (s *Series) Dates() []time.Time {
	dates := make([]time.Time, len(s.Records))
	for i, r := range s.Records {
		dates[i] = r.Date
	}
	return dates
}

// Sort orders records by date ascending.
func (s *Series) Sort() {
	sort.Slice(s.Records, func(i, j int) bool {
		return s.Records[i].Date.Before(s.Records[j].Date)
	})
}

// Clone returns a deep copy of the series. Engines that mutate records
// (repair, anomaly resolution) operate on snapshots.
func (s *Series) Clone() *Series {
	out := &Series{
		SKU:       s.SKU,
		Category:  s.Category,
		Frequency: s.Frequency,
		Records:   make([]Record, len(s.Records)),
	}
	copy(out.Records, s.Records)
	return out
}

// Stats holds the per-item summary statistics consumed by clustering
// and quality scoring.
type Stats struct {
	SKU             string
	Count           int
	TotalVolume     float64
	Mean            float64
	StdDev          float64
	CV              float64
	Q4Concentration float64
}

// Summarize computes summary statistics for the series.
func (s *Series) Summarize() Stats {
	st := Stats{SKU: s.SKU, Count: len(s.Records)}
	if len(s.Records) == 0 {
		return st
	}

	var q4 float64
	for _, r := range s.Records {
		st.TotalVolume += r.Quantity
		if m := r.Date.Month(); m >= time.October {
			q4 += r.Quantity
		}
	}
	st.Mean = st.TotalVolume / float64(len(s.Records))

	var sumSq float64
	for _, r := range s.Records {
		diff := r.Quantity - st.Mean
		sumSq += diff * diff
	}
	st.StdDev = math.Sqrt(sumSq / float64(len(s.Records)))

	if st.Mean > 0 {
		st.CV = st.StdDev / st.Mean
	}
	if st.TotalVolume > 0 {
		st.Q4Concentration = q4 / st.TotalVolume
	}
	return st
}

// Mean calculates the mean quantity.
func (s *Series) Mean() float64 {
	if len(s.Records) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range s.Records {
		sum += r.Quantity
	}
	return sum / float64(len(s.Records))
}

// Aggregate resamples the series to a coarser frequency by summing
// quantities per target period. Price carries the period mean, promo the
// period's any-promo flag. Aggregating to the series' own frequency
// returns a clone.
func (s *Series) Aggregate(target Frequency) *Series {
	if target == s.Frequency || len(s.Records) == 0 {
		out := s.Clone()
		out.Frequency = target
		return out
	}

	type bucket struct {
		rec        Record
		priceSum   float64
		priceCount int
	}

	buckets := make(map[time.Time]*bucket)
	var order []time.Time
	for _, r := range s.Records {
		key := periodStart(r.Date, target)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{rec: Record{Date: key}}
			buckets[key] = b
			order = append(order, key)
		}
		b.rec.Quantity += r.Quantity
		if r.HasPrice {
			b.priceSum += r.Price
			b.priceCount++
			b.rec.HasPrice = true
		}
		if r.HasPromo {
			b.rec.HasPromo = true
			if r.Promo {
				b.rec.Promo = true
			}
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	out := &Series{SKU: s.SKU, Category: s.Category, Frequency: target}
	for _, key := range order {
		b := buckets[key]
		if b.priceCount > 0 {
			b.rec.Price = b.priceSum / float64(b.priceCount)
		}
		out.Records = append(out.Records, b.rec)
	}
	return out
}

// periodStart truncates t to the start of its period at the given frequency.
func periodStart(t time.Time, f Frequency) time.Time {
	y, m, d := t.Date()
	switch f {
	case FrequencyWeekly:
		// ISO-style week starting Monday.
		day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case FrequencyMonthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
}

// Gaps returns the period starts missing from the series relative to its
// declared frequency, between the first and last record.
func (s *Series) Gaps() []time.Time {
	if len(s.Records) < 2 {
		return nil
	}
	present := make(map[time.Time]bool, len(s.Records))
	for _, r := range s.Records {
		present[periodStart(r.Date, s.Frequency)] = true
	}

	var missing []time.Time
	start := periodStart(s.Records[0].Date, s.Frequency)
	end := periodStart(s.Records[len(s.Records)-1].Date, s.Frequency)
	for t := start; t.Before(end); t = s.Frequency.Next(t) {
		if !present[t] {
			missing = append(missing, t)
		}
	}
	return missing
}

// MeanStdDev calculates mean and population standard deviation of values.
func MeanStdDev(values []float64) (mean, stdDev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var sumSq float64
	for _, v := range values {
		diff := v - mean
		sumSq += diff * diff
	}
	stdDev = math.Sqrt(sumSq / float64(len(values)))
	return mean, stdDev
}

// Percentile calculates the p-th percentile of sorted data with linear
// interpolation. p is between 0 and 100.
func Percentile(sortedData []float64, p float64) float64 {
	if len(sortedData) == 0 {
		return 0
	}
	if len(sortedData) == 1 {
		return sortedData[0]
	}

	index := (p / 100) * float64(len(sortedData)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedData) {
		return sortedData[len(sortedData)-1]
	}

	weight := index - float64(lower)
	return sortedData[lower]*(1-weight) + sortedData[upper]*weight
}

// Quartiles returns Q1, Q3 and the interquartile range for values.
func Quartiles(values []float64) (q1, q3, iqr float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	q1 = Percentile(sorted, 25)
	q3 = Percentile(sorted, 75)
	return q1, q3, q3 - q1
}
