package timeseries

import (
	"math"
	"testing"
	"time"
)

func daySeries(start time.Time, values []float64) *Series {
	s := &Series{SKU: "SKU-1", Frequency: FrequencyDaily}
	for i, v := range values {
		s.Records = append(s.Records, Record{Date: start.AddDate(0, 0, i), Quantity: v})
	}
	return s
}

func TestFrequencyValid(t *testing.T) {
	for _, f := range []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyMonthly} {
		if !f.Valid() {
			t.Errorf("%s should be valid", f)
		}
	}
	if Frequency("hourly").Valid() {
		t.Error("hourly should not be valid")
	}
}

func TestFrequencyNext(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if got := FrequencyDaily.Next(start); !got.Equal(start.AddDate(0, 0, 1)) {
		t.Errorf("daily next wrong: %v", got)
	}
	if got := FrequencyWeekly.Next(start); !got.Equal(start.AddDate(0, 0, 7)) {
		t.Errorf("weekly next wrong: %v", got)
	}
	if got := FrequencyMonthly.Next(start); !got.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("monthly next wrong: %v", got)
	}
}

func TestSeasonLength(t *testing.T) {
	if FrequencyDaily.SeasonLength() != 7 {
		t.Error("daily season should be 7")
	}
	if FrequencyWeekly.SeasonLength() != 52 {
		t.Error("weekly season should be 52")
	}
	if FrequencyMonthly.SeasonLength() != 12 {
		t.Error("monthly season should be 12")
	}
}

func TestSeriesSortAndClone(t *testing.T) {
	d1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 1)
	s := &Series{Frequency: FrequencyDaily, Records: []Record{
		{Date: d2, Quantity: 2},
		{Date: d1, Quantity: 1},
	}}

	s.Sort()
	if !s.Records[0].Date.Equal(d1) {
		t.Error("records should be sorted by date ascending")
	}

	clone := s.Clone()
	clone.Records[0].Quantity = 99
	if s.Records[0].Quantity != 1 {
		t.Error("mutating a clone must not touch the original")
	}
}

func TestSummarize(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st := daySeries(start, []float64{10, 20, 30}).Summarize()

	if st.TotalVolume != 60 {
		t.Errorf("expected total 60, got %v", st.TotalVolume)
	}
	if st.Mean != 20 {
		t.Errorf("expected mean 20, got %v", st.Mean)
	}
	wantStd := math.Sqrt(200.0 / 3.0)
	if math.Abs(st.StdDev-wantStd) > 1e-9 {
		t.Errorf("expected stddev %v, got %v", wantStd, st.StdDev)
	}
	if math.Abs(st.CV-wantStd/20) > 1e-9 {
		t.Errorf("expected cv %v, got %v", wantStd/20, st.CV)
	}
	if st.Q4Concentration != 0 {
		t.Errorf("january data has no q4 volume, got %v", st.Q4Concentration)
	}

	oct := daySeries(time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), []float64{5, 5}).Summarize()
	if oct.Q4Concentration != 1 {
		t.Errorf("october-only data should concentrate fully in q4, got %v", oct.Q4Concentration)
	}
}

func TestAggregateDailyToWeekly(t *testing.T) {
	// two full ISO weeks starting Monday 2024-01-01
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	values := make([]float64, 14)
	for i := range values {
		values[i] = float64(i + 1)
	}
	weekly := daySeries(start, values).Aggregate(FrequencyWeekly)

	if weekly.Len() != 2 {
		t.Fatalf("expected 2 weekly buckets, got %d", weekly.Len())
	}
	if weekly.Records[0].Quantity != 28 {
		t.Errorf("first week should sum 1..7=28, got %v", weekly.Records[0].Quantity)
	}
	if weekly.Records[1].Quantity != 77 {
		t.Errorf("second week should sum 8..14=77, got %v", weekly.Records[1].Quantity)
	}
	if !weekly.Records[1].Date.Equal(start.AddDate(0, 0, 7)) {
		t.Errorf("second bucket should start on the next Monday, got %v", weekly.Records[1].Date)
	}
}

func TestAggregateCarriesPriceAndPromo(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Series{Frequency: FrequencyDaily, Records: []Record{
		{Date: start, Quantity: 1, Price: 10, HasPrice: true, Promo: true, HasPromo: true},
		{Date: start.AddDate(0, 0, 1), Quantity: 2, Price: 20, HasPrice: true, HasPromo: true},
	}}
	monthly := s.Aggregate(FrequencyMonthly)

	if monthly.Len() != 1 {
		t.Fatalf("expected 1 monthly bucket, got %d", monthly.Len())
	}
	rec := monthly.Records[0]
	if rec.Price != 15 {
		t.Errorf("price should average to 15, got %v", rec.Price)
	}
	if !rec.Promo {
		t.Error("any promo day should set the bucket promo flag")
	}
}

func TestAggregateSameFrequencyClones(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := daySeries(start, []float64{1, 2})
	out := s.Aggregate(FrequencyDaily)
	out.Records[0].Quantity = 99
	if s.Records[0].Quantity != 1 {
		t.Error("aggregating to the same frequency must return a copy")
	}
}

func TestGaps(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Series{Frequency: FrequencyDaily, Records: []Record{
		{Date: start},
		{Date: start.AddDate(0, 0, 1)},
		{Date: start.AddDate(0, 0, 4)},
	}}
	gaps := s.Gaps()
	if len(gaps) != 2 {
		t.Fatalf("expected 2 gaps, got %d", len(gaps))
	}
	if !gaps[0].Equal(start.AddDate(0, 0, 2)) || !gaps[1].Equal(start.AddDate(0, 0, 3)) {
		t.Errorf("unexpected gap dates: %v", gaps)
	}

	if daySeries(start, []float64{1}).Gaps() != nil {
		t.Error("a single record has no gaps")
	}
}

func TestMeanStdDev(t *testing.T) {
	mean, std := MeanStdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if mean != 5 {
		t.Errorf("expected mean 5, got %v", mean)
	}
	if std != 2 {
		t.Errorf("expected stddev 2, got %v", std)
	}

	mean, std = MeanStdDev(nil)
	if mean != 0 || std != 0 {
		t.Error("empty input should yield zeros")
	}
}

func TestPercentileInterpolates(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}
	if got := Percentile(sorted, 25); got != 17.5 {
		t.Errorf("expected 17.5, got %v", got)
	}
	if got := Percentile(sorted, 100); got != 40 {
		t.Errorf("expected 40, got %v", got)
	}
	if got := Percentile([]float64{42}, 50); got != 42 {
		t.Errorf("single value is its own percentile, got %v", got)
	}
}

func TestQuartiles(t *testing.T) {
	values := []float64{9, 1, 2, 3, 4, 5, 6, 7, 8}
	q1, q3, iqr := Quartiles(values)
	if q1 != 3 || q3 != 7 || iqr != 4 {
		t.Errorf("expected q1=3 q3=7 iqr=4, got %v %v %v", q1, q3, iqr)
	}
}
