package anomaly

import (
	"fmt"

	"github.com/stocksight/stocksight/internal/timeseries"
)

// Outcome reports what Resolve did to a series
type Outcome struct {
	Points    []Point // Input points with updated state
	Corrected int     // auto_correct actions applied
	Removed   int     // remove actions applied
	Flagged   []Point // Points routed to manual review
	Changed   bool    // Whether the series was modified
}

// Resolve applies each point's disposition to the series in place.
// keep leaves the record alone; flag collects the point for manual
// review; auto_correct replaces the value with a local estimate (the
// expected-range midpoint, or the neighbor average when no range is
// known); remove deletes the record.
// Every action is idempotent: resolving an already-resolved point again
// is a no-op.
func Resolve(series *timeseries.Series, points []Point) (*Outcome, error) {
	outcome := &Outcome{Points: make([]Point, len(points))}
	copy(outcome.Points, points)

	for i := range outcome.Points {
		p := &outcome.Points[i]
		if p.SKU != series.SKU {
			return nil, fmt.Errorf("point for item %s applied to series %s", p.SKU, series.SKU)
		}
		if !p.Disposition.Valid() {
			return nil, fmt.Errorf("invalid disposition %q for %s at %s", p.Disposition, p.SKU, p.Date.Format("2006-01-02"))
		}

		switch p.Disposition {
		case DispositionPending, DispositionKeep:
			// no change

		case DispositionFlag:
			outcome.Flagged = append(outcome.Flagged, *p)

		case DispositionAutoCorrect:
			if p.Corrected {
				continue
			}
			idx := recordIndex(series, p)
			if idx < 0 {
				continue // record already removed elsewhere
			}
			estimate := localEstimate(series, idx, p.Expected)
			if series.Records[idx].Quantity != estimate {
				series.Records[idx].Quantity = estimate
				outcome.Corrected++
				outcome.Changed = true
			}
			p.Corrected = true

		case DispositionRemove:
			idx := recordIndex(series, p)
			if idx < 0 {
				continue // already removed
			}
			series.Records = append(series.Records[:idx], series.Records[idx+1:]...)
			outcome.Removed++
			outcome.Changed = true
		}
	}

	return outcome, nil
}

// recordIndex finds the record a point refers to, by date
func recordIndex(series *timeseries.Series, p *Point) int {
	for i, r := range series.Records {
		if r.Date.Equal(p.Date) {
			return i
		}
	}
	return -1
}

// localEstimate produces the replacement value for a corrected point:
// the midpoint of the expected range when one is known, otherwise the
// average of the neighboring records. Never negative.
func localEstimate(series *timeseries.Series, idx int, expected *Range) float64 {
	if expected != nil {
		v := (expected.Min + expected.Max) / 2
		if v < 0 {
			v = 0
		}
		return v
	}

	var sum float64
	count := 0
	if idx > 0 {
		sum += series.Records[idx-1].Quantity
		count++
	}
	if idx < len(series.Records)-1 {
		sum += series.Records[idx+1].Quantity
		count++
	}
	if count == 0 {
		return series.Records[idx].Quantity
	}
	return sum / float64(count)
}
