package features

import (
	"math"
	"sort"
)

// Ranked is one feature's importance relative to the target. Weights
// across a ranking sum to 1 when any feature correlates at all.
type Ranked struct {
	Name        string  `json:"name"`
	Correlation float64 `json:"correlation"` // Signed Pearson correlation
	Weight      float64 `json:"weight"`      // Normalized |correlation|
}

// Importance ranks the set's features by absolute Pearson correlation
// with the target, normalized so the weights sum to 1. Positions where
// either side is NaN are skipped pairwise. The ranking is explanatory
// only; it does not feed model selection.
func Importance(fs *FeatureSet) []Ranked {
	ranked := make([]Ranked, 0, len(fs.Names))
	var total float64
	for _, name := range fs.Names {
		corr := pearson(fs.Columns[name], fs.Target)
		ranked = append(ranked, Ranked{Name: name, Correlation: corr})
		total += math.Abs(corr)
	}

	if total > 0 {
		for i := range ranked {
			ranked[i].Weight = math.Abs(ranked[i].Correlation) / total
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		wi, wj := ranked[i].Weight, ranked[j].Weight
		if wi != wj {
			return wi > wj
		}
		return ranked[i].Name < ranked[j].Name
	})
	return ranked
}

// pearson computes the correlation coefficient over the positions where
// both columns are defined. Fewer than two usable pairs, or a constant
// side, yields 0.
func pearson(x, y []float64) float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}

	var sumX, sumY float64
	count := 0
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		sumX += x[i]
		sumY += y[i]
		count++
	}
	if count < 2 {
		return 0
	}
	meanX := sumX / float64(count)
	meanY := sumY / float64(count)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}
