package schema

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/stocksight/stocksight/internal/config"
)

// roleKeywords holds the header keyword lists per role. A keyword hit
// contributes the bulk of a column's score; content heuristics add the rest.
var roleKeywords = map[Role][]string{
	RoleDate:     {"date", "time", "timestamp", "day", "period", "datetime"},
	RoleItemID:   {"sku", "product", "item", "code", "article", "name", "id"},
	RoleQuantity: {"quantity", "qty", "amount", "count", "units", "sales", "demand", "sold", "volume"},
	RoleCategory: {"category", "cat", "group", "type", "dept", "family", "segment"},
	RolePrice:    {"price", "cost", "unit_price", "revenue"},
	RolePromo:    {"promo", "promotion", "discount", "offer", "campaign"},
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"Jan 2, 2006",
	"2 Jan 2006",
}

var codePattern = regexp.MustCompile(`^[A-Za-z0-9\-_]+$`)

// Detection holds the per-column scoring result
type Detection struct {
	Column       string           `json:"column"`
	DetectedRole Role             `json:"detected_role"` // empty when below threshold
	Confidence   float64          `json:"confidence"`
	Scores       map[Role]float64 `json:"scores"`
	Samples      []string         `json:"samples"`
}

// Resolver scores columns against role keyword lists and content
// heuristics, then assigns the best column per role
type Resolver struct {
	threshold float64
}

// NewResolver creates a resolver with the configured confidence threshold
func NewResolver(cfg config.SchemaConfig) *Resolver {
	return &Resolver{threshold: cfg.ConfidenceThreshold}
}

// Detect scores every column against every role. Sample rows are the
// first N data rows of the dataset; cells are raw strings.
func (r *Resolver) Detect(header []string, rows [][]string) []Detection {
	detections := make([]Detection, 0, len(header))

	for i, col := range header {
		sample := columnSample(rows, i)
		scores := map[Role]float64{
			RoleDate:     scoreDate(col, sample),
			RoleItemID:   scoreItemID(col, sample),
			RoleQuantity: scoreQuantity(col, sample),
			RoleCategory: scoreCategory(col, sample),
			RolePrice:    scorePrice(col, sample),
			RolePromo:    scorePromo(col, sample),
		}

		best := Role("")
		bestScore := 0.0
		for _, role := range resolutionOrder {
			if scores[role] > bestScore {
				best = role
				bestScore = scores[role]
			}
		}
		if bestScore < r.threshold {
			best = ""
		}

		n := len(sample)
		if n > 5 {
			n = 5
		}
		detections = append(detections, Detection{
			Column:       col,
			DetectedRole: best,
			Confidence:   bestScore,
			Scores:       scores,
			Samples:      sample[:n],
		})
	}

	return detections
}

// Resolve detects column roles and assigns the highest-scoring column per
// role in resolution order. Each column serves at most one role. A tie
// between columns for a required role fails with AmbiguousMappingError;
// required roles left unmapped must be assigned via Remap before the
// mapping can be confirmed.
func (r *Resolver) Resolve(header []string, rows [][]string) (*ColumnMapping, error) {
	detections := r.Detect(header, rows)

	mapping := &ColumnMapping{
		Columns:    make(map[Role]string),
		Confidence: make(map[Role]float64),
	}
	used := make(map[string]bool)

	for _, role := range resolutionOrder {
		type candidate struct {
			column string
			score  float64
		}
		var candidates []candidate
		for _, d := range detections {
			if used[d.Column] {
				continue
			}
			if score := d.Scores[role]; score >= r.threshold {
				candidates = append(candidates, candidate{d.Column, score})
			}
		}
		if len(candidates) == 0 {
			continue
		}

		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].score != candidates[j].score {
				return candidates[i].score > candidates[j].score
			}
			return candidates[i].column < candidates[j].column
		})

		if role.Required() && len(candidates) > 1 &&
			math.Abs(candidates[0].score-candidates[1].score) < 1e-9 {
			return nil, &AmbiguousMappingError{
				Role:    role,
				Columns: []string{candidates[0].column, candidates[1].column},
				Score:   candidates[0].score,
			}
		}

		mapping.Columns[role] = candidates[0].column
		mapping.Confidence[role] = candidates[0].score
		used[candidates[0].column] = true
	}

	return mapping, nil
}

func columnSample(rows [][]string, idx int) []string {
	var sample []string
	for _, row := range rows {
		if idx >= len(row) {
			continue
		}
		cell := strings.TrimSpace(row[idx])
		if cell == "" {
			continue
		}
		sample = append(sample, cell)
	}
	return sample
}

func keywordScore(column string, role Role, weight float64) float64 {
	col := strings.ToLower(strings.TrimSpace(column))
	for _, kw := range roleKeywords[role] {
		if strings.Contains(col, kw) {
			return weight
		}
	}
	return 0
}

func scoreDate(column string, sample []string) float64 {
	score := keywordScore(column, RoleDate, 0.4)

	if len(sample) > 0 {
		parsed := 0
		for _, cell := range sample {
			if _, ok := parseDate(cell); ok {
				parsed++
			}
		}
		score += float64(parsed) / float64(len(sample)) * 0.5
	}

	return clamp01(score)
}

func scoreItemID(column string, sample []string) float64 {
	score := keywordScore(column, RoleItemID, 0.4)

	if len(sample) > 0 {
		unique := make(map[string]bool, len(sample))
		codeLike := 0
		numeric := 0
		for _, cell := range sample {
			unique[cell] = true
			if codePattern.MatchString(cell) {
				codeLike++
			}
			if _, err := strconv.ParseFloat(cell, 64); err == nil {
				numeric++
			}
		}

		uniqueRatio := float64(len(unique)) / float64(len(sample))
		if uniqueRatio > 0.01 && uniqueRatio < 0.5 {
			score += 0.3
		}
		// identifiers are usually non-numeric strings
		if float64(numeric)/float64(len(sample)) < 0.5 {
			score += 0.2
		}
		score += float64(codeLike) / float64(len(sample)) * 0.2
	}

	return clamp01(score)
}

func scoreQuantity(column string, sample []string) float64 {
	score := keywordScore(column, RoleQuantity, 0.4)

	if len(sample) > 0 {
		numeric, nonNegative, integer := 0, 0, 0
		for _, cell := range sample {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				continue
			}
			numeric++
			if v >= 0 {
				nonNegative++
			}
			if v == math.Trunc(v) {
				integer++
			}
		}

		if float64(numeric)/float64(len(sample)) >= 0.9 {
			score += 0.3
		}
		if numeric > 0 {
			score += float64(nonNegative) / float64(numeric) * 0.15
			score += float64(integer) / float64(numeric) * 0.15
		}
	}

	return clamp01(score)
}

func scoreCategory(column string, sample []string) float64 {
	score := keywordScore(column, RoleCategory, 0.4)

	if len(sample) > 0 {
		unique := make(map[string]bool, len(sample))
		numeric := 0
		for _, cell := range sample {
			unique[cell] = true
			if _, err := strconv.ParseFloat(cell, 64); err == nil {
				numeric++
			}
		}

		uniqueRatio := float64(len(unique)) / float64(len(sample))
		switch {
		case uniqueRatio < 0.1:
			score += 0.3
		case uniqueRatio < 0.3:
			score += 0.2
		}
		if float64(numeric)/float64(len(sample)) < 0.5 {
			score += 0.2
		}
	}

	return clamp01(score)
}

func scorePrice(column string, sample []string) float64 {
	score := keywordScore(column, RolePrice, 0.4)

	if len(sample) > 0 {
		numeric, positive, fractional := 0, 0, 0
		for _, cell := range sample {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				continue
			}
			numeric++
			if v > 0 {
				positive++
			}
			if v != math.Trunc(v) {
				fractional++
			}
		}

		if numeric > 0 && float64(fractional)/float64(numeric) >= 0.5 {
			score += 0.3
		}
		if numeric > 0 {
			score += float64(positive) / float64(numeric) * 0.2
		}
	}

	return clamp01(score)
}

func scorePromo(column string, sample []string) float64 {
	score := keywordScore(column, RolePromo, 0.5)

	if len(sample) > 0 {
		unique := make(map[string]bool, len(sample))
		binary := 0
		for _, cell := range sample {
			lower := strings.ToLower(cell)
			unique[lower] = true
			switch lower {
			case "0", "1", "yes", "no", "true", "false", "y", "n":
				binary++
			}
		}

		if len(unique) <= 5 {
			score += 0.3
		}
		score += float64(binary) / float64(len(sample)) * 0.2
	}

	return clamp01(score)
}

// parseDate attempts the supported layouts in order
func parseDate(value string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDate parses a cell using the same layouts the resolver scores with
func ParseDate(value string) (time.Time, bool) {
	return parseDate(strings.TrimSpace(value))
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
