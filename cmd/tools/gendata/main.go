package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"time"
)

// Synthetic retail dataset generator. Produces a CSV with deliberately
// awkward column names, a Pareto tier mix, injected health issues and
// demand spikes, so every pipeline stage has something to chew on.

type pattern string

const (
	patternSeasonal      pattern = "seasonal"
	patternTrendSeasonal pattern = "trend_seasonal"
	patternSteady        pattern = "steady"
	patternErratic       pattern = "erratic"
	patternVariable      pattern = "variable"
)

var categories = map[string]pattern{
	"Seasonal_Decor": patternSeasonal,
	"Electronics":    patternVariable,
	"Groceries":      patternSteady,
	"Fashion":        patternTrendSeasonal,
	"Spare_Parts":    patternErratic,
}

type skuProfile struct {
	sku      string
	tier     string
	baseVol  float64
	category string
	pattern  pattern
}

func main() {
	numSKUs := flag.Int("skus", 500, "Number of items to generate")
	days := flag.Int("days", 730, "Days of history")
	start := flag.String("start", "2022-01-01", "Start date (YYYY-MM-DD)")
	seed := flag.Int64("seed", 42, "Random seed")
	output := flag.String("output", "stocksight_test_data.csv", "Output CSV path")
	flag.Parse()

	startDate, err := time.Parse("2006-01-02", *start)
	if err != nil {
		log.Fatalf("Error: invalid start date %q: %v", *start, err)
	}

	rng := rand.New(rand.NewSource(*seed))
	profiles := buildProfiles(rng, *numSKUs)

	file, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Error: create %s: %v", *output, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	// Awkward names on purpose, to exercise column detection
	header := []string{"trx_date", "product_id", "category_group", "sales_qty", "unit_price", "is_promo"}
	if err := w.Write(header); err != nil {
		log.Fatalf("Error: write header: %v", err)
	}

	rows := 0
	spikesLeft := 5
	for _, p := range profiles {
		qty := generateWave(rng, p.pattern, p.baseVol, *days)
		basePrice := 10 + rng.Float64()*190
		price, promo := generatePricingPromo(rng, basePrice, qty)

		// C items sell intermittently
		if p.tier == "C" {
			for i := range qty {
				if rng.Float64() < 0.4 {
					qty[i] = 0
				}
			}
		}

		// a handful of A items carry massive spikes
		if p.tier == "A" && spikesLeft > 0 {
			day := rng.Intn(*days)
			qty[day] *= 12
			spikesLeft--
		}

		for i := 0; i < *days; i++ {
			date := startDate.AddDate(0, 0, i)
			q := fmt.Sprintf("%d", int(math.Round(qty[i])))
			switch {
			case rng.Float64() < 0.01: // missing values
				q = ""
			case rng.Float64() < 0.005: // returns
				q = fmt.Sprintf("%d", -int(math.Round(qty[i])))
			}

			row := []string{
				date.Format("2006-01-02"),
				p.sku,
				p.category,
				q,
				fmt.Sprintf("%.2f", price[i]),
				fmt.Sprintf("%d", promo[i]),
			}
			if err := w.Write(row); err != nil {
				log.Fatalf("Error: write row: %v", err)
			}
			rows++

			// occasional duplicated rows
			if rng.Float64() < 0.005 {
				if err := w.Write(row); err != nil {
					log.Fatalf("Error: write row: %v", err)
				}
				rows++
			}
		}
	}

	fmt.Printf("Wrote %d rows for %d items to %s\n", rows, *numSKUs, *output)
}

// buildProfiles assigns tiers in a Pareto-ish split: 10% A, 30% B,
// the rest C
func buildProfiles(rng *rand.Rand, n int) []skuProfile {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}

	nA := n / 10
	nB := (n * 3) / 10

	profiles := make([]skuProfile, 0, n)
	for i := 0; i < n; i++ {
		var tier string
		var vol float64
		switch {
		case i < nA:
			tier, vol = "A", float64(500+rng.Intn(1500))
		case i < nA+nB:
			tier, vol = "B", float64(50+rng.Intn(450))
		default:
			tier, vol = "C", float64(5+rng.Intn(44))
		}

		category := names[rng.Intn(len(names))]
		pat := categories[category]
		if tier == "C" && rng.Float64() > 0.5 {
			pat = patternErratic
		}

		profiles = append(profiles, skuProfile{
			sku:      fmt.Sprintf("SKU_%04d", i+1),
			tier:     tier,
			baseVol:  vol,
			category: category,
			pattern:  pat,
		})
	}
	return profiles
}

func generateWave(rng *rand.Rand, pat pattern, baseVol float64, days int) []float64 {
	noiseLevel := 0.15
	y := make([]float64, days)
	for i := 0; i < days; i++ {
		x := float64(i)
		seasonality := math.Sin(x * 2 * math.Pi / 365)
		weekly := math.Sin(x * 2 * math.Pi / 7)
		trend := 0.5 * x / float64(days)

		switch pat {
		case patternSeasonal:
			// strong Q4 peak
			d := math.Mod(x, 365) - 320
			q4 := math.Exp(-d*d/(2*20*20)) * 3
			y[i] = baseVol + baseVol*0.5*seasonality + baseVol*q4
		case patternTrendSeasonal:
			y[i] = baseVol*(1+trend) + baseVol*0.3*seasonality
		case patternSteady:
			y[i] = baseVol + baseVol*0.05*weekly
		case patternErratic:
			y[i] = baseVol + rng.ExpFloat64()*baseVol*0.5
		default:
			y[i] = baseVol + baseVol*0.2*seasonality + baseVol*0.1*weekly
		}

		level := noiseLevel
		if pat == patternErratic {
			level *= 2
		}
		y[i] += rng.NormFloat64() * baseVol * level
		if y[i] < 0 {
			y[i] = 0
		}
	}
	return y
}

// generatePricingPromo creates prices and promo flags correlated with
// demand: a promo day drops the price 20% and lifts demand 30-50%
func generatePricingPromo(rng *rand.Rand, basePrice float64, qty []float64) ([]float64, []int) {
	price := make([]float64, len(qty))
	promo := make([]int, len(qty))
	for i := range qty {
		price[i] = basePrice + rng.NormFloat64()*basePrice*0.02
		if rng.Float64() < 0.05 {
			promo[i] = 1
			price[i] *= 0.8
			qty[i] *= 1.3 + rng.Float64()*0.2
		}
	}
	return price, promo
}
