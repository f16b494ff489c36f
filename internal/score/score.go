// Package score turns a classification result into a single relevance
// score. Scoring is fully deterministic: the same classification always
// yields the same score, with no model involvement.
package score

import (
	"math"

	"marketwire/internal/core"
	"marketwire/internal/refdata"
)

// DefaultWeights sum to 10, so an article scoring 10 on every dimension
// lands at a baseline of 100 before bonuses.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		core.DimensionValuation:      1.5,
		core.DimensionFuture:         1.5,
		core.DimensionTechnical:      1.0,
		core.DimensionFinancials:     2.0,
		core.DimensionDividend:       1.0,
		core.DimensionManagement:     1.0,
		core.DimensionOwnership:      1.0,
		core.DimensionSustainability: 1.0,
	}
}

// Bonus points layered on top of the weighted dimension base.
const (
	tickerBonusPrimary = 5  // each of the first primaryTickerCount tickers
	tickerBonusExtra   = 1  // each ticker beyond that
	primaryTickerCount = 3
	topTierBonus       = 10 // at least one ticker is a top-tier company
	sectorBonus        = 5  // the article resolved to a known sector
)

// Engine computes article scores from classification output.
type Engine struct {
	weights map[string]float64
	ref     *refdata.Data
}

// NewEngine builds an engine with the given per-dimension weights. Missing
// or empty weights fall back to DefaultWeights.
func NewEngine(weights map[string]float64, ref *refdata.Data) *Engine {
	merged := DefaultWeights()
	for k, w := range weights {
		if _, ok := merged[k]; ok && w >= 0 {
			merged[k] = w
		}
	}
	return &Engine{weights: merged, ref: ref}
}

// Score computes the article score. Unscored dimensions contribute zero,
// so partial classification lowers the score instead of failing it. The
// result is clamped at zero but has no upper bound.
func (e *Engine) Score(res core.ClassificationResult) int {
	total := 0.0
	for key, value := range res.Dimensions {
		if value == nil {
			continue
		}
		total += e.weights[key] * float64(*value)
	}

	total += tickerBonus(len(res.Tickers))
	if e.anyTopTier(res.Tickers) {
		total += topTierBonus
	}
	if res.Sector != "" {
		total += sectorBonus
	}

	score := int(math.Round(total))
	if score < 0 {
		return 0
	}
	return score
}

// tickerBonus rewards the first few tickers strongly and the rest barely,
// so ticker-list padding cannot inflate the score.
func tickerBonus(n int) float64 {
	if n <= primaryTickerCount {
		return float64(n * tickerBonusPrimary)
	}
	return float64(primaryTickerCount*tickerBonusPrimary + (n-primaryTickerCount)*tickerBonusExtra)
}

func (e *Engine) anyTopTier(tickers []string) bool {
	for _, t := range tickers {
		if e.ref.IsTopTier(t) {
			return true
		}
	}
	return false
}
