package scoring

import (
	"fmt"
	"math"
	"sort"
)

// ─── CONSTANTS ────────────────────────────────────────────────────────────────

// Category thresholds. Intervals are half-open: [0,30) low, [30,65) mixed,
// [65,∞) high.
const (
	mixedThreshold = 30
	highThreshold  = 65
)

const (
	minScore = 0
	maxScore = 100
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// Category is the three-bucket classification of a score. String values are
// the wire values used in JSON, prompts and persisted feedback.
type Category string

const (
	CategoryLow   Category = "low"
	CategoryMixed Category = "mixed"
	CategoryHigh  Category = "high"
)

// ParseCategory validates a wire value.
func ParseCategory(s string) (Category, error) {
	switch c := Category(s); c {
	case CategoryLow, CategoryMixed, CategoryHigh:
		return c, nil
	default:
		return "", fmt.Errorf("scoring: unknown category %q", s)
	}
}

// AnswerSet maps each answered KPI to its [0,1] value. A KPI that was never
// answered is simply absent and contributes 0.
type AnswerSet map[KPI]float64

// AnswerSetFromMap builds an AnswerSet from wire names. Unknown keys are
// silently dropped, matching the engine's "extra keys are ignored" rule.
func AnswerSetFromMap(m map[string]float64) AnswerSet {
	out := make(AnswerSet, len(m))
	for name, v := range m {
		k, err := ParseKPI(name)
		if err != nil {
			continue
		}
		out[k] = v
	}
	return out
}

// UnknownKPIs returns the keys of m that AnswerSetFromMap would drop, sorted.
func UnknownKPIs(m map[string]float64) []string {
	var unknown []string
	for name := range m {
		if _, err := ParseKPI(name); err != nil {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return unknown
}

// Set stores v under k.
func (a AnswerSet) Set(k KPI, v float64) { a[k] = v }

// Get returns the value for k, or 0 when k is absent.
func (a AnswerSet) Get(k KPI) float64 { return a[k] }

// Len returns the number of answered KPIs.
func (a AnswerSet) Len() int { return len(a) }

// Clone returns an independent copy. Frozen answer sets handed to the
// pipeline are always clones so later writes cannot reach them.
func (a AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// ToMap renders the set keyed by wire name.
func (a AnswerSet) ToMap() map[string]float64 {
	out := make(map[string]float64, len(a))
	for k, v := range a {
		out[k.String()] = v
	}
	return out
}

// Result is the derived outcome of scoring an AnswerSet. It is never stored
// on its own; it is always recomputed from the answers.
type Result struct {
	Score    int      `json:"score"`
	Category Category `json:"category"`
}

// ─── CORE FUNCTIONS ───────────────────────────────────────────────────────────

// ComputeScore returns the weighted score in [0,100].
//
// Every KPI in the weight table contributes value × weight; absent KPIs
// contribute 0. The sum walks AllKPIs order rather than map order so the
// floating-point result is identical however the set was built. The total is
// scaled by 100 and rounded half away from zero (math.Round), then clamped so
// out-of-range inputs can never escape [0,100]. The clamp happens before the
// integer conversion; a NaN total scores 0 and ±Inf clamps to the bounds.
func ComputeScore(kpis AnswerSet, w WeightTable) int {
	total := 0.0
	for k := KPI(0); k < numKPIs; k++ {
		total += kpis.Get(k) * w.Weight(k)
	}
	scaled := math.Round(total * 100)
	switch {
	case math.IsNaN(scaled), scaled < minScore:
		return minScore
	case scaled > maxScore:
		return maxScore
	default:
		return int(scaled)
	}
}

// Classify maps any integer score to its category. Out-of-range values are
// handled by the same rules: negatives are low, anything ≥65 is high.
func Classify(score int) Category {
	switch {
	case score < mixedThreshold:
		return CategoryLow
	case score < highThreshold:
		return CategoryMixed
	default:
		return CategoryHigh
	}
}

// Evaluate scores and classifies in one call.
func Evaluate(kpis AnswerSet, w WeightTable) Result {
	score := ComputeScore(kpis, w)
	return Result{Score: score, Category: Classify(score)}
}
