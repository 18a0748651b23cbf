// Package scoring implements the quiz scoring engine: the KPI key set, the
// weight table, the weighted 0–100 score and its three-bucket category. It is
// intentionally dependency-free: it imports nothing from internal/ and can be
// tested without any collaborator.
package scoring

import (
	"encoding/json"
	"fmt"
	"math"
)

// ─── KPI KEYS ─────────────────────────────────────────────────────────────────

// KPI is one normalised [0,1] signal derived from a single quiz answer. The
// set is closed: every KPI has a weight at compile time, so a typo in a key
// is a compile error instead of a silently zeroed contribution.
type KPI int

const (
	StoryLikeRate KPI = iota
	ConversationInitiationRatio
	ReplySpeedScore
	DateCountScore
	GiftScore
	EmotionalInterestScore
	FuturePlansScore

	numKPIs
)

// kpiNames are the wire names used in JSON payloads, prompts and logs.
var kpiNames = [numKPIs]string{
	StoryLikeRate:               "story_like_rate",
	ConversationInitiationRatio: "conversation_initiation_ratio",
	ReplySpeedScore:             "reply_speed_score",
	DateCountScore:              "date_count_score",
	GiftScore:                   "gift_score",
	EmotionalInterestScore:      "emotional_interest_score",
	FuturePlansScore:            "future_plans_score",
}

// AllKPIs returns every KPI in canonical order. Summation and prompt output
// always walk this order.
func AllKPIs() []KPI {
	out := make([]KPI, numKPIs)
	for i := range out {
		out[i] = KPI(i)
	}
	return out
}

func (k KPI) String() string {
	if k < 0 || k >= numKPIs {
		return fmt.Sprintf("kpi(%d)", int(k))
	}
	return kpiNames[k]
}

// Valid reports whether k is one of the seven known KPIs.
func (k KPI) Valid() bool { return k >= 0 && k < numKPIs }

// ParseKPI maps a wire name back to its KPI.
func ParseKPI(name string) (KPI, error) {
	for i, n := range kpiNames {
		if n == name {
			return KPI(i), nil
		}
	}
	return 0, fmt.Errorf("scoring: unknown kpi %q", name)
}

func (k KPI) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("scoring: cannot marshal invalid kpi %d", int(k))
	}
	return []byte(kpiNames[k]), nil
}

func (k *KPI) UnmarshalText(b []byte) error {
	parsed, err := ParseKPI(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ─── WEIGHT TABLE ─────────────────────────────────────────────────────────────

// weightTolerance bounds the floating-point drift allowed when checking that
// the weights sum to 1.
const weightTolerance = 1e-9

// WeightTable is a total mapping from KPI to its share of the final score.
// Being an array, every KPI always has an entry.
type WeightTable [numKPIs]float64

// DefaultWeights returns the reference weight distribution.
func DefaultWeights() WeightTable {
	return WeightTable{
		StoryLikeRate:               0.15,
		ConversationInitiationRatio: 0.20,
		ReplySpeedScore:             0.15,
		DateCountScore:              0.20,
		GiftScore:                   0.10,
		EmotionalInterestScore:      0.15,
		FuturePlansScore:            0.05,
	}
}

// Weight returns the weight for k, or 0 for an invalid key.
func (w WeightTable) Weight(k KPI) float64 {
	if !k.Valid() {
		return 0
	}
	return w[k]
}

// Sum returns the total of all weights.
func (w WeightTable) Sum() float64 {
	total := 0.0
	for _, v := range w {
		total += v
	}
	return total
}

// Validate checks that no weight is negative and that the weights sum to 1.
// Call this once at startup, not on every request: a bad table is a
// programming error, not a runtime condition.
func (w WeightTable) Validate() error {
	for i, v := range w {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("weight table: %s=%v must be a non-negative number", KPI(i), v)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("weight table: weights sum to %.6f, must sum to 1", sum)
	}
	return nil
}

// MarshalJSON renders the table keyed by KPI wire name.
func (w WeightTable) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, numKPIs)
	for i, v := range w {
		m[kpiNames[i]] = v
	}
	return json.Marshal(m)
}
