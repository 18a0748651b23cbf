// Package quiz holds the question catalog and the per-visitor session state
// machine that turns a run of answers into a frozen scoring.AnswerSet.
package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nyashahama/crushbot-backend/internal/scoring"
)

// ─── TYPES ────────────────────────────────────────────────────────────────────

// QuestionType is the answer modality of a question.
type QuestionType string

const (
	TypeOptions QuestionType = "options"
	TypeSlider  QuestionType = "slider"
)

// Option is one labelled choice of an options question.
type Option struct {
	Label string  `json:"label" yaml:"label"`
	Value float64 `json:"value" yaml:"value"`
}

// Slider describes a continuous answer. Values live in [Min,Max] and the UI
// moves in Step increments.
type Slider struct {
	Min        float64 `json:"min" yaml:"min"`
	Max        float64 `json:"max" yaml:"max"`
	Step       float64 `json:"step" yaml:"step"`
	LeftLabel  string  `json:"left_label" yaml:"left_label"`
	RightLabel string  `json:"right_label" yaml:"right_label"`
}

// Midpoint is the working value a slider starts at whenever the user lands
// on it.
func (s Slider) Midpoint() float64 { return (s.Min + s.Max) / 2 }

// Contains reports whether v is inside [Min,Max].
func (s Slider) Contains(v float64) bool {
	return !math.IsNaN(v) && v >= s.Min && v <= s.Max
}

// Question is immutable once the catalog is loaded. Exactly one of Options
// and Slider is set, matching Type.
type Question struct {
	ID      string       `json:"id" yaml:"id"`
	KPI     scoring.KPI  `json:"kpi" yaml:"kpi"`
	Text    string       `json:"text" yaml:"text"`
	Type    QuestionType `json:"type" yaml:"type"`
	Options []Option     `json:"options,omitempty" yaml:"options,omitempty"`
	Slider  *Slider      `json:"slider,omitempty" yaml:"slider,omitempty"`
}

// valueTolerance absorbs float noise when matching a submitted value to an
// option value.
const valueTolerance = 1e-9

// Accepts reports whether v is a legal answer for q.
func (q Question) Accepts(v float64) bool {
	switch q.Type {
	case TypeOptions:
		for _, o := range q.Options {
			if math.Abs(o.Value-v) <= valueTolerance {
				return true
			}
		}
		return false
	case TypeSlider:
		return q.Slider != nil && q.Slider.Contains(v)
	default:
		return false
	}
}

// Validate checks the question's own shape.
func (q Question) Validate() error {
	if q.ID == "" {
		return errors.New("question: id is required")
	}
	if !q.KPI.Valid() {
		return fmt.Errorf("question %s: invalid kpi", q.ID)
	}
	switch q.Type {
	case TypeOptions:
		if len(q.Options) == 0 {
			return fmt.Errorf("question %s: options question needs at least one option", q.ID)
		}
		if q.Slider != nil {
			return fmt.Errorf("question %s: options question must not define a slider", q.ID)
		}
		for i, o := range q.Options {
			if math.IsNaN(o.Value) || o.Value < 0 || o.Value > 1 {
				return fmt.Errorf("question %s: option %d value %v outside [0,1]", q.ID, i, o.Value)
			}
		}
	case TypeSlider:
		s := q.Slider
		if s == nil {
			return fmt.Errorf("question %s: slider question needs slider bounds", q.ID)
		}
		if len(q.Options) > 0 {
			return fmt.Errorf("question %s: slider question must not define options", q.ID)
		}
		if !(s.Min < s.Max) {
			return fmt.Errorf("question %s: slider min %v must be below max %v", q.ID, s.Min, s.Max)
		}
		if s.Min < 0 || s.Max > 1 {
			return fmt.Errorf("question %s: slider range [%v,%v] outside [0,1]", q.ID, s.Min, s.Max)
		}
		if !(s.Step > 0) {
			return fmt.Errorf("question %s: slider step must be positive", q.ID)
		}
	default:
		return fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
	}
	return nil
}

// Catalog is the ordered, fixed list of questions. Index i is the i-th
// question asked.
type Catalog struct {
	Questions []Question `json:"questions" yaml:"questions"`
}

// Len returns the number of questions.
func (c *Catalog) Len() int { return len(c.Questions) }

// Question returns the question at index i.
func (c *Catalog) Question(i int) (Question, bool) {
	if i < 0 || i >= len(c.Questions) {
		return Question{}, false
	}
	return c.Questions[i], true
}

// Validate checks every question plus the cross-question invariants: at least
// one question, unique IDs and at most one question per KPI.
func (c *Catalog) Validate() error {
	if len(c.Questions) == 0 {
		return errors.New("catalog: no questions")
	}
	ids := make(map[string]bool, len(c.Questions))
	kpis := make(map[scoring.KPI]string, len(c.Questions))
	var errs []error
	for _, q := range c.Questions {
		if err := q.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if ids[q.ID] {
			errs = append(errs, fmt.Errorf("catalog: duplicate question id %q", q.ID))
		}
		ids[q.ID] = true
		if prev, ok := kpis[q.KPI]; ok {
			errs = append(errs, fmt.Errorf("catalog: kpi %s used by both %q and %q", q.KPI, prev, q.ID))
		}
		kpis[q.KPI] = q.ID
	}
	return errors.Join(errs...)
}

// ParseCatalog decodes a JSON catalog of the form {"questions":[...]} and
// validates it. The "type" field of each question selects between "options"
// and "slider"; "kpi" must be a known KPI wire name.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ParseCatalogYAML is ParseCatalog for the YAML form of the same document.
func ParseCatalogYAML(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: decode yaml: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadCatalog reads a catalog file. ".yaml" and ".yml" files are parsed as
// YAML, anything else as JSON. An empty path returns DefaultCatalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseCatalogYAML(data)
	default:
		return ParseCatalog(data)
	}
}

// ─── DEFAULT CATALOG ──────────────────────────────────────────────────────────

// DefaultCatalog returns the seven built-in questions, one per KPI, in the
// order they are asked.
func DefaultCatalog() *Catalog {
	return &Catalog{Questions: []Question{
		{
			ID:   "story_like",
			KPI:  scoring.StoryLikeRate,
			Text: "How often do they like your stories? 👀",
			Type: TypeOptions,
			Options: []Option{
				{Label: "Almost never", Value: 0},
				{Label: "Only when they're really interesting", Value: 0.3},
				{Label: "Pretty often", Value: 0.7},
				{Label: "Every single story!", Value: 1},
			},
		},
		{
			ID:   "conversation_init",
			KPI:  scoring.ConversationInitiationRatio,
			Text: "Who starts the conversations more often?",
			Type: TypeSlider,
			Slider: &Slider{
				Min:        0,
				Max:        1,
				Step:       0.1,
				LeftLabel:  "Always me",
				RightLabel: "Always them",
			},
		},
		{
			ID:   "reply_speed",
			KPI:  scoring.ReplySpeedScore,
			Text: "How fast do they reply to your messages? ⚡",
			Type: TypeOptions,
			Options: []Option{
				{Label: "Hours or days...", Value: 0},
				{Label: "Within a few hours", Value: 0.4},
				{Label: "Within 30 min to an hour", Value: 0.7},
				{Label: "Instantly or under 10 min!", Value: 1},
			},
		},
		{
			ID:   "dates",
			KPI:  scoring.DateCountScore,
			Text: "Have you been out together? 🎭",
			Type: TypeOptions,
			Options: []Option{
				{Label: "Never", Value: 0},
				{Label: "Once", Value: 0.3},
				{Label: "A few times", Value: 0.7},
				{Label: "Pretty often!", Value: 1},
			},
		},
		{
			ID:   "gifts",
			KPI:  scoring.GiftScore,
			Text: "Have they ever given you flowers, gifts or special gestures? 🎁",
			Type: TypeOptions,
			Options: []Option{
				{Label: "Never", Value: 0},
				{Label: "Once, something small", Value: 0.4},
				{Label: "A few times", Value: 0.8},
				{Label: "Yes, often!", Value: 1},
			},
		},
		{
			ID:   "emotional",
			KPI:  scoring.EmotionalInterestScore,
			Text: "How do they act around you when you're together? 💫",
			Type: TypeOptions,
			Options: []Option{
				{Label: "Distant, like a friend", Value: 0},
				{Label: "Friendly, but nothing special", Value: 0.3},
				{Label: "Attentive and charming", Value: 0.7},
				{Label: "Super affectionate and interested", Value: 1},
			},
		},
		{
			ID:   "future_plans",
			KPI:  scoring.FuturePlansScore,
			Text: "Do they talk about future plans with you? 🗓️",
			Type: TypeOptions,
			Options: []Option{
				{Label: "Never", Value: 0},
				{Label: "Rarely", Value: 0.3},
				{Label: "Occasionally", Value: 0.6},
				{Label: "Yes, often!", Value: 1},
			},
		},
	}}
}
