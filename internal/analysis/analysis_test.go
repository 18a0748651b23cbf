package analysis_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/nyashahama/crushbot-backend/internal/ai"
	"github.com/nyashahama/crushbot-backend/internal/analysis"
	"github.com/nyashahama/crushbot-backend/internal/scoring"
)

type stubGenerator struct {
	text string
	err  error
}

func (s stubGenerator) Generate(context.Context, string) (string, error) { return s.text, s.err }

func referenceKPIs() scoring.AnswerSet {
	return scoring.AnswerSet{
		scoring.StoryLikeRate:               0.7,
		scoring.ConversationInitiationRatio: 0.8,
		scoring.ReplySpeedScore:             1,
		scoring.DateCountScore:              0.7,
		scoring.GiftScore:                   0.8,
		scoring.EmotionalInterestScore:      0.7,
		scoring.FuturePlansScore:            0.6,
	}
}

func newAnalyzer(gen ai.Generator) *analysis.Analyzer {
	return analysis.New(scoring.DefaultWeights(), ai.NewExplainer(gen, zap.NewNop(), 0), zap.NewNop())
}

func TestAnalyze_GeneratedExplanation(t *testing.T) {
	out := newAnalyzer(stubGenerator{text: "🔥 yes"}).Analyze(context.Background(), referenceKPIs())

	if out.Score != 77 || out.Category != scoring.CategoryHigh {
		t.Errorf("result: got %+v", out.Result)
	}
	if out.Explanation.Text != "🔥 yes" || out.Explanation.Source != ai.SourceGenerated {
		t.Errorf("explanation: got %+v", out.Explanation)
	}
}

func TestAnalyze_CollaboratorFailureServesHighFallback(t *testing.T) {
	out := newAnalyzer(stubGenerator{err: errors.New("503")}).Analyze(context.Background(), referenceKPIs())

	if out.Explanation.Text != ai.FallbackHigh {
		t.Errorf("expected high fallback, got %q", out.Explanation.Text)
	}
}

func TestAnalyze_DoesNotMutateAnswers(t *testing.T) {
	kpis := referenceKPIs()
	newAnalyzer(stubGenerator{text: "ok"}).Analyze(context.Background(), kpis)

	ref := referenceKPIs()
	for _, k := range scoring.AllKPIs() {
		if kpis.Get(k) != ref.Get(k) {
			t.Errorf("%s changed: got %v", k, kpis.Get(k))
		}
	}
}

func TestScore_IsPure(t *testing.T) {
	a := newAnalyzer(stubGenerator{err: errors.New("must not be called")})
	res := a.Score(scoring.AnswerSet{scoring.ReplySpeedScore: 1})
	if res.Score != 15 || res.Category != scoring.CategoryLow {
		t.Errorf("got %+v", res)
	}
}

func TestOutcome_JSONShape(t *testing.T) {
	out := newAnalyzer(stubGenerator{text: "hi"}).Analyze(context.Background(), referenceKPIs())
	b, err := json.Marshal(out)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if m["score"] != float64(77) || m["category"] != "high" {
		t.Errorf("flattened result missing: %v", m)
	}
	exp, _ := m["explanation"].(map[string]any)
	if exp["source"] != "generated" {
		t.Errorf("explanation: %v", m["explanation"])
	}
}
