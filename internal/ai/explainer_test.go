package ai_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nyashahama/crushbot-backend/internal/ai"
	"github.com/nyashahama/crushbot-backend/internal/scoring"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

type stubGenerator struct {
	text    string
	err     error
	calls   int
	prompts []string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	return s.text, s.err
}

type blockingGenerator struct{}

func (blockingGenerator) Generate(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func sampleKPIs() scoring.AnswerSet {
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

// ─── Explainer ────────────────────────────────────────────────────────────────

func TestExplainer_Success_ReturnsGeneratedText(t *testing.T) {
	gen := &stubGenerator{text: "🔥 They are into you."}
	e := ai.NewExplainer(gen, zap.NewNop(), 0)

	got := e.Explain(context.Background(), 77, scoring.CategoryHigh, sampleKPIs())

	if got.Text != "🔥 They are into you." {
		t.Errorf("text: got %q", got.Text)
	}
	if got.Source != ai.SourceGenerated {
		t.Errorf("source: got %q, want generated", got.Source)
	}
	if gen.calls != 1 {
		t.Errorf("expected exactly 1 generator call, got %d", gen.calls)
	}
}

func TestExplainer_Failure_ReturnsExactFallbackAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	gen := &stubGenerator{err: errors.New("connection refused")}
	e := ai.NewExplainer(gen, zap.New(core), 0)

	got := e.Explain(context.Background(), 77, scoring.CategoryHigh, sampleKPIs())

	if got.Text != ai.FallbackHigh {
		t.Errorf("expected the high fallback text verbatim, got %q", got.Text)
	}
	if got.Source != ai.SourceFallback {
		t.Errorf("source: got %q, want fallback", got.Source)
	}
	if gen.calls != 1 {
		t.Errorf("failure must not be retried, got %d calls", gen.calls)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected 1 warning logged, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.ContextMap()["category"] != "high" {
		t.Errorf("log should carry category, got %v", entry.ContextMap())
	}
}

func TestExplainer_FallbackSelectedByCategory(t *testing.T) {
	tests := []struct {
		score    int
		category scoring.Category
		want     string
	}{
		{10, scoring.CategoryLow, ai.FallbackLow},
		{45, scoring.CategoryMixed, ai.FallbackMixed},
		{90, scoring.CategoryHigh, ai.FallbackHigh},
	}
	for _, tt := range tests {
		t.Run(string(tt.category), func(t *testing.T) {
			e := ai.NewExplainer(ai.NewDisabledGenerator(), zap.NewNop(), 0)
			got := e.Explain(context.Background(), tt.score, tt.category, scoring.AnswerSet{})
			if got.Text != tt.want {
				t.Errorf("got %q, want %q", got.Text, tt.want)
			}
		})
	}
}

func TestExplainer_EmptyTextIsFailure(t *testing.T) {
	gen := &stubGenerator{text: ""}
	e := ai.NewExplainer(gen, zap.NewNop(), 0)

	got := e.Explain(context.Background(), 50, scoring.CategoryMixed, sampleKPIs())
	if got.Source != ai.SourceFallback || got.Text != ai.FallbackMixed {
		t.Errorf("expected mixed fallback, got %+v", got)
	}
}

func TestExplainer_TimeoutFallsBack(t *testing.T) {
	e := ai.NewExplainer(blockingGenerator{}, zap.NewNop(), 20*time.Millisecond)

	done := make(chan ai.Explanation, 1)
	go func() {
		done <- e.Explain(context.Background(), 20, scoring.CategoryLow, sampleKPIs())
	}()

	select {
	case got := <-done:
		if got.Text != ai.FallbackLow {
			t.Errorf("expected low fallback, got %q", got.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Explain did not honour its timeout")
	}
}

func TestExplainer_PromptCarriesScoreAndCategory(t *testing.T) {
	gen := &stubGenerator{text: "ok"}
	e := ai.NewExplainer(gen, nil, 0)

	e.Explain(context.Background(), 77, scoring.CategoryHigh, sampleKPIs())

	if len(gen.prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(gen.prompts))
	}
	for _, want := range []string{"77%", "high"} {
		if !strings.Contains(gen.prompts[0], want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

// ─── NewGenerator ─────────────────────────────────────────────────────────────

func TestNewGenerator_EmptyKeyIsDisabled(t *testing.T) {
	gen, err := ai.NewGenerator(ai.ProviderAnthropic, ai.ClientConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := gen.Generate(context.Background(), "hi"); !errors.Is(err, ai.ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}

func TestNewGenerator_UnknownProvider(t *testing.T) {
	if _, err := ai.NewGenerator("gpt-9000", ai.ClientConfig{APIKey: "k"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
