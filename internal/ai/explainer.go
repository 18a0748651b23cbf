package ai

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nyashahama/crushbot-backend/internal/scoring"
)

// Source says where an explanation's text came from.
type Source string

const (
	SourceGenerated Source = "generated"
	SourceFallback  Source = "fallback"
)

// Explanation is the text shown next to a result. It is never persisted.
type Explanation struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
}

// Explainer turns a scored result into an explanation. It makes exactly one
// generator call per Explain and never surfaces a failure.
type Explainer struct {
	gen     Generator
	logger  *zap.Logger
	timeout time.Duration
}

// NewExplainer wires gen. timeout bounds a single generation attempt; zero
// leaves the caller's context in charge.
func NewExplainer(gen Generator, logger *zap.Logger, timeout time.Duration) *Explainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Explainer{gen: gen, logger: logger, timeout: timeout}
}

// Explain builds the prompt and makes one attempt. Any error (including an
// empty reply) is logged and masked by FallbackText(category).
func (e *Explainer) Explain(ctx context.Context, score int, category scoring.Category, kpis scoring.AnswerSet) Explanation {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	text, err := e.gen.Generate(ctx, BuildPrompt(score, category, kpis))
	if err == nil && text == "" {
		err = ErrNoText
	}
	if err != nil {
		e.logger.Warn("ai: explanation failed, serving fallback",
			zap.Error(err),
			zap.Int("score", score),
			zap.String("category", string(category)),
		)
		return Explanation{Text: FallbackText(category), Source: SourceFallback}
	}

	return Explanation{Text: text, Source: SourceGenerated}
}
