// Package analysis runs the result pipeline shared by every transport:
// score, classify, then explain.
package analysis

import (
	"context"

	"go.uber.org/zap"

	"github.com/nyashahama/crushbot-backend/internal/ai"
	"github.com/nyashahama/crushbot-backend/internal/scoring"
)

// Explainer is satisfied by *ai.Explainer.
type Explainer interface {
	Explain(ctx context.Context, score int, category scoring.Category, kpis scoring.AnswerSet) ai.Explanation
}

// Outcome is everything the result screen shows.
type Outcome struct {
	scoring.Result
	Explanation ai.Explanation `json:"explanation"`
}

// Analyzer binds a weight table to an explainer.
type Analyzer struct {
	weights   scoring.WeightTable
	explainer Explainer
	logger    *zap.Logger
}

// New returns an Analyzer. weights must already have passed Validate.
func New(weights scoring.WeightTable, explainer Explainer, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{weights: weights, explainer: explainer, logger: logger}
}

// Weights returns the table every score is computed with.
func (a *Analyzer) Weights() scoring.WeightTable {
	return a.weights
}

// Score is the pure half of the pipeline: no collaborator is called.
func (a *Analyzer) Score(kpis scoring.AnswerSet) scoring.Result {
	return scoring.Evaluate(kpis, a.weights)
}

// Analyze scores kpis and requests the explanation. kpis must be a frozen
// set; the explainer only reads it. Analyze never fails: a generator failure
// arrives here already masked by fallback text.
func (a *Analyzer) Analyze(ctx context.Context, kpis scoring.AnswerSet) Outcome {
	res := a.Score(kpis)
	exp := a.explainer.Explain(ctx, res.Score, res.Category, kpis)

	a.logger.Info("analysis: result ready",
		zap.Int("score", res.Score),
		zap.String("category", string(res.Category)),
		zap.String("source", string(exp.Source)),
	)
	return Outcome{Result: res, Explanation: exp}
}
