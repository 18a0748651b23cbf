package api

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/nyashahama/crushbot-backend/internal/scoring"
)

// ─── POST /api/score ──────────────────────────────────────────────────────────
//
// Stateless scoring for callers that collect answers themselves. Missing KPIs
// count as zero; unknown names are ignored and logged.

type scoreRequest struct {
	KPIs map[string]float64 `json:"kpis"`
}

type scoreResponse struct {
	Score    int              `json:"score"`
	Category scoring.Category `json:"category"`
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !decode(w, r, &req) {
		return
	}

	if unknown := scoring.UnknownKPIs(req.KPIs); len(unknown) > 0 {
		s.logger.Warn("score: ignoring unknown kpis", zap.Strings("kpis", unknown))
	}

	res := s.analyzer.Score(scoring.AnswerSetFromMap(req.KPIs))
	respond(w, http.StatusOK, scoreResponse{Score: res.Score, Category: res.Category})
}

// ─── GET /api/weights ─────────────────────────────────────────────────────────
//
// The live weight table keyed by KPI wire name, so clients can show how each
// answer contributes.

func (s *Server) handleWeights(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.analyzer.Weights())
}
