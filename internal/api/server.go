// Package api implements the HTTP layer for CrushBot.
// Handlers are methods on *Server. Each handler file is responsible for one
// resource group and only imports the dependencies it actually uses.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/nyashahama/crushbot-backend/internal/analysis"
	"github.com/nyashahama/crushbot-backend/internal/feedback"
	"github.com/nyashahama/crushbot-backend/internal/quiz"
	"github.com/nyashahama/crushbot-backend/internal/scoring"
)

// Config holds values read from environment variables at startup.
type Config struct {
	// Env is "production", "staging", or "development".
	Env string

	// RequestTimeout bounds every request, including the analysis call made
	// by the last answer. Zero means 30s.
	RequestTimeout time.Duration
}

// Analyzer is satisfied by *analysis.Analyzer.
type Analyzer interface {
	Weights() scoring.WeightTable
	Score(kpis scoring.AnswerSet) scoring.Result
	Analyze(ctx context.Context, kpis scoring.AnswerSet) analysis.Outcome
}

// FeedbackRecorder is satisfied by *feedback.Recorder.
type FeedbackRecorder interface {
	Record(ctx context.Context, score int, category scoring.Category, accurate bool) feedback.Record
}

// Server holds all shared dependencies. Each handler file attaches methods to
// this type and uses only the fields it needs.
type Server struct {
	// sessions owns every live quiz session and its token.
	sessions *quiz.Registry

	// analyzer scores a frozen answer set and fetches the explanation.
	analyzer Analyzer

	// feedback hands votes to the background writer. Never blocks.
	feedback FeedbackRecorder

	cfg    Config
	logger *zap.Logger
}

// NewServer constructs the Server and wires the chi router. The returned
// http.Handler is ready to pass to http.Server.
func NewServer(
	sessions *quiz.Registry,
	analyzer Analyzer,
	recorder FeedbackRecorder,
	cfg Config,
	logger *zap.Logger,
) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	s := &Server{
		sessions: sessions,
		analyzer: analyzer,
		feedback: recorder,
		cfg:      cfg,
		logger:   logger,
	}

	return s.routes()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	// ── Global middleware ─────────────────────────────────────────────────────
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggerMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)
	r.Use(middleware.Timeout(s.cfg.RequestTimeout))

	// ── Health ────────────────────────────────────────────────────────────────
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// ── API ───────────────────────────────────────────────────────────────────
	r.Route("/api", func(r chi.Router) {
		r.Get("/questions", s.handleListQuestions)

		// Stateless scoring, no session involved.
		r.Post("/score", s.handleScore)
		r.Get("/weights", s.handleWeights)

		// Quiz sessions: anonymous creation.
		r.Post("/quiz", s.handleCreateQuiz)

		// Session-scoped routes require the X-Session-Token header.
		r.Route("/quiz/{sessionID}", func(r chi.Router) {
			r.Use(s.requireSessionToken)
			r.Get("/", s.handleGetQuiz)
			r.Post("/start", s.handleStartQuiz)
			r.Put("/slider", s.handleSetSlider)
			r.Post("/answers", s.handleAnswer)
			r.Post("/feedback", s.handleFeedback)
			r.Post("/reset", s.handleResetQuiz)
		})
	})

	return r
}
