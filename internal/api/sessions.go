package api

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/nyashahama/crushbot-backend/internal/quiz"
)

// ─── GET /api/questions ───────────────────────────────────────────────────────

// handleListQuestions returns the catalog every session runs through.
func (s *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, s.sessions.Catalog())
}

// ─── POST /api/quiz ───────────────────────────────────────────────────────────

type createQuizResponse struct {
	SessionID string     `json:"session_id"`
	Token     string     `json:"token"`
	State     quiz.State `json:"state"`
}

// handleCreateQuiz creates an anonymous session on the intro screen.
//
// The token is returned once and must be sent as X-Session-Token on every
// session-scoped request.
func (s *Server) handleCreateQuiz(w http.ResponseWriter, r *http.Request) {
	id, token, st, err := s.sessions.Create()
	if err != nil {
		s.respondInternalErr(w, r, fmt.Errorf("create session: %w", err))
		return
	}

	s.logger.Debug("quiz: session created", zap.String("session_id", id.String()), logField(r))

	respond(w, http.StatusCreated, createQuizResponse{
		SessionID: id.String(),
		Token:     token,
		State:     st,
	})
}

// ─── GET /api/quiz/:sessionID ─────────────────────────────────────────────────

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	var st quiz.State
	ok := s.withSession(w, r, func(sess *quiz.Session) error {
		st = sess.State()
		return nil
	})
	if ok {
		respond(w, http.StatusOK, st)
	}
}

// ─── POST /api/quiz/:sessionID/start ──────────────────────────────────────────

func (s *Server) handleStartQuiz(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, (*quiz.Session).Start)
}

// ─── POST /api/quiz/:sessionID/reset ──────────────────────────────────────────

// handleResetQuiz discards answers, result and feedback and returns the
// session to the intro screen. Only legal from the result or thank-you screen.
func (s *Server) handleResetQuiz(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, (*quiz.Session).Reset)
}

// transition applies a parameterless event and responds with the new state.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, event func(*quiz.Session) error) {
	var st quiz.State
	ok := s.withSession(w, r, func(sess *quiz.Session) error {
		if err := event(sess); err != nil {
			return err
		}
		st = sess.State()
		return nil
	})
	if ok {
		respond(w, http.StatusOK, st)
	}
}
