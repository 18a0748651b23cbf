package api

import (
	"net/http"

	"github.com/nyashahama/crushbot-backend/internal/quiz"
	"github.com/nyashahama/crushbot-backend/internal/scoring"
)

// ─── POST /api/quiz/:sessionID/feedback ───────────────────────────────────────
//
// Records the visitor's "was this accurate?" vote. Persistence happens in the
// background; the response is 202 with the thank-you state whether or not the
// write later succeeds.

type feedbackRequest struct {
	Accurate *bool `json:"accurate"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Accurate == nil {
		respondErr(w, http.StatusBadRequest, "accurate is required")
		return
	}

	var (
		res scoring.Result
		st  quiz.State
	)
	ok := s.withSession(w, r, func(sess *quiz.Session) error {
		var err error
		res, err = sess.SubmitFeedback(*req.Accurate)
		if err != nil {
			return err
		}
		st = sess.State()
		return nil
	})
	if !ok {
		return
	}

	s.feedback.Record(r.Context(), res.Score, res.Category, *req.Accurate)

	respond(w, http.StatusAccepted, st)
}
