package api

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/nyashahama/crushbot-backend/internal/quiz"
	"github.com/nyashahama/crushbot-backend/internal/scoring"
)

// ─── PUT /api/quiz/:sessionID/slider ──────────────────────────────────────────
//
// Moves the working value of the current slider question without submitting
// it. The browser sends this as the thumb moves; the last value wins.

type setSliderRequest struct {
	Value *float64 `json:"value"`
}

func (s *Server) handleSetSlider(w http.ResponseWriter, r *http.Request) {
	var req setSliderRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Value == nil {
		respondErr(w, http.StatusBadRequest, "value is required")
		return
	}

	s.transition(w, r, func(sess *quiz.Session) error {
		return sess.SetSlider(*req.Value)
	})
}

// ─── POST /api/quiz/:sessionID/answers ────────────────────────────────────────
//
// Answers the current question. Exactly one of option_index or value may be
// set; with neither, the current slider is submitted at its working value.
//
// The last answer freezes the answer set and runs the analysis before
// responding. The analysis runs outside the session lock so a concurrent
// GET observes the loading stage.

type answerRequest struct {
	QuestionIndex *int     `json:"question_index"`
	OptionIndex   *int     `json:"option_index,omitempty"`
	Value         *float64 `json:"value,omitempty"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decode(w, r, &req) {
		return
	}
	if req.QuestionIndex == nil {
		respondErr(w, http.StatusBadRequest, "question_index is required")
		return
	}
	if req.OptionIndex != nil && req.Value != nil {
		respondErr(w, http.StatusBadRequest, "set option_index or value, not both")
		return
	}
	i := *req.QuestionIndex

	var (
		frozen scoring.AnswerSet
		done   bool
		st     quiz.State
	)
	ok := s.withSession(w, r, func(sess *quiz.Session) error {
		var err error
		switch {
		case req.OptionIndex != nil:
			frozen, done, err = sess.AnswerOption(i, *req.OptionIndex)
		case req.Value != nil:
			frozen, done, err = sess.Answer(i, *req.Value)
		default:
			frozen, done, err = sess.SubmitSlider(i)
		}
		if err != nil {
			return err
		}
		st = sess.State()
		return nil
	})
	if !ok {
		return
	}

	if !done {
		respond(w, http.StatusOK, st)
		return
	}

	// The session is in StageLoading and accepts nothing but Complete, so the
	// request context is detached: a client that disconnects mid-analysis
	// still leaves a finished result behind. A slow generator runs into the
	// request timeout and the fallback text is served.
	actx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.cfg.RequestTimeout)
	defer cancel()
	outcome := s.analyzer.Analyze(actx, frozen)

	ok = s.withSession(w, r, func(sess *quiz.Session) error {
		if err := sess.Complete(outcome.Result, outcome.Explanation); err != nil {
			return fmt.Errorf("complete: %w", err)
		}
		st = sess.State()
		return nil
	})
	if !ok {
		s.logger.Warn("quiz: result discarded",
			zap.Int("score", outcome.Score),
			logField(r),
		)
		return
	}

	respond(w, http.StatusOK, st)
}
