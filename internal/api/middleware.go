package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nyashahama/crushbot-backend/internal/quiz"
)

// ─── CONTEXT KEYS ─────────────────────────────────────────────────────────────

type contextKey string

const (
	ctxKeySessionID    contextKey = "session_id"
	ctxKeySessionToken contextKey = "session_token"
)

const sessionTokenHeader = "X-Session-Token"

// ─── SESSION TOKEN AUTH ───────────────────────────────────────────────────────

// requireSessionToken is chi middleware that checks the X-Session-Token header
// is present and the URL carries a well-formed session ID.
//
// The token itself is verified against the registry when the handler touches
// the session (see withSession), so a stale token and an unknown session are
// distinguished there.
func (s *Server) requireSessionToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get(sessionTokenHeader))
		if token == "" {
			respondErr(w, http.StatusUnauthorized, "missing X-Session-Token header")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "sessionID"))
		if err != nil {
			respondErr(w, http.StatusBadRequest, "invalid session_id")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeySessionID, id)
		ctx = context.WithValue(ctx, ctxKeySessionToken, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withSession runs fn against the caller's session under its lock. On error it
// writes the mapped status and returns false; callers return immediately.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(*quiz.Session) error) bool {
	id, _ := r.Context().Value(ctxKeySessionID).(uuid.UUID)
	token, _ := r.Context().Value(ctxKeySessionToken).(string)

	if err := s.sessions.With(id, token, fn); err != nil {
		s.respondSessionErr(w, r, err)
		return false
	}
	return true
}

// respondSessionErr maps quiz errors onto HTTP statuses.
func (s *Server) respondSessionErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, quiz.ErrSessionNotFound):
		respondErr(w, http.StatusNotFound, "session not found")
	case errors.Is(err, quiz.ErrTokenMismatch):
		respondErr(w, http.StatusForbidden, "token does not match session")
	case errors.Is(err, quiz.ErrInvalidAnswer):
		respondErr(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, quiz.ErrWrongStage),
		errors.Is(err, quiz.ErrQuestionOutOfOrder),
		errors.Is(err, quiz.ErrNotSlider):
		respondErr(w, http.StatusConflict, err.Error())
	default:
		s.respondInternalErr(w, r, err)
	}
}

// ─── CORS ─────────────────────────────────────────────────────────────────────

// corsMiddleware handles preflight OPTIONS requests and sets CORS headers.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		allowed := "*"
		if s.cfg.Env != "production" {
			allowed = origin
		}

		w.Header().Set("Access-Control-Allow-Origin", allowed)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Session-Token, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ─── LOGGER MIDDLEWARE ────────────────────────────────────────────────────────

// loggerMiddleware logs each request with method, path, status, and duration.
func (s *Server) loggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.logger.Info("http",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				logField(r),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// ─── RESPONSE HELPERS ─────────────────────────────────────────────────────────

// respond writes a JSON body with the given status code.
func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

// respondErr writes a standard JSON error envelope.
func respondErr(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}

// respondInternalErr logs an unexpected error and returns a 500 to the client
// without leaking internal details.
func (s *Server) respondInternalErr(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("internal error",
		zap.Error(err),
		zap.String("path", r.URL.Path),
		logField(r),
	)
	respondErr(w, http.StatusInternalServerError, "internal server error")
}

// ─── REQUEST PARSING HELPERS ─────────────────────────────────────────────────

// decode JSON-decodes r.Body into dst. Returns false and writes 400 if the
// body is missing, malformed, or too large. Callers should return immediately
// on false.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB max
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondErr(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// logField returns the request ID as a zap field for correlation.
func logField(r *http.Request) zap.Field {
	return zap.String("request_id", middleware.GetReqID(r.Context()))
}
