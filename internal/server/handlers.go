package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/sarvesh-official/lumo/internal/chat"
	"github.com/sarvesh-official/lumo/internal/identity"
	"github.com/sarvesh-official/lumo/internal/logging"
	"github.com/sarvesh-official/lumo/internal/tool"
	"github.com/sarvesh-official/lumo/pkg/types"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createSession handles POST /session.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserFrom(r.Context())

	var req struct {
		Title string `json:"title"`
	}
	// An empty body means a default-titled session.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	sess, err := s.sessions.Create(r.Context(), userID, req.Title)
	if err != nil {
		logging.Error().Err(err).Msg("session creation failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": sess.ID})
}

// resolveSession handles POST /session/resolve.
func (s *Server) resolveSession(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserFrom(r.Context())

	var req struct {
		SessionID string `json:"sessionId"`
		Title     string `json:"title"`
		SeedText  string `json:"seedText"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	id, created, err := s.sessions.Resolve(r.Context(), userID, chat.ResolveRequest{
		SessionID: req.SessionID,
		Title:     req.Title,
		SeedText:  req.SeedText,
	})
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": id,
		"existed":   !created,
	})
}

// getSession handles GET /session/{sessionID}.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserFrom(r.Context())

	sess, err := s.sessions.Get(r.Context(), userID, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeSessionError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": sess.Messages,
		"title":    sess.Title,
	})
}

// generateTitle handles POST /title.
func (s *Server) generateTitle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	title, err := s.titles.Synthesize(r.Context(), req.Message)
	if err != nil {
		logging.Error().Err(err).Msg("title generation failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to generate title")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"title": title})
}

// listSessions handles GET /sessions.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserFrom(r.Context())

	sessions, err := s.sessions.List(r.Context(), userID)
	if err != nil {
		logging.Error().Err(err).Msg("session listing failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []types.SessionSummary{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// getToolRecords handles GET /tool-records/{sessionID}. The cards of every
// set recorded for the session come back as one flattened list.
func (s *Server) getToolRecords(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserFrom(r.Context())

	sessionID := chi.URLParam(r, "sessionID")
	if _, err := ulid.ParseStrict(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid session id format")
		return
	}

	cards, err := tool.CardsForSession(r.Context(), s.store, userID, sessionID)
	if err != nil {
		logging.Error().Err(err).Str("session", sessionID).Msg("flashcard lookup failed")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "failed to load flashcards")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"cards": cards})
}
