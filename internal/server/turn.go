package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sarvesh-official/lumo/internal/chat"
	"github.com/sarvesh-official/lumo/internal/identity"
	"github.com/sarvesh-official/lumo/internal/logging"
	"github.com/sarvesh-official/lumo/pkg/types"
)

// turn handles POST /session/{sessionID}/turn. The response is an SSE
// stream of turn events; the assistant message is appended to the session
// when the turn finishes.
func (s *Server) turn(w http.ResponseWriter, r *http.Request) {
	userID, _ := identity.UserFrom(r.Context())
	sessionID := chi.URLParam(r, "sessionID")

	var req struct {
		Messages []types.Message `json:"messages"`
	}
	// An empty messages list is valid: the turn then responds to the
	// session's persisted transcript, e.g. right after a seeded create.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}

	// Resolve session and provider errors to proper status codes before any
	// byte of the stream is flushed.
	if _, err := s.sessions.Get(r.Context(), userID, sessionID); err != nil {
		writeSessionError(w, err)
		return
	}
	if err := s.orch.Ready(); err != nil {
		logging.Error().Err(err).Msg("provider unavailable")
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, "model provider unavailable")
		return
	}

	setSSEHeaders(w)
	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	sse.flusher.Flush()

	err = s.orch.Turn(r.Context(), chat.TurnRequest{
		OwnerID:   userID,
		SessionID: sessionID,
		Messages:  req.Messages,
		Sink: func(ev chat.TurnEvent) {
			if werr := sse.writeEvent(string(ev.Type), ev); werr != nil {
				logging.Debug().Err(werr).Msg("turn stream write failed")
			}
		},
	})
	if err != nil {
		// The status line is long gone; all we can do is tag the stream.
		logging.Error().Err(err).Str("session", sessionID).Msg("turn aborted")
		_ = sse.writeEvent("error", map[string]string{"message": "turn aborted"})
	}
}
