package http

import (
	"net/http"

	"github.com/clubdeck/clubdeck/internal/auth/domain"
	"github.com/clubdeck/clubdeck/internal/auth/service"
	"github.com/clubdeck/clubdeck/pkg/httpx"
	"github.com/clubdeck/clubdeck/pkg/slogx"
)

// SessionsHandler serves self-service session management.
type SessionsHandler struct {
	SessionService *service.SessionService
}

func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}
	currentID := httpx.SessionIDFromContext(ctx)

	sessions, err := h.SessionService.ListSessions(ctx, userID)
	if err != nil {
		writeError(w, log, err)
		return
	}

	out := make([]domain.SanitizedSession, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Sanitize(currentID))
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (h *SessionsHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	if err := h.SessionService.InvalidateByID(ctx, userID, r.PathValue("id")); err != nil {
		writeError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RevokeOthers revokes every session except the one making the request.
func (h *SessionsHandler) RevokeOthers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}
	currentID := httpx.SessionIDFromContext(ctx)

	if err := h.SessionService.InvalidateAll(ctx, userID, currentID); err != nil {
		writeError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
