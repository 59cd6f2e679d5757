package http

import (
	"net/http"

	"github.com/clubdeck/clubdeck/internal/auth/domain"
	"github.com/clubdeck/clubdeck/internal/auth/service"
	"github.com/clubdeck/clubdeck/pkg/httpx"
	"github.com/clubdeck/clubdeck/pkg/slogx"
)

// IdentitiesHandler serves the user's linked credential listing and removal.
// Linking new identities goes through the SSO begin/callback flow.
type IdentitiesHandler struct {
	LinkingService *service.LinkingService
}

func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	identities, err := h.LinkingService.ListIdentities(ctx, userID)
	if err != nil {
		writeError(w, log, err)
		return
	}

	out := make([]domain.SanitizedIdentity, 0, len(identities))
	for _, identity := range identities {
		out = append(out, identity.Sanitize())
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"identities": out})
}

func (h *IdentitiesHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	if err := h.LinkingService.UnlinkIdentity(ctx, userID, r.PathValue("id")); err != nil {
		writeError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
