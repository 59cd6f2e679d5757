package http

import (
	"net/http"

	"github.com/clubdeck/clubdeck/internal/auth/autherr"
	"github.com/clubdeck/clubdeck/internal/auth/service"
	"github.com/clubdeck/clubdeck/pkg/httpx"
	"github.com/clubdeck/clubdeck/pkg/slogx"
)

// SSOHandler serves the browser SSO round trip and identity linking kickoff.
type SSOHandler struct {
	AuthService *service.AuthService
}

type ssoBeginResponse struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

// Begin mints the signed state and answers the provider redirect URL. The
// client is expected to send the browser there itself; answering JSON instead
// of a 302 keeps the endpoint usable from both SPAs and native apps.
func (h *SSOHandler) Begin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	providerName := r.PathValue("provider")
	redirectURI := r.URL.Query().Get("redirect_uri")
	if redirectURI == "" {
		writeError(w, log, autherr.Validation("redirect_uri", "required"))
		return
	}

	res, err := h.AuthService.SSOBegin(ctx, providerName, redirectURI, "")
	if err != nil {
		writeError(w, log, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, ssoBeginResponse{AuthURL: res.AuthURL, State: res.State})
}

// Callback finishes the SSO round trip. Linking callbacks answer the profile
// without a session; sign-in callbacks answer a session or an MFA gate.
func (h *SSOHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	providerName := r.PathValue("provider")
	q := r.URL.Query()
	state := q.Get("state")
	code := q.Get("code")
	if state == "" || code == "" {
		writeError(w, log, autherr.Validation("state", "state and code are required"))
		return
	}
	rememberMe := q.Get("remember_me") == "true"

	res, err := h.AuthService.SSOCallback(ctx, providerName, state, code, rememberMe, clientMeta(r))
	if err != nil {
		writeError(w, log, err)
		return
	}

	httpx.NoCache(w)
	if res.Challenge != nil {
		httpx.WriteJSON(w, http.StatusAccepted, loginResponse{User: res.User, MFA: res.Challenge})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginResponse{User: res.User, Session: res.Tokens})
}

// BeginLink starts an SSO round trip that will attach the provider identity
// to the signed-in user instead of signing anyone in.
func (h *SSOHandler) BeginLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	providerName := r.PathValue("provider")

	var req struct {
		RedirectURI string `json:"redirect_uri"`
	}
	if !decodeJSON(w, r, log, &req) {
		return
	}
	if req.RedirectURI == "" {
		writeError(w, log, autherr.Validation("redirect_uri", "required"))
		return
	}

	res, err := h.AuthService.SSOBegin(ctx, providerName, req.RedirectURI, userID)
	if err != nil {
		writeError(w, log, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, ssoBeginResponse{AuthURL: res.AuthURL, State: res.State})
}
