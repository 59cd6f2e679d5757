package http

import (
	"net/http"
	"strings"

	"github.com/clubdeck/clubdeck/internal/auth/autherr"
	"github.com/clubdeck/clubdeck/internal/auth/domain"
	"github.com/clubdeck/clubdeck/internal/auth/service"
	"github.com/clubdeck/clubdeck/pkg/httpx"
	"github.com/clubdeck/clubdeck/pkg/slogx"
)

// AuthHandler serves the credential flows: register, login, second factor,
// refresh, logout and token validation.
type AuthHandler struct {
	AuthService    *service.AuthService
	SessionService *service.SessionService
}

// loginResponse carries either a live session or an MFA gate, never both.
type loginResponse struct {
	User    domain.SanitizedUser         `json:"user"`
	Session *domain.SessionTokens        `json:"session,omitempty"`
	MFA     *domain.MFAChallengeResponse `json:"mfa,omitempty"`
}

// clientMeta captures the request origin for login history and session rows.
func clientMeta(r *http.Request) service.ClientMeta {
	return service.ClientMeta{
		IP:        httpx.IPKeyExtractor(r),
		UserAgent: r.UserAgent(),
	}
}

// bearerToken extracts the raw opaque token from the Authorization header.
func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, log, &req) {
		return
	}

	user, err := h.AuthService.Register(ctx, req.Email, req.Password, clientMeta(r))
	if err != nil {
		writeError(w, log, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req struct {
		Email      string `json:"email"`
		Password   string `json:"password"`
		RememberMe bool   `json:"remember_me"`
	}
	if !decodeJSON(w, r, log, &req) {
		return
	}

	res, err := h.AuthService.Login(ctx, req.Email, req.Password, req.RememberMe, clientMeta(r))
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

func (h *AuthHandler) VerifyMFA(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req struct {
		ChallengeID string `json:"challenge_id"`
		Method      string `json:"method"`
		Code        string `json:"code"`
	}
	if !decodeJSON(w, r, log, &req) {
		return
	}

	res, err := h.AuthService.VerifyMFA(ctx, req.ChallengeID, req.Method, req.Code, clientMeta(r))
	if err != nil {
		writeError(w, log, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, loginResponse{User: res.User, Session: res.Tokens})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if !decodeJSON(w, r, log, &req) {
		return
	}

	tokens, err := h.SessionService.Refresh(ctx, req.RefreshToken, clientMeta(r))
	if err != nil {
		writeError(w, log, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, tokens)
}

// Logout revokes the presented bearer session. Dead or unknown tokens still
// answer 204 so clients can always discard local state.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	token := bearerToken(r)
	if token == "" {
		writeError(w, log, autherr.Unauthorized("missing bearer token"))
		return
	}

	if err := h.AuthService.Logout(ctx, token); err != nil {
		writeError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Validate answers the validity verdict for an opaque session token. Invalid
// tokens are a 200 with valid=false; this is a query, not a gate.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, log, &req) {
		return
	}

	verdict, err := h.SessionService.Validate(ctx, req.Token)
	if err != nil {
		writeError(w, log, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, verdict)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	user, err := h.AuthService.GetUser(ctx, userID)
	if err != nil {
		writeError(w, log, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, user)
}
