package http

import (
	"net/http"

	"github.com/clubdeck/clubdeck/internal/auth/service"
	"github.com/clubdeck/clubdeck/pkg/httpx"
	"github.com/clubdeck/clubdeck/pkg/slogx"
)

// PasswordHandler serves password reset, password change and email
// verification.
type PasswordHandler struct {
	PasswordService *service.PasswordService
}

// RequestReset always answers 202, whether or not the email is known, so the
// endpoint cannot be used to probe for accounts.
func (h *PasswordHandler) RequestReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, log, &req) {
		return
	}

	if err := h.PasswordService.RequestReset(ctx, req.Email); err != nil {
		writeError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

func (h *PasswordHandler) CompleteReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if !decodeJSON(w, r, log, &req) {
		return
	}

	if err := h.PasswordService.CompleteReset(ctx, req.Token, req.NewPassword); err != nil {
		writeError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PasswordHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}
	sessionID := httpx.SessionIDFromContext(ctx)

	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decodeJSON(w, r, log, &req) {
		return
	}

	if err := h.PasswordService.ChangePassword(ctx, userID, sessionID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PasswordHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, log, &req) {
		return
	}

	if err := h.PasswordService.VerifyEmail(ctx, req.Token); err != nil {
		writeError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *PasswordHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	if err := h.PasswordService.SendVerificationEmail(ctx, userID); err != nil {
		writeError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
