package http

import (
	"net/http"

	"github.com/clubdeck/clubdeck/internal/auth/service"
	"github.com/clubdeck/clubdeck/pkg/httpx"
	"github.com/clubdeck/clubdeck/pkg/slogx"
)

// MFAHandler serves TOTP enrollment and lifecycle for authenticated users.
// Challenge verification at login time lives on AuthHandler because it runs
// before a session exists.
type MFAHandler struct {
	MFAService *service.MFAService
}

func (h *MFAHandler) BeginEnrollment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	enrollment, err := h.MFAService.BeginTOTPEnrollment(ctx, userID)
	if err != nil {
		writeError(w, log, err)
		return
	}

	// The secret is shown exactly once; make sure nothing caches it.
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, enrollment)
}

func (h *MFAHandler) CompleteEnrollment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, log, &req) {
		return
	}

	codes, err := h.MFAService.CompleteTOTPEnrollment(ctx, userID, req.Code)
	if err != nil {
		writeError(w, log, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"backup_codes": codes})
}

func (h *MFAHandler) RegenerateBackupCodes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	codes, err := h.MFAService.RegenerateBackupCodes(ctx, userID)
	if err != nil {
		writeError(w, log, err)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"backup_codes": codes})
}

// Disable turns MFA off. It demands a fresh TOTP or backup code so a hijacked
// session alone cannot weaken the account.
func (h *MFAHandler) Disable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, ok := requireUserID(w, r, log)
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, log, &req) {
		return
	}

	if err := h.MFAService.DisableMFA(ctx, userID, req.Code); err != nil {
		writeError(w, log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
