package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/clubdeck/clubdeck/internal/auth/autherr"
	"github.com/clubdeck/clubdeck/pkg/httpx"
)

// errorResponse is the wire shape for every error this service returns.
type errorResponse struct {
	Error   string `json:"error"`           // stable machine-readable code
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // set for validation errors
}

// writeError renders a service error. Taxonomy errors map to their HTTP
// status; anything else is a 500 with the detail kept out of the response.
func writeError(w http.ResponseWriter, log *slog.Logger, err error) {
	var ae *autherr.Error
	if errors.As(err, &ae) {
		httpx.WriteJSON(w, ae.HTTPStatus(), errorResponse{
			Error:   string(ae.Code),
			Message: ae.Message,
			Field:   ae.Field,
		})
		return
	}

	log.Error("internal error", "err", err)
	httpx.WriteJSON(w, http.StatusInternalServerError, errorResponse{
		Error:   "internal",
		Message: "internal server error",
	})
}

// decodeJSON parses the request body into dst, answering a validation error
// itself when the body is malformed. Returns false when the caller should
// stop.
func decodeJSON(w http.ResponseWriter, r *http.Request, log *slog.Logger, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, log, autherr.Validation("body", "invalid JSON body"))
		return false
	}
	return true
}

// requireUserID pulls the authenticated user id injected by the authn
// middleware.
func requireUserID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (string, bool) {
	userID := httpx.UserIDFromContext(r.Context())
	if userID == "" {
		writeError(w, log, autherr.Unauthorized("authentication required"))
		return "", false
	}
	return userID, true
}
