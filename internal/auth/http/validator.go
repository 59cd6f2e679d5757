package http

import (
	"context"
	"fmt"

	"github.com/clubdeck/clubdeck/internal/auth/service"
)

// sessionValidator bridges the session service into the httpx authn
// middleware. The service reports invalid tokens as verdicts; the middleware
// wants an error, so negative verdicts are folded into one here.
type sessionValidator struct {
	Sessions *service.SessionService
}

func (v *sessionValidator) ValidateToken(ctx context.Context, token string) (string, string, error) {
	verdict, err := v.Sessions.Validate(ctx, token)
	if err != nil {
		return "", "", err
	}
	if !verdict.Valid {
		return "", "", fmt.Errorf("session invalid: %s", verdict.Reason)
	}
	return verdict.UserID, verdict.SessionID, nil
}
