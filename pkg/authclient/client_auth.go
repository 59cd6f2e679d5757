package authclient

import (
	"context"
	"net/http"
)

// Register creates a user with a local password identity. The account still
// needs email verification before it can log in.
func (c *Client) Register(ctx context.Context, email, password string) (*User, error) {
	var user User
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/register", "",
		map[string]string{"email": email, "password": password},
		&user, http.StatusCreated)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Login runs the password flow. When the account has MFA enabled the response
// carries a challenge instead of tokens; complete it with VerifyMFA.
func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (*LoginResponse, error) {
	payload := map[string]any{
		"email":       email,
		"password":    password,
		"remember_me": rememberMe,
	}

	// 202 is the MFA gate, not a failure.
	var out LoginResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/login", "", payload, &out,
		http.StatusOK, http.StatusAccepted)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyMFA completes a challenged login.
func (c *Client) VerifyMFA(ctx context.Context, challengeID, method, code string) (*LoginResponse, error) {
	var out LoginResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/mfa/verify", "",
		map[string]string{"challenge_id": challengeID, "method": method, "code": code},
		&out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Refresh rotates a session. The presented refresh token is spent whether or
// not the caller stores the new pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*SessionTokens, error) {
	var out SessionTokens
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/refresh", "",
		map[string]string{"refresh_token": refreshToken},
		&out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout revokes the session behind the token. Unknown tokens succeed.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.doJSON(ctx, http.MethodPost, "/v1/auth/logout", token, nil, nil, http.StatusNoContent)
}

// ValidateSession asks for the validity verdict on an opaque session token.
// An invalid token is a negative verdict, not an error.
func (c *Client) ValidateSession(ctx context.Context, token string) (*SessionValidation, error) {
	var out SessionValidation
	err := c.doJSON(ctx, http.MethodPost, "/v1/auth/validate", "",
		map[string]string{"token": token}, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the profile behind a session token.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var out User
	err := c.doJSON(ctx, http.MethodGet, "/v1/auth/me", token, nil, &out, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
