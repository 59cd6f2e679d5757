package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/clubdeck/clubdeck/internal/auth/autherr"
	"github.com/clubdeck/clubdeck/internal/auth/domain"
)

const (
	exchangeAttempts = 3
	backoffBase      = 250 * time.Millisecond
)

// SSOConfig describes one OAuth2/OIDC authority.
type SSOConfig struct {
	Name         string // "google", "microsoft"
	ClientID     string
	ClientSecret string
	AuthURL      string // authorization endpoint, for building redirect URLs
	TokenURL     string // code exchange endpoint
	UserInfoURL  string // OIDC userinfo endpoint
	Scopes       []string
	Timeout      time.Duration // per-attempt request timeout
}

// SSO exchanges authorization codes against a single configured authority.
// Transport failures and 5xx answers are retried with exponential backoff, at
// most three attempts; a definitive provider answer (2xx or 4xx) is never
// retried.
type SSO struct {
	cfg    SSOConfig
	client *http.Client
}

func NewSSO(cfg SSOConfig) *SSO {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SSO{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (p *SSO) Name() string { return p.cfg.Name }

// AuthCodeURL builds the authorization redirect URL for the provider.
func (p *SSO) AuthCodeURL(state, redirectURI string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", p.cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("scope", strings.Join(p.cfg.Scopes, " "))
	q.Set("state", state)
	return p.cfg.AuthURL + "?" + q.Encode()
}

func (p *SSO) Exchange(ctx context.Context, code, redirectURI string) (string, domain.Profile, error) {
	token, err := p.exchangeCode(ctx, code, redirectURI)
	if err != nil {
		return "", domain.Profile{}, err
	}
	return p.fetchProfile(ctx, token)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	IDToken     string `json:"id_token"`
}

type userInfoResponse struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (p *SSO) exchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)
	body := form.Encode()

	var tok tokenResponse
	err := p.withRetries(ctx, func() (retryable bool, err error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(body))
		if err != nil {
			return false, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := p.client.Do(req)
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return true, fmt.Errorf("token endpoint returned %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			// Definitive rejection: bad or replayed code.
			return false, autherr.Unauthorized("authorization code rejected")
		}
		return false, json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&tok)
	})
	if err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", autherr.External("token endpoint returned no access token", nil)
	}
	return tok.AccessToken, nil
}

func (p *SSO) fetchProfile(ctx context.Context, accessToken string) (string, domain.Profile, error) {
	var info userInfoResponse
	err := p.withRetries(ctx, func() (retryable bool, err error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.UserInfoURL, nil)
		if err != nil {
			return false, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)

		resp, err := p.client.Do(req)
		if err != nil {
			return true, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			return true, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return false, autherr.Unauthorized("userinfo request rejected")
		}
		return false, json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info)
	})
	if err != nil {
		return "", domain.Profile{}, err
	}
	if info.Sub == "" {
		return "", domain.Profile{}, autherr.External("userinfo returned no subject", nil)
	}

	return info.Sub, domain.Profile{
		Email:         strings.ToLower(info.Email),
		EmailVerified: info.EmailVerified,
		DisplayName:   info.Name,
		AvatarURL:     info.Picture,
	}, nil
}

// withRetries runs fn up to exchangeAttempts times, backing off exponentially
// between retryable failures. Non-retryable errors are returned as-is;
// exhausting the budget wraps the last error as an external-service failure.
func (p *SSO) withRetries(ctx context.Context, fn func() (retryable bool, err error)) error {
	var lastErr error
	for attempt := 0; attempt < exchangeAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return autherr.External(p.cfg.Name+" unreachable", ctx.Err())
			case <-time.After(backoffBase << (attempt - 1)):
			}
		}

		retryable, err := fn()
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}
	return autherr.External(p.cfg.Name+" unreachable", lastErr)
}
