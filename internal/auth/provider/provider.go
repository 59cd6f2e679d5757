// Package provider adapts external credential authorities (and the local
// password table) behind one interface so the orchestrator never branches on
// provider-specific details. The set of providers is fixed at startup.
package provider

import (
	"context"

	"github.com/clubdeck/clubdeck/internal/auth/autherr"
	"github.com/clubdeck/clubdeck/internal/auth/domain"
)

// Provider is one configured credential authority.
type Provider interface {
	// Name returns the stable provider identifier, e.g. "local" or "google".
	Name() string
}

// PasswordAuthenticator is implemented by providers that hold credentials
// directly (the local provider).
type PasswordAuthenticator interface {
	Provider

	// Authenticate verifies an email/password pair and returns the matching
	// identity. Unknown email and wrong password both return the same
	// unauthorized error so callers cannot enumerate accounts.
	Authenticate(ctx context.Context, email, password string) (domain.Identity, error)
}

// CodeExchanger is implemented by SSO providers. It exchanges an
// authorization code for the provider-asserted subject and profile.
type CodeExchanger interface {
	Provider

	Exchange(ctx context.Context, code, redirectURI string) (subject string, profile domain.Profile, err error)
}

// Registry is the closed set of configured providers.
type Registry struct {
	providers map[string]Provider
}

func NewRegistry(ps ...Provider) *Registry {
	m := make(map[string]Provider, len(ps))
	for _, p := range ps {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the named provider or a validation error for unknown names.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, autherr.Validation("provider", "unknown provider")
	}
	return p, nil
}

// Exchanger returns the named provider if it supports code exchange.
func (r *Registry) Exchanger(name string) (CodeExchanger, error) {
	p, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	ex, ok := p.(CodeExchanger)
	if !ok {
		return nil, autherr.Validation("provider", "provider does not support SSO")
	}
	return ex, nil
}

// Names lists the configured provider names.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	return out
}
