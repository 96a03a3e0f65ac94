package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// Profile is the normalized identity returned by a provider. It contains
// facts only; no user creation or linking decisions happen here.
type Profile struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// Provider is the capability contract every external identity provider
// implements: build the authorization redirect, exchange the callback
// code, and resolve the authenticated profile.
type Provider interface {
	// Name returns the provider identifier (e.g. "google").
	Name() string

	// AuthCodeURL returns the provider authorization URL carrying state.
	AuthCodeURL(state string) string

	// Exchange trades the authorization code for provider tokens.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// FetchProfile resolves the normalized profile for an exchanged token.
	FetchProfile(ctx context.Context, token *oauth2.Token) (*Profile, error)
}

// Registry holds configured providers keyed by name.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry registers the given providers. Names must be unique.
func NewRegistry(list ...Provider) *Registry {
	m := make(map[string]Provider, len(list))
	for _, p := range list {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the provider by name or an error if not registered.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unknown oauth provider: %s", name)
	}
	return p, nil
}
