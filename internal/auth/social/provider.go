// Package social exchanges provider authorization codes for a minimal profile.
package social

import (
	"context"
	"strings"

	"golang.org/x/oauth2"

	"github.com/spec-kit/facezhuk/internal/auth"
)

// Provider names a supported social login provider.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
)

// Profile is the subset of provider account data the login flow needs.
type Profile struct {
	Email string
	Name  string
}

// Adapter talks to one provider.
type Adapter interface {
	// Exchange trades an authorization code for a provider access token.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	// Profile fetches the account profile the token grants access to.
	Profile(ctx context.Context, token *oauth2.Token) (Profile, error)
}

// Adapters is the fixed set of configured providers.
type Adapters struct {
	byProvider map[Provider]Adapter
}

// NewAdapters builds the lookup table.
func NewAdapters(adapters map[Provider]Adapter) *Adapters {
	byProvider := make(map[Provider]Adapter, len(adapters))
	for p, a := range adapters {
		if a != nil {
			byProvider[p] = a
		}
	}
	return &Adapters{byProvider: byProvider}
}

// Lookup resolves a provider name, failing with auth.ErrInvalidProvider for anything unsupported.
func (a *Adapters) Lookup(name string) (Adapter, error) {
	if a == nil {
		return nil, auth.ErrInvalidProvider
	}
	adapter, ok := a.byProvider[Provider(strings.ToLower(strings.TrimSpace(name)))]
	if !ok {
		return nil, auth.ErrInvalidProvider
	}
	return adapter, nil
}
