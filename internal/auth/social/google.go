package social

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/spec-kit/facezhuk/internal/config"
)

const googleIssuer = "https://accounts.google.com"

// Google exchanges codes against Google's token endpoint and reads the
// profile from the OpenID userinfo endpoint.
type Google struct {
	oauth  *oauth2.Config
	issuer string

	mu       sync.Mutex
	provider *oidc.Provider
}

// GoogleOption customizes the adapter.
type GoogleOption func(*Google)

// WithGoogleIssuer points discovery at another issuer, keeping the token endpoint in sync.
func WithGoogleIssuer(issuer string) GoogleOption {
	return func(g *Google) {
		g.issuer = issuer
		g.oauth.Endpoint = oauth2.Endpoint{
			AuthURL:  issuer + "/o/oauth2/auth",
			TokenURL: issuer + "/o/oauth2/token",
		}
	}
}

// NewGoogle builds the adapter from its client registration.
func NewGoogle(cfg config.OAuthClientConfig, opts ...GoogleOption) *Google {
	g := &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     google.Endpoint,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		issuer: googleIssuer,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Exchange implements Adapter.
func (g *Google) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google code exchange: %w", err)
	}
	return token, nil
}

// Profile implements Adapter.
func (g *Google) Profile(ctx context.Context, token *oauth2.Token) (Profile, error) {
	provider, err := g.discover(ctx)
	if err != nil {
		return Profile{}, err
	}
	info, err := provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return Profile{}, fmt.Errorf("google userinfo: %w", err)
	}
	var extra struct {
		Name string `json:"name"`
	}
	if err := info.Claims(&extra); err != nil {
		return Profile{}, fmt.Errorf("google userinfo claims: %w", err)
	}
	if info.Email == "" {
		return Profile{}, errors.New("google profile has no email")
	}
	return Profile{Email: info.Email, Name: extra.Name}, nil
}

// discover caches the provider metadata after the first successful lookup.
func (g *Google) discover(ctx context.Context) (*oidc.Provider, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.provider != nil {
		return g.provider, nil
	}
	provider, err := oidc.NewProvider(ctx, g.issuer)
	if err != nil {
		return nil, fmt.Errorf("google discovery: %w", err)
	}
	g.provider = provider
	return provider, nil
}
