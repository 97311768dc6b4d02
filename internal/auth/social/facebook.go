package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"

	"github.com/spec-kit/facezhuk/internal/config"
)

const facebookGraphURL = "https://graph.facebook.com"

// Facebook exchanges codes against the Graph API and reads the account email.
type Facebook struct {
	oauth    *oauth2.Config
	graphURL string
}

// FacebookOption customizes the adapter.
type FacebookOption func(*Facebook)

// WithGraphURL points the adapter at another Graph API host for both token and profile calls.
func WithGraphURL(graphURL string) FacebookOption {
	return func(f *Facebook) {
		f.graphURL = graphURL
		f.oauth.Endpoint = oauth2.Endpoint{
			AuthURL:  graphURL + "/dialog/oauth",
			TokenURL: graphURL + "/v14.0/oauth/access_token",
		}
	}
}

// NewFacebook builds the adapter from its client registration.
func NewFacebook(cfg config.OAuthClientConfig, opts ...FacebookOption) *Facebook {
	f := &Facebook{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     facebook.Endpoint,
			Scopes:       []string{"public_profile", "email"},
		},
		graphURL: facebookGraphURL,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Exchange implements Adapter.
func (f *Facebook) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := f.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("facebook code exchange: %w", err)
	}
	return token, nil
}

// Profile implements Adapter.
func (f *Facebook) Profile(ctx context.Context, token *oauth2.Token) (Profile, error) {
	endpoint := f.graphURL + "/me?" + url.Values{"fields": {"email,name"}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Profile{}, err
	}

	resp, err := f.oauth.Client(ctx, token).Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("facebook profile: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("facebook profile: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Profile{}, fmt.Errorf("facebook profile: %w", err)
	}
	if body.Email == "" {
		return Profile{}, errors.New("facebook profile has no email")
	}
	return Profile{Email: body.Email, Name: body.Name}, nil
}
