package auth

import (
	"errors"
	"time"

	"github.com/spec-kit/facezhuk/internal/domain"
)

// TokenService issues access/refresh pairs and resolves identities from them.
//
// Access and refresh tokens share one claim shape and one key; only the TTL
// chosen at issuance differs. There is no revocation list: a token stays valid
// until its own expiry.
type TokenService struct {
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService builds the service.
func NewTokenService(codec *Codec, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{codec: codec, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// Codec exposes the underlying codec for link tokens.
func (s *TokenService) Codec() *Codec {
	return s.codec
}

// RefreshTTL is the refresh token lifetime, used for the session cookie.
func (s *TokenService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// IssueAccessToken signs a short-lived token for identity.
func (s *TokenService) IssueAccessToken(identity domain.Identity) (string, time.Time, error) {
	return s.codec.Sign(identity, s.accessTTL)
}

// IssueRefreshToken signs a long-lived token for identity.
func (s *TokenService) IssueRefreshToken(identity domain.Identity) (string, time.Time, error) {
	return s.codec.Sign(identity, s.refreshTTL)
}

// IssuePair signs a fresh access and refresh token.
func (s *TokenService) IssuePair(identity domain.Identity) (domain.TokenPair, error) {
	access, accessExp, err := s.IssueAccessToken(identity)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, refreshExp, err := s.IssueRefreshToken(identity)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// ResolveIdentity verifies token and returns its embedded identity. Expiry
// failures surface as ErrExpiredToken; nothing is renewed here.
func (s *TokenService) ResolveIdentity(token string, enforceExpiry bool) (domain.Identity, error) {
	claims, err := s.codec.Verify(token, enforceExpiry)
	if err != nil {
		return domain.Identity{}, err
	}
	return claims.User, nil
}

// Refresh exchanges a valid refresh token for a new pair. The presented token
// is not invalidated and keeps working until its own expiry.
func (s *TokenService) Refresh(refreshToken string) (domain.TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken, true)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return domain.TokenPair{}, ErrExpiredRefreshToken
		}
		return domain.TokenPair{}, err
	}
	return s.IssuePair(claims.User)
}
