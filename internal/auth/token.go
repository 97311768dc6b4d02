package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/facezhuk/internal/domain"
)

// Codec signs and verifies compact JWTs with a shared HMAC secret.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// CodecOption customizes a Codec.
type CodecOption func(*Codec)

// WithClock overrides the wall clock used for issuance and expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec builds a codec for the configured secret and HMAC algorithm name.
func NewCodec(secret, algorithm string, opts ...CodecOption) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	method, ok := jwt.GetSigningMethod(strings.ToUpper(algorithm)).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	c := &Codec{secret: []byte(secret), method: method, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Claims describes the session token payload shared by access and refresh tokens.
type Claims struct {
	User domain.Identity `json:"user"`
	jwt.RegisteredClaims
}

// LinkClaims is the single-claim payload of activation and password-reset links.
type LinkClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Now returns the codec's notion of the current time.
func (c *Codec) Now() time.Time {
	return c.now()
}

// Sign issues a session token for identity expiring ttl from now.
func (c *Codec) Sign(identity domain.Identity, ttl time.Duration) (string, time.Time, error) {
	issuedAt := c.now()
	expiresAt := issuedAt.Add(ttl)
	claims := &Claims{
		User: identity,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify decodes a session token. With enforceExpiry false an expired but
// correctly signed token still decodes.
func (c *Codec) Verify(token string, enforceExpiry bool) (*Claims, error) {
	claims := &Claims{}
	if err := c.parse(token, claims, enforceExpiry); err != nil {
		return nil, err
	}
	if claims.User.Username == "" || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing identity claim", ErrMalformedToken)
	}
	return claims, nil
}

// SignLink issues a single-claim {email, exp} token. It carries no nonce and
// stays valid for every use until it expires.
func (c *Codec) SignLink(email string, ttl time.Duration) (string, time.Time, error) {
	claims := &LinkClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(c.now().Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// VerifyLink decodes a single-claim token, always enforcing expiry.
func (c *Codec) VerifyLink(token string) (*LinkClaims, error) {
	claims := &LinkClaims{}
	if err := c.parse(token, claims, true); err != nil {
		return nil, err
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrMalformedToken)
	}
	return claims, nil
}

func (c *Codec) parse(token string, claims jwt.Claims, enforceExpiry bool) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if enforceExpiry {
		opts = append(opts, jwt.WithExpirationRequired())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, opts...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}
