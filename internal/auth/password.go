package auth

import (
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password with configured cost.
func HashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

// Credentials checks passwords and time-based one-time codes.
type Credentials struct {
	cost   int
	issuer string
	now    func() time.Time
}

// NewCredentials builds a verifier. Cost is clamped to bcrypt's bounds.
func NewCredentials(cost int, issuer string) *Credentials {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Credentials{cost: cost, issuer: issuer, now: time.Now}
}

// Hash hashes password with the configured cost.
func (c *Credentials) Hash(password string) (string, error) {
	return HashPassword(password, c.cost)
}

// Matches reports whether password matches hashed.
func (c *Credentials) Matches(hashed, password string) bool {
	return ComparePassword(hashed, password) == nil
}

// NewOTPSecret generates a base32 shared secret and its otpauth:// provisioning URI.
func (c *Credentials) NewOTPSecret(account string) (string, string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      c.issuer,
		AccountName: account,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// VerifyOTP checks code against secret for the current 30s step, allowing one step of skew.
func (c *Credentials) VerifyOTP(secret, code string) bool {
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, c.now().UTC(), totp.ValidateOpts{
		Period: 30,
		Skew:   1,
		Digits: 6,
	})
	return err == nil && ok
}
