package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/facezhuk/internal/auth"
	"github.com/spec-kit/facezhuk/internal/auth/social"
	"github.com/spec-kit/facezhuk/internal/config"
	"github.com/spec-kit/facezhuk/internal/domain"
	"github.com/spec-kit/facezhuk/internal/mail"
	"github.com/spec-kit/facezhuk/internal/repository"
)

// Account management failures.
var (
	ErrTwoFactorEnabled    = errors.New("two-factor authentication is already connected")
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication is not connected")
	ErrEmptyProfileChange  = errors.New("nothing to change")
)

const (
	tempPasswordLength   = 16
	tempPasswordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	provisionAttempts    = 3
)

// CredentialVerifier hashes and checks passwords and one-time codes.
type CredentialVerifier interface {
	Hash(password string) (string, error)
	Matches(hashed, password string) bool
	NewOTPSecret(account string) (secret, uri string, err error)
	VerifyOTP(secret, code string) bool
}

// LoginRecorder counts login outcomes.
type LoginRecorder interface {
	RecordLogin(method string, success bool)
}

// RegisterInput is a new account request.
type RegisterInput struct {
	Username        string
	Email           string
	Password        string
	FirstName       *string
	LastName        *string
	Phone           *string
	EnableTwoFactor bool
}

// ProfileChange lists the account fields to overwrite; nil means unchanged.
type ProfileChange struct {
	Email     *string
	FirstName *string
	LastName  *string
	Phone     *string
}

// Empty reports whether the change touches nothing.
func (p ProfileChange) Empty() bool {
	return p.Email == nil && p.FirstName == nil && p.LastName == nil && p.Phone == nil
}

// TwoFactorSecret is returned once when a second factor is connected.
type TwoFactorSecret struct {
	Secret string
	URI    string
}

// AuthService coordinates registration, login and account flows.
type AuthService struct {
	users         repository.UserRepository
	tokens        *auth.TokenService
	creds         CredentialVerifier
	social        *social.Adapters
	mailer        mail.Mailer
	metrics       LoginRecorder
	logger        *zap.Logger
	activationTTL time.Duration
	resetTTL      time.Duration
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Users       repository.UserRepository
	Tokens      *auth.TokenService
	Credentials CredentialVerifier
	Social      *social.Adapters
	Mailer      mail.Mailer
	Metrics     LoginRecorder
	Logger      *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:         deps.Users,
		tokens:        deps.Tokens,
		creds:         deps.Credentials,
		social:        deps.Social,
		mailer:        deps.Mailer,
		metrics:       deps.Metrics,
		logger:        logger,
		activationTTL: cfg.ActivationTTL(),
		resetTTL:      cfg.PasswordResetTTL(),
	}
}

// Tokens exposes the token service for the HTTP edge.
func (s *AuthService) Tokens() *auth.TokenService {
	return s.tokens
}

// Register creates an inactive account and mails its activation link. A
// duplicate username or email fails with *domain.ConflictError.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	hash, err := s.creds.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     strings.TrimSpace(in.Username),
		Email:        normalizeEmail(in.Email),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		PasswordHash: hash,
	}
	if in.EnableTwoFactor {
		secret, _, err := s.creds.NewOTPSecret(user.Email)
		if err != nil {
			return nil, err
		}
		user.OTPSecret = &secret
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	s.sendLink(ctx, user, mail.TemplateActivation, "Activate your account", s.activationTTL)
	return user, nil
}

// Activate marks the account named by an activation link token as active.
func (s *AuthService) Activate(ctx context.Context, token string) error {
	claims, err := s.tokens.Codec().VerifyLink(token)
	if err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		return err
	}
	if user.IsActive {
		return nil
	}
	user.IsActive = true
	return s.users.Update(ctx, user)
}

// Login runs the password flow with an optional second factor. Every
// credential-level failure is reported as auth.ErrInvalidCredential.
func (s *AuthService) Login(ctx context.Context, email, password, oneTimePass string) (domain.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		return s.loginFailed("unknown email", email)
	}
	if err != nil {
		return domain.TokenPair{}, err
	}

	if !s.creds.Matches(user.PasswordHash, password) {
		return s.loginFailed("password mismatch", email)
	}
	if !user.IsActive {
		return s.loginFailed("account not activated", email)
	}
	if user.TwoFactorEnabled() {
		if strings.TrimSpace(oneTimePass) == "" {
			return s.loginFailed("one-time code missing", email)
		}
		if !s.creds.VerifyOTP(*user.OTPSecret, oneTimePass) {
			return s.loginFailed("one-time code rejected", email)
		}
	}

	pair, err := s.tokens.IssuePair(user.Identity())
	if err != nil {
		return domain.TokenPair{}, err
	}
	s.recordLogin("password", true)
	return pair, nil
}

func (s *AuthService) loginFailed(reason, email string) (domain.TokenPair, error) {
	s.logger.Info("login rejected", zap.String("reason", reason), zap.String("email", email))
	s.recordLogin("password", false)
	return domain.TokenPair{}, auth.ErrInvalidCredential
}

// SocialLogin exchanges a provider code for a profile, provisions an active
// account on first sight of its email, and issues tokens.
func (s *AuthService) SocialLogin(ctx context.Context, provider, code string) (domain.TokenPair, error) {
	adapter, err := s.social.Lookup(provider)
	if err != nil {
		s.recordLogin("social", false)
		return domain.TokenPair{}, err
	}

	providerToken, err := adapter.Exchange(ctx, code)
	if err != nil {
		return s.socialFailed(provider, err)
	}
	profile, err := adapter.Profile(ctx, providerToken)
	if err != nil {
		return s.socialFailed(provider, err)
	}

	user, err := s.users.GetByEmail(ctx, normalizeEmail(profile.Email))
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		user, err = s.provision(ctx, profile)
		if err != nil {
			return domain.TokenPair{}, err
		}
	case err != nil:
		return domain.TokenPair{}, err
	case !user.IsActive:
		// The provider vouched for the address.
		user.IsActive = true
		if err := s.users.Update(ctx, user); err != nil {
			return domain.TokenPair{}, err
		}
	}

	pair, err := s.tokens.IssuePair(user.Identity())
	if err != nil {
		return domain.TokenPair{}, err
	}
	s.recordLogin("social", true)
	return pair, nil
}

func (s *AuthService) socialFailed(provider string, cause error) (domain.TokenPair, error) {
	s.logger.Info("social login rejected", zap.String("provider", provider), zap.Error(cause))
	s.recordLogin("social", false)
	return domain.TokenPair{}, fmt.Errorf("%w: %v", auth.ErrInvalidCredential, cause)
}

// provision creates an active account with a random password that is only
// ever mailed, never returned.
func (s *AuthService) provision(ctx context.Context, profile social.Profile) (*domain.User, error) {
	password, err := tempPassword()
	if err != nil {
		return nil, err
	}
	hash, err := s.creds.Hash(password)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(profile.Email)
	base := usernameFromEmail(email)
	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if first, last, ok := strings.Cut(strings.TrimSpace(profile.Name), " "); first != "" {
		user.FirstName = &first
		if ok && last != "" {
			user.LastName = &last
		}
	}

	for attempt := 0; ; attempt++ {
		user.Username = base
		if attempt > 0 {
			suffix, err := randomString(4, "0123456789")
			if err != nil {
				return nil, err
			}
			user.Username = base + suffix
		}

		err = s.users.Create(ctx, user)
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) && conflict.Field == "username" && attempt+1 < provisionAttempts {
			continue
		}
		if err != nil {
			return nil, err
		}
		break
	}

	s.logger.Info("social account provisioned", zap.String("username", user.Username))
	s.send(ctx, mail.Message{
		To:       user.Email,
		Subject:  "Your temporary password",
		Template: mail.TemplateTempPassword,
		Data:     map[string]string{"username": user.Username, "password": password},
	})
	return user, nil
}

// Refresh exchanges a refresh token for a new pair.
func (s *AuthService) Refresh(refreshToken string) (domain.TokenPair, error) {
	return s.tokens.Refresh(refreshToken)
}

// ForgotPassword mails a reset link. Unknown emails succeed silently.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		s.logger.Info("password reset for unknown email", zap.String("email", email))
		return nil
	}
	if err != nil {
		return err
	}
	s.sendLink(ctx, user, mail.TemplateForgotPassword, "Reset your password", s.resetTTL)
	return nil
}

// ResetPassword sets a new password for the account named by a reset link token.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.tokens.Codec().VerifyLink(token)
	if err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		return err
	}
	hash, err := s.creds.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return s.users.Update(ctx, user)
}

// ChangePassword verifies the current password before storing the new one.
func (s *AuthService) ChangePassword(ctx context.Context, who domain.Identity, currentPassword, newPassword string) error {
	user, err := s.users.GetByUsername(ctx, who.Username)
	if err != nil {
		return err
	}
	if !s.creds.Matches(user.PasswordHash, currentPassword) {
		return auth.ErrInvalidCredential
	}
	hash, err := s.creds.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	return s.users.Update(ctx, user)
}

// Account loads the caller's record.
func (s *AuthService) Account(ctx context.Context, who domain.Identity) (*domain.User, error) {
	return s.users.GetByUsername(ctx, who.Username)
}

// ConnectTwoFactor generates and stores a shared secret for the caller.
func (s *AuthService) ConnectTwoFactor(ctx context.Context, who domain.Identity) (TwoFactorSecret, error) {
	user, err := s.users.GetByUsername(ctx, who.Username)
	if err != nil {
		return TwoFactorSecret{}, err
	}
	if user.TwoFactorEnabled() {
		return TwoFactorSecret{}, ErrTwoFactorEnabled
	}
	secret, uri, err := s.creds.NewOTPSecret(user.Email)
	if err != nil {
		return TwoFactorSecret{}, err
	}
	user.OTPSecret = &secret
	if err := s.users.Update(ctx, user); err != nil {
		return TwoFactorSecret{}, err
	}
	return TwoFactorSecret{Secret: secret, URI: uri}, nil
}

// DisconnectTwoFactor clears the caller's shared secret.
func (s *AuthService) DisconnectTwoFactor(ctx context.Context, who domain.Identity) error {
	user, err := s.users.GetByUsername(ctx, who.Username)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled() {
		return ErrTwoFactorNotEnabled
	}
	user.OTPSecret = nil
	return s.users.Update(ctx, user)
}

// ChangeProfile overwrites the fields present in change.
func (s *AuthService) ChangeProfile(ctx context.Context, who domain.Identity, change ProfileChange) (*domain.User, error) {
	if change.Empty() {
		return nil, ErrEmptyProfileChange
	}
	user, err := s.users.GetByUsername(ctx, who.Username)
	if err != nil {
		return nil, err
	}
	if change.Email != nil {
		user.Email = normalizeEmail(*change.Email)
	}
	if change.FirstName != nil {
		user.FirstName = change.FirstName
	}
	if change.LastName != nil {
		user.LastName = change.LastName
	}
	if change.Phone != nil {
		user.Phone = change.Phone
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) sendLink(ctx context.Context, user *domain.User, tpl mail.Template, subject string, ttl time.Duration) {
	token, _, err := s.tokens.Codec().SignLink(user.Email, ttl)
	if err != nil {
		s.logger.Error("sign link token", zap.String("template", string(tpl)), zap.Error(err))
		return
	}
	s.send(ctx, mail.Message{
		To:       user.Email,
		Subject:  subject,
		Template: tpl,
		Data:     map[string]string{"username": user.Username, "token": token},
	})
}

// send never fails the calling flow.
func (s *AuthService) send(ctx context.Context, msg mail.Message) {
	if s.mailer == nil {
		return
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.logger.Warn("mail delivery failed",
			zap.String("to", msg.To), zap.String("template", string(msg.Template)), zap.Error(err))
	}
}

func (s *AuthService) recordLogin(method string, success bool) {
	if s.metrics != nil {
		s.metrics.RecordLogin(method, success)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func usernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "user"
	}
	return local
}

func tempPassword() (string, error) {
	return randomString(tempPasswordLength, tempPasswordAlphabet)
}

func randomString(n int, alphabet string) (string, error) {
	out := make([]byte, n)
	limit := big.NewInt(int64(len(alphabet)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}
