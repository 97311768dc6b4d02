package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/facezhuk/internal/auth"
	"github.com/spec-kit/facezhuk/internal/auth/social"
	"github.com/spec-kit/facezhuk/internal/config"
	"github.com/spec-kit/facezhuk/internal/domain"
	"github.com/spec-kit/facezhuk/internal/mail"
	"github.com/spec-kit/facezhuk/internal/repository/memory"
)

type authFixture struct {
	svc    *AuthService
	users  *memory.Users
	mailer *recordingMailer
	logins *loginCounter
	tokens *auth.TokenService
	google *stubAdapter
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	codec, err := auth.NewCodec("test-secret", "HS256")
	require.NoError(t, err)
	tokens := auth.NewTokenService(codec, 15*time.Minute, 24*time.Hour)

	f := &authFixture{
		users:  memory.NewUsers(),
		mailer: &recordingMailer{},
		logins: &loginCounter{},
		tokens: tokens,
		google: &stubAdapter{code: "good-code", profile: social.Profile{Email: "Arya.Stark@gmail.com", Name: "Arya Stark"}},
	}
	f.svc = NewAuthService(config.AuthConfig{
		ActivationTTLMinutes:    60,
		PasswordResetTTLMinutes: 30,
	}, AuthDependencies{
		Users:       f.users,
		Tokens:      tokens,
		Credentials: auth.NewCredentials(bcrypt.MinCost, "facezhuk"),
		Social:      social.NewAdapters(map[social.Provider]social.Adapter{social.ProviderGoogle: f.google}),
		Mailer:      f.mailer,
		Metrics:     f.logins,
	})
	return f
}

// registerActive registers and activates an account through the public flow.
func (f *authFixture) registerActive(t *testing.T, in RegisterInput) *domain.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	require.NoError(t, f.svc.Activate(context.Background(), f.mailer.last().Data["token"]))
	return user
}

func TestRegisterSendsActivationLink(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, RegisterInput{Username: "jon", Email: " Jon@Example.com ", Password: "winter"})
	require.NoError(t, err)
	assert.Equal(t, "jon@example.com", user.Email)
	assert.False(t, user.IsActive)
	assert.NotEqual(t, "winter", user.PasswordHash)
	assert.False(t, user.TwoFactorEnabled())

	msg := f.mailer.last()
	assert.Equal(t, mail.TemplateActivation, msg.Template)
	assert.Equal(t, "jon@example.com", msg.To)

	claims, err := f.tokens.Codec().VerifyLink(msg.Data["token"])
	require.NoError(t, err)
	assert.Equal(t, "jon@example.com", claims.Email)

	_, err = f.svc.Login(ctx, "jon@example.com", "winter", "")
	assert.ErrorIs(t, err, auth.ErrInvalidCredential, "inactive accounts cannot log in")

	require.NoError(t, f.svc.Activate(ctx, msg.Data["token"]))
	// Link tokens stay valid until they expire.
	require.NoError(t, f.svc.Activate(ctx, msg.Data["token"]))

	pair, err := f.svc.Login(ctx, "JON@example.com", "winter", "")
	require.NoError(t, err)
	identity, err := f.tokens.ResolveIdentity(pair.AccessToken, true)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{Username: "jon", Email: "jon@example.com"}, identity)
}

func TestRegisterSurvivesMailFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.mailer.err = errors.New("smtp down")

	_, err := f.svc.Register(context.Background(), RegisterInput{Username: "jon", Email: "jon@example.com", Password: "winter"})
	assert.NoError(t, err)
	assert.Equal(t, 1, f.users.Len())
}

func TestRegisterConflicts(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Username: "jon", Email: "jon@example.com", Password: "x"})
	require.NoError(t, err)

	var conflict *domain.ConflictError
	_, err = f.svc.Register(ctx, RegisterInput{Username: "jon", Email: "other@example.com", Password: "x"})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "username", conflict.Field)

	_, err = f.svc.Register(ctx, RegisterInput{Username: "snow", Email: "JON@example.com", Password: "x"})
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "email", conflict.Field)
}

func TestConcurrentRegistrationSameUsername(t *testing.T) {
	f := newAuthFixture(t)

	emails := []string{"first@example.com", "second@example.com"}
	errs := make([]error, len(emails))
	var wg sync.WaitGroup
	for i, email := range emails {
		wg.Add(1)
		go func(i int, email string) {
			defer wg.Done()
			_, errs[i] = f.svc.Register(context.Background(), RegisterInput{Username: "jon", Email: email, Password: "winter"})
		}(i, email)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		var conflict *domain.ConflictError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &conflict):
			assert.Equal(t, "username", conflict.Field)
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
	assert.Equal(t, 1, f.users.Len())
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	f.registerActive(t, RegisterInput{Username: "jon", Email: "jon@example.com", Password: "winter"})

	cases := map[string][2]string{
		"unknown email":  {"nobody@example.com", "winter"},
		"wrong password": {"jon@example.com", "summer"},
	}
	for name, c := range cases {
		_, err := f.svc.Login(context.Background(), c[0], c[1], "")
		assert.ErrorIs(t, err, auth.ErrInvalidCredential, name)
		assert.Equal(t, auth.ErrInvalidCredential.Error(), err.Error(), name)
	}
	assert.Equal(t, 2, f.logins.get("password:failure"))
}

func TestLoginWithSecondFactor(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.registerActive(t, RegisterInput{Username: "jon", Email: "jon@example.com", Password: "winter", EnableTwoFactor: true})
	require.True(t, user.TwoFactorEnabled())
	secret := *user.OTPSecret

	_, err := f.svc.Login(ctx, "jon@example.com", "winter", "")
	assert.ErrorIs(t, err, auth.ErrInvalidCredential)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	_, err = f.svc.Login(ctx, "jon@example.com", "summer", code)
	assert.ErrorIs(t, err, auth.ErrInvalidCredential, "a valid code does not bypass the password")

	_, err = f.svc.Login(ctx, "jon@example.com", "winter", "not-a-code")
	assert.ErrorIs(t, err, auth.ErrInvalidCredential)

	stale, err := totp.GenerateCode(secret, time.Now().Add(-10*time.Minute))
	require.NoError(t, err)
	if stale != code {
		_, err = f.svc.Login(ctx, "jon@example.com", "winter", stale)
		assert.ErrorIs(t, err, auth.ErrInvalidCredential)
	}

	pair, err := f.svc.Login(ctx, "jon@example.com", "winter", code)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, 1, f.logins.get("password:success"))
}

func TestSocialLoginProvisionsAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	pair, err := f.svc.SocialLogin(ctx, "google", "good-code")
	require.NoError(t, err)

	identity, err := f.tokens.ResolveIdentity(pair.AccessToken, true)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{Username: "arya.stark", Email: "arya.stark@gmail.com"}, identity)

	user, err := f.users.GetByEmail(ctx, "arya.stark@gmail.com")
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	require.NotNil(t, user.FirstName)
	assert.Equal(t, "Arya", *user.FirstName)

	msg := f.mailer.last()
	assert.Equal(t, mail.TemplateTempPassword, msg.Template)
	password := msg.Data["password"]
	assert.Len(t, password, tempPasswordLength)
	assert.NoError(t, auth.ComparePassword(user.PasswordHash, password))

	// Second login reuses the account.
	_, err = f.svc.SocialLogin(ctx, "Google", "good-code")
	require.NoError(t, err)
	assert.Equal(t, 1, f.users.Len())
	assert.Equal(t, 2, f.logins.get("social:success"))
}

func TestSocialLoginUsernameTaken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Username: "arya.stark", Email: "arya@winterfell.org", Password: "needle"})
	require.NoError(t, err)

	pair, err := f.svc.SocialLogin(ctx, "google", "good-code")
	require.NoError(t, err)
	identity, err := f.tokens.ResolveIdentity(pair.AccessToken, true)
	require.NoError(t, err)
	assert.NotEqual(t, "arya.stark", identity.Username)
	assert.Contains(t, identity.Username, "arya.stark")
}

func TestSocialLoginActivatesExistingAccount(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Username: "arya", Email: "arya.stark@gmail.com", Password: "needle"})
	require.NoError(t, err)

	_, err = f.svc.SocialLogin(ctx, "google", "good-code")
	require.NoError(t, err)

	user, err := f.users.GetByUsername(ctx, "arya")
	require.NoError(t, err)
	assert.True(t, user.IsActive)
	assert.Equal(t, 1, f.users.Len())
}

func TestSocialLoginFailures(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.SocialLogin(ctx, "twitter", "good-code")
	assert.ErrorIs(t, err, auth.ErrInvalidProvider)

	_, err = f.svc.SocialLogin(ctx, "facebook", "good-code")
	assert.ErrorIs(t, err, auth.ErrInvalidProvider, "unconfigured providers are unsupported")

	_, err = f.svc.SocialLogin(ctx, "google", "bad-code")
	assert.ErrorIs(t, err, auth.ErrInvalidCredential)

	f.google.err = errors.New("no email")
	_, err = f.svc.SocialLogin(ctx, "google", "good-code")
	assert.ErrorIs(t, err, auth.ErrInvalidCredential)
	assert.Zero(t, f.users.Len())
	assert.Equal(t, 4, f.logins.get("social:failure"))
}

func TestPasswordResetFlow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerActive(t, RegisterInput{Username: "jon", Email: "jon@example.com", Password: "winter"})

	require.NoError(t, f.svc.ForgotPassword(ctx, "nobody@example.com"))
	assert.Equal(t, mail.TemplateActivation, f.mailer.last().Template, "unknown emails send nothing")

	require.NoError(t, f.svc.ForgotPassword(ctx, "Jon@Example.com"))
	msg := f.mailer.last()
	require.Equal(t, mail.TemplateForgotPassword, msg.Template)

	require.NoError(t, f.svc.ResetPassword(ctx, msg.Data["token"], "spring"))
	_, err := f.svc.Login(ctx, "jon@example.com", "winter", "")
	assert.ErrorIs(t, err, auth.ErrInvalidCredential)
	_, err = f.svc.Login(ctx, "jon@example.com", "spring", "")
	assert.NoError(t, err)

	err = f.svc.ResetPassword(ctx, "garbage", "x")
	assert.ErrorIs(t, err, auth.ErrMalformedToken)
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.registerActive(t, RegisterInput{Username: "jon", Email: "jon@example.com", Password: "winter"})

	err := f.svc.ChangePassword(ctx, user.Identity(), "summer", "spring")
	assert.ErrorIs(t, err, auth.ErrInvalidCredential)

	require.NoError(t, f.svc.ChangePassword(ctx, user.Identity(), "winter", "spring"))
	_, err = f.svc.Login(ctx, "jon@example.com", "spring", "")
	assert.NoError(t, err)
}

func TestTwoFactorConnectDisconnect(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.registerActive(t, RegisterInput{Username: "jon", Email: "jon@example.com", Password: "winter"})
	who := user.Identity()

	assert.ErrorIs(t, f.svc.DisconnectTwoFactor(ctx, who), ErrTwoFactorNotEnabled)

	secret, err := f.svc.ConnectTwoFactor(ctx, who)
	require.NoError(t, err)
	assert.NotEmpty(t, secret.Secret)
	assert.Contains(t, secret.URI, "otpauth://totp/")

	_, err = f.svc.ConnectTwoFactor(ctx, who)
	assert.ErrorIs(t, err, ErrTwoFactorEnabled)

	_, err = f.svc.Login(ctx, "jon@example.com", "winter", "")
	assert.ErrorIs(t, err, auth.ErrInvalidCredential)

	require.NoError(t, f.svc.DisconnectTwoFactor(ctx, who))
	_, err = f.svc.Login(ctx, "jon@example.com", "winter", "")
	assert.NoError(t, err)
}

func TestChangeProfile(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	jon := f.registerActive(t, RegisterInput{Username: "jon", Email: "jon@example.com", Password: "winter"})
	f.registerActive(t, RegisterInput{Username: "sam", Email: "sam@example.com", Password: "books"})

	_, err := f.svc.ChangeProfile(ctx, jon.Identity(), ProfileChange{})
	assert.ErrorIs(t, err, ErrEmptyProfileChange)

	taken := "sam@example.com"
	_, err = f.svc.ChangeProfile(ctx, jon.Identity(), ProfileChange{Email: &taken})
	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "email", conflict.Field)

	first, phone := "Jon", "+44 100"
	updated, err := f.svc.ChangeProfile(ctx, jon.Identity(), ProfileChange{FirstName: &first, Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "Jon", *updated.FirstName)
	assert.Equal(t, "+44 100", *updated.Phone)
	assert.Nil(t, updated.LastName)

	account, err := f.svc.Account(ctx, jon.Identity())
	require.NoError(t, err)
	assert.Equal(t, "jon@example.com", account.Email)
	assert.Equal(t, "Jon", *account.FirstName)
}

func TestRefreshDelegatesToTokens(t *testing.T) {
	f := newAuthFixture(t)
	pair, err := f.tokens.IssuePair(domain.Identity{Username: "jon", Email: "jon@example.com"})
	require.NoError(t, err)

	refreshed, err := f.svc.Refresh(pair.RefreshToken)
	require.NoError(t, err)
	identity, err := f.tokens.ResolveIdentity(refreshed.AccessToken, true)
	require.NoError(t, err)
	assert.Equal(t, "jon", identity.Username)

	_, err = f.svc.Refresh("nope")
	assert.ErrorIs(t, err, auth.ErrMalformedToken)
}
