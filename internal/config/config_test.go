package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "development")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "HS256", cfg.Auth.JWTAlgorithm)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL())
	assert.Equal(t, 30*24*time.Hour, cfg.Auth.RefreshTTL())
	assert.False(t, cfg.Auth.SecureCookies)
	assert.Equal(t, []string{"localhost:3000"}, cfg.Realtime.OriginPatterns)
	assert.Equal(t, "0.0.0.0:8001", cfg.Realtime.Addr(cfg.App.Host))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_ALGORITHM", "HS512")
	t.Setenv("JWT_EXPIRATION_SECONDS", "60")
	t.Setenv("JWT_REFRESH_EXPIRATION_SECONDS", "3600")
	t.Setenv("ACTIVATION_TOKEN_DURATION", "10")
	t.Setenv("RESET_PASSWORD_TOKEN_DURATION", "5")
	t.Setenv("APP_ENV", "production")
	t.Setenv("REALTIME_ORIGIN_PATTERNS", "a.example.com, b.example.com ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "HS512", cfg.Auth.JWTAlgorithm)
	assert.Equal(t, time.Minute, cfg.Auth.AccessTTL())
	assert.Equal(t, time.Hour, cfg.Auth.RefreshTTL())
	assert.Equal(t, 10*time.Minute, cfg.Auth.ActivationTTL())
	assert.Equal(t, 5*time.Minute, cfg.Auth.PasswordResetTTL())
	assert.True(t, cfg.Auth.SecureCookies)
	assert.Equal(t, []string{"a.example.com", "b.example.com"}, cfg.Realtime.OriginPatterns)
}

func TestAuthConfigValidate(t *testing.T) {
	valid := AuthConfig{
		JWTSecret:               "secret",
		JWTAlgorithm:            "HS256",
		AccessTokenTTLSeconds:   60,
		RefreshTokenTTLSeconds:  120,
		ActivationTTLMinutes:    1,
		PasswordResetTTLMinutes: 1,
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *AuthConfig){
		"empty secret":        func(c *AuthConfig) { c.JWTSecret = " " },
		"asymmetric alg":      func(c *AuthConfig) { c.JWTAlgorithm = "RS256" },
		"unknown alg":         func(c *AuthConfig) { c.JWTAlgorithm = "none" },
		"zero access ttl":     func(c *AuthConfig) { c.AccessTokenTTLSeconds = 0 },
		"refresh not longer":  func(c *AuthConfig) { c.RefreshTokenTTLSeconds = 60 },
		"zero reset duration": func(c *AuthConfig) { c.PasswordResetTTLMinutes = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}
