package auth

import "errors"

// Token and credential failures surfaced by this package.
var (
	ErrMalformedToken      = errors.New("malformed token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrExpiredRefreshToken = errors.New("refresh token has expired")
	// ErrInvalidCredential covers every login failure so callers cannot tell which factor failed.
	ErrInvalidCredential = errors.New("wrong email or password")
	ErrInvalidProvider   = errors.New("wrong social provider")
)
