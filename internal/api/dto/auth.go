package dto

import (
	"time"

	"github.com/spec-kit/facezhuk/internal/domain"
)

// RegisterRequest is the payload of POST /api/register.
type RegisterRequest struct {
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	Password        string  `json:"password"`
	FirstName       *string `json:"first_name"`
	LastName        *string `json:"last_name"`
	Phone           *string `json:"phone"`
	EnableTwoFactor bool    `json:"enable_two_factor"`
}

// LoginRequest is the payload of POST /api/login.
type LoginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	OneTimePass string `json:"one_time_pass"`
}

// SocialLoginRequest is the payload of POST /api/social-login.
type SocialLoginRequest struct {
	Code           string `json:"code"`
	SocialProvider string `json:"social_provider"`
}

// TokenRequest carries a single link token.
type TokenRequest struct {
	Token string `json:"token"`
}

// EmailRequest carries an email address.
type EmailRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the payload of POST /api/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ChangePasswordRequest is the payload of POST /api/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ProfileChangeRequest is the payload of PATCH /api/account/change.
type ProfileChangeRequest struct {
	Email     *string `json:"email"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Phone     *string `json:"phone"`
}

// TokenResponse is returned by every login and refresh.
type TokenResponse struct {
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

// NewTokenResponse renders a token pair.
func NewTokenResponse(pair domain.TokenPair) TokenResponse {
	return TokenResponse{
		AccessToken:     pair.AccessToken,
		RefreshToken:    pair.RefreshToken,
		AccessExpiresAt: pair.AccessExpiresAt,
	}
}

// TwoFactorResponse returns a freshly connected shared secret.
type TwoFactorResponse struct {
	OTPSecret string `json:"otp_secret"`
	OTPURI    string `json:"otp_uri"`
}

// UserResponse is the public view of an account.
type UserResponse struct {
	ID               int64     `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	FirstName        *string   `json:"first_name"`
	LastName         *string   `json:"last_name"`
	Phone            *string   `json:"phone"`
	IsActive         bool      `json:"is_active"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	OTPSecret        *string   `json:"otp_secret,omitempty"`
	RegisteredAt     time.Time `json:"registered_at"`
}

// NewUserResponse renders an account. The shared secret is included only
// when withSecret is set, right after registration.
func NewUserResponse(u *domain.User, withSecret bool) UserResponse {
	resp := UserResponse{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Phone:            u.Phone,
		IsActive:         u.IsActive,
		TwoFactorEnabled: u.TwoFactorEnabled(),
		RegisteredAt:     u.RegisteredAt,
	}
	if withSecret && u.TwoFactorEnabled() {
		resp.OTPSecret = u.OTPSecret
	}
	return resp
}
