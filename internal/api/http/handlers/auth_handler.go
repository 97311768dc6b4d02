package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facezhuk/internal/api/dto"
	"github.com/spec-kit/facezhuk/internal/auth"
	"github.com/spec-kit/facezhuk/internal/domain"
	"github.com/spec-kit/facezhuk/internal/service"
	apperrors "github.com/spec-kit/facezhuk/pkg/util/errorutil"
)

// RefreshCookie holds the refresh token between sessions.
const RefreshCookie = "refresh_token"

// AuthHandler exposes registration, login and account endpoints.
type AuthHandler struct {
	auth          *service.AuthService
	secureCookies bool
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, secureCookies bool) *AuthHandler {
	return &AuthHandler{auth: authService, secureCookies: secureCookies}
}

// Register handles POST /api/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if strings.TrimSpace(req.Username) == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return apperrors.NewValidationError("username, email and password required", nil)
	}

	user, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		EnableTwoFactor: req.EnableTwoFactor,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.NewUserResponse(user, true))
}

// Login handles POST /api/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	pair, err := h.auth.Login(c.UserContext(), req.Email, req.Password, req.OneTimePass)
	if err != nil {
		return mapError(err)
	}
	return h.respondWithTokens(c, pair)
}

// SocialLogin handles POST /api/social-login.
func (h *AuthHandler) SocialLogin(c *fiber.Ctx) error {
	var req dto.SocialLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	if req.Code == "" || req.SocialProvider == "" {
		return apperrors.NewValidationError("code and social_provider required", nil)
	}

	pair, err := h.auth.SocialLogin(c.UserContext(), req.SocialProvider, req.Code)
	if err != nil {
		return mapError(err)
	}
	return h.respondWithTokens(c, pair)
}

// Refresh handles POST /api/refresh. The refresh token is read from its cookie only.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	token := c.Cookies(RefreshCookie)
	if token == "" {
		return apperrors.NewUnauthorized("refresh token missing")
	}

	pair, err := h.auth.Refresh(token)
	switch {
	case errors.Is(err, auth.ErrExpiredRefreshToken):
		h.clearRefreshCookie(c)
		return apperrors.NewUnauthorized(err.Error())
	case errors.Is(err, auth.ErrMalformedToken):
		return apperrors.NewUnauthorized("invalid refresh token")
	case err != nil:
		return err
	}
	return h.respondWithTokens(c, pair)
}

// Activate handles POST /api/activate.
func (h *AuthHandler) Activate(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return apperrors.NewValidationError("token required", nil)
	}
	if err := h.auth.Activate(c.UserContext(), req.Token); err != nil {
		return mapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ForgotPassword handles POST /api/forgot-password.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req dto.EmailRequest
	if err := c.BodyParser(&req); err != nil || req.Email == "" {
		return apperrors.NewValidationError("email required", nil)
	}
	if err := h.auth.ForgotPassword(c.UserContext(), req.Email); err != nil {
		return mapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ResetPassword handles POST /api/reset-password.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req dto.ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil || req.Token == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("token and new_password required", nil)
	}
	if err := h.auth.ResetPassword(c.UserContext(), req.Token, req.NewPassword); err != nil {
		return mapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ChangePassword handles POST /api/change-password.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		return apperrors.NewValidationError("current_password and new_password required", nil)
	}
	if err := h.auth.ChangePassword(c.UserContext(), who, req.CurrentPassword, req.NewPassword); err != nil {
		if errors.Is(err, auth.ErrInvalidCredential) {
			return apperrors.NewBadRequest("current password is wrong")
		}
		return mapError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// TwoFactor handles POST /api/account/two-factor-auth?action=connect|disconnect.
func (h *AuthHandler) TwoFactor(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}

	switch c.Query("action") {
	case "connect":
		secret, err := h.auth.ConnectTwoFactor(c.UserContext(), who)
		if err != nil {
			return mapError(err)
		}
		return c.JSON(dto.TwoFactorResponse{OTPSecret: secret.Secret, OTPURI: secret.URI})
	case "disconnect":
		if err := h.auth.DisconnectTwoFactor(c.UserContext(), who); err != nil {
			return mapError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
	return apperrors.NewValidationError("action must be connect or disconnect", nil)
}

// Account handles GET /api/account.
func (h *AuthHandler) Account(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	user, err := h.auth.Account(c.UserContext(), who)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(dto.NewUserResponse(user, false))
}

// ChangeProfile handles PATCH /api/account/change.
func (h *AuthHandler) ChangeProfile(c *fiber.Ctx) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	var req dto.ProfileChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewBadRequest("invalid payload")
	}
	user, err := h.auth.ChangeProfile(c.UserContext(), who, service.ProfileChange{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		return mapError(err)
	}
	return c.JSON(dto.NewUserResponse(user, false))
}

func (h *AuthHandler) respondWithTokens(c *fiber.Ctx, pair domain.TokenPair) error {
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookie,
		Value:    pair.RefreshToken,
		Path:     "/",
		Expires:  pair.RefreshExpiresAt,
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(dto.NewTokenResponse(pair))
}

func (h *AuthHandler) clearRefreshCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     RefreshCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.secureCookies,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func caller(c *fiber.Ctx) (domain.Identity, error) {
	who, ok := auth.IdentityFromContext(c)
	if !ok {
		return domain.Identity{}, apperrors.NewUnauthorized("authentication required")
	}
	return who, nil
}
