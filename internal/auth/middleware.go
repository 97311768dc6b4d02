package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/facezhuk/internal/domain"
	apperrors "github.com/spec-kit/facezhuk/pkg/util/errorutil"
)

const identityKey = "auth_identity"

// IdentityResolver resolves the caller identity from a bearer token.
type IdentityResolver interface {
	ResolveIdentity(token string, enforceExpiry bool) (domain.Identity, error)
}

// AuthMiddleware validates bearer access tokens on protected routes.
type AuthMiddleware struct {
	tokens IdentityResolver
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens IdentityResolver) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	identity, err := m.tokens.ResolveIdentity(strings.TrimSpace(parts[1]), true)
	if err != nil {
		return apperrors.NewUnauthorized(err.Error())
	}

	c.Locals(identityKey, identity)
	return c.Next()
}

// IdentityFromContext retrieves the authenticated identity.
func IdentityFromContext(c *fiber.Ctx) (domain.Identity, bool) {
	identity, ok := c.Locals(identityKey).(domain.Identity)
	return identity, ok
}
