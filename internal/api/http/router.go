package http

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/facezhuk/internal/api/http/handlers"
	"github.com/spec-kit/facezhuk/internal/auth"
	"github.com/spec-kit/facezhuk/internal/ratelimit"
)

// Request budgets.
var (
	RegisterRule      = ratelimit.Rule{Name: "register", Limit: 10, Window: time.Minute}
	NotificationsRule = ratelimit.Rule{Name: "notifications", Limit: 5, Window: time.Second}
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	// Limiter is optional; routes are unthrottled without it.
	Limiter *ratelimit.Limiter
	Metrics http.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics))
	}

	api := app.Group("/api")
	api.Post("/register", limit(cfg.Limiter, RegisterRule, ratelimit.ByIP), cfg.Auth.Register)
	api.Post("/login", cfg.Auth.Login)
	api.Post("/social-login", cfg.Auth.SocialLogin)
	api.Post("/refresh", cfg.Auth.Refresh)
	api.Post("/activate", cfg.Auth.Activate)
	api.Post("/forgot-password", cfg.Auth.ForgotPassword)
	api.Post("/reset-password", cfg.Auth.ResetPassword)

	protected := api.Group("", cfg.AuthMiddleware.Handle)
	protected.Post("/change-password", cfg.Auth.ChangePassword)
	protected.Get("/account", cfg.Auth.Account)
	protected.Post("/account/two-factor-auth", cfg.Auth.TwoFactor)
	protected.Patch("/account/change", cfg.Auth.ChangeProfile)

	notifications := protected.Group("/notifications", limit(cfg.Limiter, NotificationsRule, byUsername))
	notifications.Get("", cfg.Notifications.List)
	notifications.Patch("", cfg.Notifications.Mark)
	notifications.Post("", cfg.Notifications.Notify)
}

func limit(l *ratelimit.Limiter, rule ratelimit.Rule, key ratelimit.KeyFunc) fiber.Handler {
	if l == nil {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return l.Middleware(rule, key)
}

func byUsername(c *fiber.Ctx) string {
	if who, ok := auth.IdentityFromContext(c); ok {
		return "user:" + who.Username
	}
	return "ip:" + c.IP()
}
