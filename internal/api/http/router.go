package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pharmaprep/platform-api/internal/api/http/handlers"
	"github.com/pharmaprep/platform-api/internal/auth"
	"github.com/pharmaprep/platform-api/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Accounts       *handlers.AccountHandler
	Metrics        *handlers.MetricsHandler
	AuthMiddleware *auth.AuthMiddleware
	RateLimiter    fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")

	authGroup := api.Group("/auth")
	var public fiber.Router = authGroup
	if cfg.RateLimiter != nil {
		public = authGroup.Group("", cfg.RateLimiter)
	}
	public.Post("/register", cfg.Auth.Register)
	public.Post("/login", cfg.Auth.Login)
	public.Post("/forgot-password", cfg.Auth.ForgotPassword)
	public.Post("/reset-password", cfg.Auth.ResetPassword)

	protected := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())
	protected.Get("/me", cfg.Accounts.Me)
	protected.Put("/profile", cfg.Accounts.UpdateProfile)
	protected.Post("/change-password", cfg.Accounts.ChangePassword)

	admin := api.Group("/admin", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleAdmin))
	admin.Get("/metrics", cfg.Metrics.Snapshot)
}
