// Package router wires HTTP routes to handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/dfelizola/internal-messenger-api/internal/config"
	"github.com/dfelizola/internal-messenger-api/internal/handler"
	"github.com/dfelizola/internal-messenger-api/internal/middleware"
	"github.com/dfelizola/internal-messenger-api/internal/token"
)

// Register mounts every route of the API on the provided Echo instance.
//
// Route map (all JSON, under /api/v1 except the health check):
//
//	public:      POST /login, POST /register        (rate limited)
//	per-session: POST /logout, POST /refresh_token,
//	             GET /profile, PUT /profile, GET /users,
//	             GET /users/:id, PUT /users/:id     (self-or-admin in handler)
//	admin only:  POST /users, DELETE /users/:id,
//	             PATCH /users/:id/activate, /deactivate, /invalidate_tokens
func Register(e *echo.Echo, cfg config.Config, a *handler.AuthHandler, u *handler.UsersHandler, tokens *token.Service, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)

	v1 := e.Group("/api/v1")

	// Credential endpoints take no token and carry the brute-force limiter.
	limited := v1.Group("")
	limited.Use(middleware.RateLimit(config.LoadRateLimitConfig(), rdb))
	limited.POST("/login", a.Login)
	limited.POST("/register", a.Register)

	// Everything below requires a live token.
	auth := v1.Group("")
	auth.Use(middleware.Auth(tokens))
	auth.POST("/logout", a.Logout)
	auth.POST("/refresh_token", a.RefreshToken)
	auth.GET("/profile", a.Profile)
	auth.PUT("/profile", a.UpdateProfile)

	// Directory: index is open to any authenticated user; show and update
	// enforce self-or-admin inside the handler because the rule depends on
	// the :id parameter.
	auth.GET("/users", u.Index)
	auth.GET("/users/:id", u.Show)
	auth.PUT("/users/:id", u.Update)

	admin := auth.Group("")
	admin.Use(middleware.RequireAdmin)
	admin.POST("/users", u.Create)
	admin.DELETE("/users/:id", u.Delete)
	admin.PATCH("/users/:id/activate", u.Activate)
	admin.PATCH("/users/:id/deactivate", u.Deactivate)
	admin.PATCH("/users/:id/invalidate_tokens", u.InvalidateTokens)
}
