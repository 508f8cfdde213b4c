// Package middleware contains the HTTP middleware chain: bearer-token
// authentication, role enforcement and credential-endpoint rate limiting.
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dfelizola/internal-messenger-api/internal/token"
)

// principalKey is the echo context key under which Auth stores the resolved
// principal.
const principalKey = "principal"

// Auth returns middleware that authenticates requests via the
// `Authorization: Bearer <token>` header.  The token service performs the
// full validation (signature, expiry, subject lookup, token version, active
// flag); every failure mode collapses into the same generic 401 response so
// clients learn nothing about why a token was rejected.
func Auth(tokens *token.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				return unauthorized(c)
			}
			raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
			if raw == "" {
				return unauthorized(c)
			}
			p, err := tokens.Validate(c.Request().Context(), raw)
			if err != nil {
				return unauthorized(c)
			}
			c.Set(principalKey, p)
			return next(c)
		}
	}
}

// PrincipalFrom retrieves the authenticated principal stored by Auth.
// The second return value is false on unauthenticated routes.
func PrincipalFrom(c echo.Context) (token.Principal, bool) {
	p, ok := c.Get(principalKey).(token.Principal)
	return p, ok
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"success": false,
		"error":   "Unauthorized",
	})
}
