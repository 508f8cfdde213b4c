package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireAdmin aborts the request with 403 unless the authenticated
// principal holds the admin role.  It assumes Auth ran earlier in the
// chain; a missing principal is treated as not-admin.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, ok := PrincipalFrom(c)
		if !ok || !p.IsAdmin() {
			return c.JSON(http.StatusForbidden, echo.Map{
				"success": false,
				"error":   "Admin access required",
			})
		}
		return next(c)
	}
}
