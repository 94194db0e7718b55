package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRoles lets the request through when the caller holds at least one
// of roles. It must run after JWTAuth.
func RequireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !HasRole(c, roles...) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
