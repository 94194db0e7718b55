package middleware

import (
	"slices"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Context keys set by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRoles  = "roles"
)

// UserID returns the authenticated user id, or false for guests.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// Roles returns the role names carried by the access token.
func Roles(c echo.Context) []string {
	roles, _ := c.Get(ctxRoles).([]string)
	return roles
}

// HasRole reports whether the caller holds any of roles.
func HasRole(c echo.Context, roles ...string) bool {
	for _, r := range Roles(c) {
		if slices.Contains(roles, r) {
			return true
		}
	}
	return false
}

// subject is the rate limit identity of the caller.
func subject(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
