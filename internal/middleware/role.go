package middleware // middleware provides shared request processing for handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Actor roles carried in the JWT "role" claim.
const (
	RoleBroker = "BROKER"
	RoleDriver = "DRIVER"
)

// RequireRole returns a middleware function that enforces that the
// authenticated actor has one of the specified roles. If the actor's role is
// not in the allowed set, the request is aborted with a 403 Forbidden
// response. It assumes JWTAuth has already extracted the role into the
// context under the key "role".
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			v := c.Get("role")
			role, ok := v.(string)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
