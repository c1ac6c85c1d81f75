package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/task-tracker/internal/model"
)

// RequireRole aborts with 403 unless the authenticated caller's role is
// one of the allowed set. It assumes JWTAuth already ran; a missing or
// mistyped role value counts as forbidden. Roles are the closed
// model.Role enumeration, so a token carrying an unknown role string
// never gets past token parsing in the first place.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := c.Get(CtxRole).(model.Role)
			if !ok || !allowed[role] {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
