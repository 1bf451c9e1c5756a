package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/field-service/internal/domain"
)

// RequireAuth ensures any authenticated caller.
func RequireAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := ActorFromContext(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		return c.Next()
	}
}

// RequireRole ensures the caller holds at least the given role in the
// engineer < manager < admin < superadmin order.
func RequireRole(min domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if actor.Role.Rank() < min.Rank() {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

// RequireEngineer ensures the caller is an engineer-role account.
func RequireEngineer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if actor.Role != domain.RoleEngineer {
			return fiber.NewError(http.StatusForbidden, "engineer role required")
		}
		return c.Next()
	}
}
