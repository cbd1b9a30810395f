package middleware

import (
	"fmt"

	"github.com/axisops/releasehub/internal/services"
	"github.com/axisops/releasehub/internal/types"
	"github.com/gofiber/fiber/v2"
)

// AuthAdmin guards the mutating release and update routes.
func AuthAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authorize(c, []string{"admin"}, "release.authorization.admin")
	}
}

// AuthUser guards read-only routes.
func AuthUser() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return authorize(c, []string{"user"}, "release.authorization.user")
	}
}

func authorize(c *fiber.Ctx, roles []string, errorType string) error {
	session := c.Cookies("cookie_session")
	if session == "" {
		return types.Forbidden("Authorizer cookie \"cookie_session\" not found", errorType)
	}

	data, err := services.ValidateSession(session, roles)
	if err != nil {
		return types.Forbidden(fmt.Sprintf("Invalid session: %v", err), errorType)
	}

	if user, ok := data["user"]; ok {
		c.Locals("user", user)
	}

	return c.Next()
}
