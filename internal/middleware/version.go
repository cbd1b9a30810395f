package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	apiVersionHeader  = "X-Api-Version"
	defaultAPIVersion = "1.0.0"
)

// VersionMiddleware stores the caller's API version in the request context.
// Short forms like "1.0" are padded to three segments so downstream
// comparisons never see mixed shapes.
func VersionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		version := strings.TrimSpace(c.Get(apiVersionHeader))
		if version == "" {
			version = defaultAPIVersion
		}
		for strings.Count(version, ".") < 2 {
			version += ".0"
		}
		c.Locals("apiVersion", version)
		return c.Next()
	}
}
