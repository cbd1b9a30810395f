package handlers

import (
	"strconv"

	"github.com/authorizerdev/authorizer-go"
	"github.com/axisops/releasehub/internal/types"
	"github.com/axisops/releasehub/internal/utils"
	"github.com/gofiber/fiber/v2"
)

// parseIDParam reads a numeric path parameter.
func parseIDParam(c *fiber.Ctx, name string) (uint64, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, &types.ValidationError{Message: "invalid " + name + " parameter"}
	}
	return id, nil
}

// domainErrorResponse maps typed service errors onto the response envelopes.
// Anything untyped is an internal error.
func domainErrorResponse(c *fiber.Ctx, err error, errorType string) error {
	switch {
	case types.IsNotFound(err):
		return utils.NotFoundResponse(c, err.Error())
	case types.IsValidation(err):
		return utils.ValidationErrorResponse(c, err.Error())
	case types.IsPrecondition(err):
		return utils.PreconditionErrorResponse(c, err.Error())
	default:
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, errorType)
	}
}

// actorFrom extracts the authenticated user's email for audit attribution.
// Unauthenticated test contexts yield an empty actor.
func actorFrom(c *fiber.Ctx) string {
	user := c.Locals("user")
	if user == nil {
		return ""
	}
	if u, ok := user.(*authorizer.User); ok && u != nil {
		return u.Email
	}
	if m, ok := user.(map[string]interface{}); ok {
		if email, ok := m["email"].(string); ok {
			return email
		}
	}
	return ""
}
