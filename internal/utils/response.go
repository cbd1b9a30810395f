package utils

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// SuccessResponse sends a standard success response
func SuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(data)
}

// ErrorResponse sends a standard error response
func ErrorResponse(c *fiber.Ctx, message string, status int, errorType string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}

// NotFoundResponse sends a 404 not found response
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"status":    fiber.StatusNotFound,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
	})
}

// ValidationErrorResponse sends a 400 for malformed or incomplete input
func ValidationErrorResponse(c *fiber.Ctx, message string) error {
	return ErrorResponse(c, message, fiber.StatusBadRequest, "validation")
}

// PreconditionErrorResponse sends a 409 for domain-state precondition
// violations, such as activating a release that is missing core apps.
func PreconditionErrorResponse(c *fiber.Ctx, message string) error {
	return ErrorResponse(c, message, fiber.StatusConflict, "precondition")
}

// MutationSuccessResponse sends a success envelope for mutations
func MutationSuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(fiber.Map{
		"message":   "Success",
		"ok":        true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      data,
	})
}

// ErrorResponseStruct defines the schema for error responses
type ErrorResponseStruct struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Ok        bool   `json:"ok"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url"`
	Type      string `json:"type,omitempty"`
}

// SuccessResponseStruct defines the schema for mutation success responses
type SuccessResponseStruct struct {
	Message   string      `json:"message"`
	Ok        bool        `json:"ok"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}
