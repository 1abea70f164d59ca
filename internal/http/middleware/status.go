package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// ErrorLocalKey holds the underlying cause of a response the handlers already wrote as an error envelope.
const ErrorLocalKey = "error_cause"

// statusOf returns the status the client will see. Errors returned from the chain are
// rendered later by the app's ErrorHandler, so the response code is not yet final here.
func statusOf(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}
