package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"edms/internal/errs"
	"edms/internal/http/middleware"
)

// errorPayload is the body of every non-2xx response.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorMapping struct {
	status int
	code   string
}

// domain error kinds; the service message is safe to show.
var kindMappings = map[errs.Kind]errorMapping{
	errs.KindNotFound:          {fiber.StatusNotFound, "NOT_FOUND"},
	errs.KindValidation:        {fiber.StatusBadRequest, "VALIDATION_ERROR"},
	errs.KindForbidden:         {fiber.StatusForbidden, "FORBIDDEN"},
	errs.KindInvalidTransition: {fiber.StatusConflict, "INVALID_TRANSITION"},
	errs.KindConflict:          {fiber.StatusConflict, "VERSION_CONFLICT"},
}

// errors raised by fiber itself or by middleware before a handler runs.
var frameworkErrors = map[int]errorEnvelope{
	fiber.StatusBadRequest:            {"BAD_REQUEST", "bad request"},
	fiber.StatusUnauthorized:          {"UNAUTHORIZED", "authentication required"},
	fiber.StatusNotFound:              {"NOT_FOUND", "resource not found"},
	fiber.StatusMethodNotAllowed:      {"METHOD_NOT_ALLOWED", "method not allowed"},
	fiber.StatusRequestEntityTooLarge: {"PAYLOAD_TOO_LARGE", "request body too large"},
}

func requestID(c *fiber.Ctx) string {
	id, _ := c.Locals(middleware.RequestIDLocalKey).(string)
	return id
}

// writeError renders the error envelope. message must never carry internal detail.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		RequestID: requestID(c),
		Error:     errorEnvelope{Code: code, Message: message},
	})
}

// writeServiceError renders an error returned by a service. Unclassified errors
// become a generic 500 and the cause is handed to the access log.
func writeServiceError(c *fiber.Ctx, err error) error {
	if m, ok := kindMappings[errs.KindOf(err)]; ok {
		return writeError(c, m.status, m.code, err.Error())
	}
	c.Locals(middleware.ErrorLocalKey, err)
	return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
}

// ErrorHandler is the app-wide fiber error handler.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if !errors.As(err, &fe) {
			c.Locals(middleware.ErrorLocalKey, err)
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		if e, ok := frameworkErrors[fe.Code]; ok {
			return writeError(c, fe.Code, e.Code, e.Message)
		}
		return writeError(c, fe.Code, "INTERNAL_ERROR", "internal server error")
	}
}
