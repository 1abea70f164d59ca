package handler

import (
	"github.com/gofiber/fiber/v2"

	"edms/internal/service"
)

// ListUsers returns the other users, for choosing assignees and reviewers.
//
// @Summary List users
// @Tags users
// @Produce json
// @Success 200 {array} model.User
// @Security BearerAuth
// @Router /users [get]
func ListUsers(userSvc service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		users, err := userSvc.List(c.UserContext(), actorID(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(users)
	}
}
