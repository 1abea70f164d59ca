package handler

import (
	"github.com/gofiber/fiber/v2"

	"edms/internal/service"
)

type actionRequest struct {
	AssigneeID string `json:"assignee_id" form:"assignee_id"`
}

// ApplyAction runs a workflow action on a document.
//
// @Summary Apply a workflow action
// @Tags workflow
// @Accept json
// @Produce json
// @Param id path string true "document id"
// @Param action path string true "approve, reject, esign, archive or resubmit"
// @Param body body actionRequest false "optional next assignee"
// @Success 200 {object} service.DocumentView
// @Failure 403 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Security BearerAuth
// @Router /documents/{id}/action/{action} [put]
func ApplyAction(wfSvc service.WorkflowService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentIDParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var req actionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
			}
		}

		doc, err := wfSvc.Apply(c.UserContext(), actorID(c), id, service.ActionInput{
			Action:     c.Params("action"),
			AssigneeID: req.AssigneeID,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}
