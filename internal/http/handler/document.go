package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"edms/internal/service"
)

type metadataRequest struct {
	Title       *string `json:"title" form:"title"`
	Description *string `json:"description" form:"description"`
}

type reviewRequest struct {
	Notes      string `json:"review_notes" form:"review_notes"`
	ReviewDate string `json:"review_date" form:"review_date"`
}

// ListDocuments returns a page of documents.
//
// @Summary List documents
// @Tags documents
// @Produce json
// @Param limit query int false "page size" default(10)
// @Param offset query int false "page offset" default(0)
// @Param owned query bool false "only documents created by the caller"
// @Success 200 {object} service.DocumentListResult
// @Failure 400 {object} errorPayload
// @Security BearerAuth
// @Router /documents [get]
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := docSvc.List(c.UserContext(), actorID(c), service.ListQuery{
			Limit:  limit,
			Offset: offset,
			Owned:  c.QueryBool("owned"),
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// CreateDocument stores a document together with its first version.
//
// @Summary Create a document
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "first version"
// @Param title formData string true "title"
// @Param description formData string false "description"
// @Param assignee_id formData string true "first assignee"
// @Param reviewer_id formData string false "reviewer"
// @Param priority formData string false "low, medium or high"
// @Param document_type formData string false "document type"
// @Param tags formData string false "comma separated tags"
// @Success 201 {object} service.DocumentView
// @Failure 400 {object} errorPayload
// @Security BearerAuth
// @Router /documents [post]
func CreateDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		up, err := formFile(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		if up == nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		defer up.Close()

		doc, err := docSvc.Create(c.UserContext(), actorID(c), service.CreateDocumentInput{
			Title:        stringValue(formValue(c, "title")),
			Description:  stringValue(formValue(c, "description")),
			AssigneeID:   strings.TrimSpace(stringValue(formValue(c, "assignee_id"))),
			ReviewerID:   strings.TrimSpace(stringValue(formValue(c, "reviewer_id"))),
			Priority:     stringValue(formValue(c, "priority")),
			DocumentType: stringValue(formValue(c, "document_type")),
			Tags:         formList(c, "tags"),
			File:         up.FileUpload,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// GetDocument returns the document view for the caller, including allowed actions.
//
// @Summary Get a document
// @Tags documents
// @Produce json
// @Param id path string true "document id"
// @Success 200 {object} service.DocumentView
// @Failure 404 {object} errorPayload
// @Security BearerAuth
// @Router /documents/{id} [get]
func GetDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentIDParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := docSvc.Get(c.UserContext(), actorID(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// UpdateDocument changes the supplied metadata fields only.
//
// @Summary Update document metadata
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "document id"
// @Param body body metadataRequest true "fields to change"
// @Success 200 {object} service.DocumentView
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Security BearerAuth
// @Router /documents/{id} [patch]
func UpdateDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentIDParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var req metadataRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		doc, err := docSvc.UpdateMetadata(c.UserContext(), actorID(c), id, service.UpdateMetadataInput{
			Title:       req.Title,
			Description: req.Description,
		})
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// ReplaceDocument sets title and description and, when a file is attached, adds a version.
//
// @Summary Replace a document
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "document id"
// @Param title formData string true "title"
// @Param description formData string true "description"
// @Param file formData file false "new version"
// @Success 200 {object} service.DocumentView
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Security BearerAuth
// @Router /documents/{id} [put]
func ReplaceDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentIDParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		up, err := formFile(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer up.Close()

		in := service.ReplaceDocumentInput{
			Title:       formValue(c, "title"),
			Description: formValue(c, "description"),
		}
		if up != nil {
			in.File = up.FileUpload
		}

		doc, err := docSvc.Replace(c.UserContext(), actorID(c), id, in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

// DeleteDocument removes a document and all of its versions.
//
// @Summary Delete a document
// @Tags documents
// @Param id path string true "document id"
// @Success 204
// @Failure 404 {object} errorPayload
// @Security BearerAuth
// @Router /documents/{id} [delete]
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentIDParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := docSvc.Delete(c.UserContext(), actorID(c), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// SubmitReview records the reviewer's notes.
//
// @Summary Submit review notes
// @Tags documents
// @Accept json
// @Produce json
// @Param id path string true "document id"
// @Param body body reviewRequest true "review notes; review_date is RFC 3339 or YYYY-MM-DD"
// @Success 200 {object} service.DocumentView
// @Failure 403 {object} errorPayload
// @Failure 409 {object} errorPayload
// @Security BearerAuth
// @Router /documents/{id}/review [post]
func SubmitReview(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentIDParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var req reviewRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		in := service.ReviewInput{Notes: req.Notes}
		if req.ReviewDate != "" {
			d, err := parseDate(req.ReviewDate)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_REVIEW_DATE", "review_date must be RFC 3339 or YYYY-MM-DD")
			}
			in.ReviewDate = &d
		}

		doc, err := docSvc.SubmitReview(c.UserContext(), actorID(c), id, in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(doc)
	}
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}
