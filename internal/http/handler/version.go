package handler

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"edms/internal/service"
)

// ListVersions returns the versions of a document ordered by version number.
//
// @Summary List versions
// @Tags versions
// @Produce json
// @Param id path string true "document id"
// @Success 200 {array} service.VersionView
// @Failure 404 {object} errorPayload
// @Security BearerAuth
// @Router /documents/{id}/versions [get]
func ListVersions(verSvc service.VersionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentIDParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		versions, err := verSvc.List(c.UserContext(), actorID(c), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(versions)
	}
}

// AddVersion uploads a new version. The version number is assigned by the server.
//
// @Summary Upload a version
// @Tags versions
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "document id"
// @Param file formData file true "content"
// @Success 201 {object} service.VersionView
// @Failure 400 {object} errorPayload
// @Failure 409 {object} errorPayload "VERSION_CONFLICT is safe to retry"
// @Security BearerAuth
// @Router /documents/{id}/versions [post]
func AddVersion(verSvc service.VersionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentIDParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		up, err := formFile(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		if up == nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		defer up.Close()

		v, err := verSvc.Add(c.UserContext(), actorID(c), id, up.FileUpload)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(v)
	}
}

// GetVersion returns one version's metadata.
//
// @Summary Get a version
// @Tags versions
// @Produce json
// @Param vid path int true "version id"
// @Success 200 {object} service.VersionView
// @Failure 404 {object} errorPayload
// @Security BearerAuth
// @Router /versions/{vid} [get]
func GetVersion(verSvc service.VersionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vid, ok := versionIDParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		v, err := verSvc.Get(c.UserContext(), actorID(c), vid)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(v)
	}
}

// DeleteVersion removes one version. Remaining versions keep their numbers.
//
// @Summary Delete a version
// @Tags versions
// @Param vid path int true "version id"
// @Success 204
// @Failure 404 {object} errorPayload
// @Security BearerAuth
// @Router /versions/{vid} [delete]
func DeleteVersion(verSvc service.VersionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vid, ok := versionIDParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := verSvc.Delete(c.UserContext(), actorID(c), vid); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DownloadVersion streams a version's content, or redirects to a presigned URL.
//
// @Summary Download a version
// @Tags versions
// @Produce octet-stream
// @Param vid path int true "version id"
// @Success 200 {file} file
// @Success 302 "redirect to presigned storage URL"
// @Failure 404 {object} errorPayload
// @Security BearerAuth
// @Router /versions/{vid}/download [get]
func DownloadVersion(verSvc service.VersionService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vid, ok := versionIDParam(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		dl, err := verSvc.Open(c.UserContext(), actorID(c), vid)
		if err != nil {
			return writeServiceError(c, err)
		}
		if dl.RedirectURL != "" {
			return c.Redirect(dl.RedirectURL, fiber.StatusFound)
		}

		c.Attachment(dl.Filename)
		if dl.ContentType != "" {
			c.Set(fiber.HeaderContentType, dl.ContentType)
		}
		size := -1
		if dl.Size > 0 {
			size = int(dl.Size)
			c.Set(fiber.HeaderContentLength, strconv.FormatInt(dl.Size, 10))
		}
		// fasthttp closes the body once it has been written
		return c.SendStream(dl.Body, size)
	}
}
