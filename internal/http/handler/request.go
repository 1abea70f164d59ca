package handler

import (
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"edms/internal/http/middleware"
	"edms/internal/service"
)

const fileField = "file"

// actorID returns the user id stored by middleware.Auth.
func actorID(c *fiber.Ctx) string {
	id, _ := c.Locals(middleware.UserIDLocalKey).(string)
	return id
}

func documentIDParam(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func versionIDParam(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("vid"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// upload is a multipart file opened for streaming into the service.
type upload struct {
	*service.FileUpload
	f multipart.File
}

func (u *upload) Close() {
	if u != nil && u.f != nil {
		_ = u.f.Close()
	}
}

// formFile opens the "file" part. It returns (nil, nil) when the part is absent.
func formFile(c *fiber.Ctx) (*upload, error) {
	fh, err := c.FormFile(fileField)
	if err != nil {
		return nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}

	ct := fh.Header.Get(fiber.HeaderContentType)
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &upload{
		FileUpload: &service.FileUpload{
			Reader:      f,
			Filename:    fh.Filename,
			ContentType: ct,
			Size:        fh.Size,
		},
		f: f,
	}, nil
}

// formValue returns a submitted form field, or nil when the client did not send it.
func formValue(c *fiber.Ctx, key string) *string {
	if form, err := c.MultipartForm(); err == nil {
		if v, ok := form.Value[key]; ok && len(v) > 0 {
			return &v[0]
		}
		return nil
	}
	args := c.Request().PostArgs()
	if args.Has(key) {
		v := string(args.Peek(key))
		return &v
	}
	return nil
}

// formList collects a repeated or comma separated field.
func formList(c *fiber.Ctx, key string) []string {
	var raw []string
	if form, err := c.MultipartForm(); err == nil {
		raw = form.Value[key]
	} else if v := formValue(c, key); v != nil {
		raw = []string{*v}
	}

	var out []string
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func stringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
