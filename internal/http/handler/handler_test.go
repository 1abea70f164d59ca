package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"edms/internal/errs"
	"edms/internal/http/middleware"
	"edms/internal/service"
	serviceMocks "edms/internal/service/mocks"
)

const actor = "11111111-1111-1111-1111-111111111111"

// newApp returns an app that treats every request as coming from actor.
func newApp() *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(middleware.UserIDLocalKey, actor)
		return c.Next()
	})
	return app
}

func multipartBody(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var res errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	return res
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := fiber.New()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})

	t.Run("memory backend", func(t *testing.T) {
		app := fiber.New()
		app.Get("/health", HealthCheck(nil))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListDocuments(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp()
	app.Get("/documents", ListDocuments(mockSvc))

	t.Run("success", func(t *testing.T) {
		expectedRes := &service.DocumentListResult{
			Items: []service.DocumentSummary{{DocumentID: uuid.New().String(), Title: "Invoice"}},
			Total: 1,
		}
		mockSvc.On("List", mock.Anything, actor, service.ListQuery{Limit: 10, Offset: 0}).Return(expectedRes, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents?limit=10&offset=0", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result map[string]any
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result["data"], 1)
		assert.Equal(t, float64(1), result["total"])
		mockSvc.AssertExpectations(t)
	})

	t.Run("owned filter", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, actor, service.ListQuery{Limit: 5, Offset: 10, Owned: true}).
			Return(&service.DocumentListResult{}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents?limit=5&offset=10&owned=true", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/documents?limit=abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_LIMIT", decodeError(t, resp).Error.Code)
	})

	t.Run("invalid offset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/documents?offset=-x", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_OFFSET", decodeError(t, resp).Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, actor, service.ListQuery{Limit: 10, Offset: 0}).Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		res := decodeError(t, resp)
		assert.Equal(t, "INTERNAL_ERROR", res.Error.Code)
		assert.NotContains(t, res.Error.Message, "service error")
		mockSvc.AssertExpectations(t)
	})
}

func TestCreateDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp()
	app.Post("/documents", CreateDocument(mockSvc))

	fields := map[string]string{
		"title":       "Invoice",
		"assignee_id": " 22222222-2222-2222-2222-222222222222 ",
		"priority":    "high",
		"tags":        "finance, q1",
	}

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, fields, "invoice.pdf", "hello world")

		expectedDoc := &service.DocumentView{DocumentID: uuid.New().String(), Title: "Invoice", Status: "PENDING"}
		mockSvc.On("Create", mock.Anything, actor, mock.MatchedBy(func(in service.CreateDocumentInput) bool {
			return in.Title == "Invoice" &&
				in.AssigneeID == "22222222-2222-2222-2222-222222222222" &&
				in.Priority == "high" &&
				assert.ObjectsAreEqual([]string{"finance", "q1"}, in.Tags) &&
				in.File != nil && in.File.Filename == "invoice.pdf" && in.File.Size == 11
		})).Return(expectedDoc, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var result service.DocumentView
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, expectedDoc.DocumentID, result.DocumentID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/documents", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILE_REQUIRED", decodeError(t, resp).Error.Code)
	})

	t.Run("validation error", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"title": ""}, "a.txt", "a")
		mockSvc.On("Create", mock.Anything, actor, mock.Anything).Return(nil, errs.Validation("title is required")).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		res := decodeError(t, resp)
		assert.Equal(t, "VALIDATION_ERROR", res.Error.Code)
		assert.Equal(t, "title is required", res.Error.Message)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		body, ct := multipartBody(t, fields, "test.txt", "hello")
		mockSvc.On("Create", mock.Anything, actor, mock.Anything).Return(nil, errors.New("upload failed")).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestGetDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp()
	app.Get("/documents/:id", GetDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		expectedDoc := &service.DocumentView{DocumentID: id, Title: "Invoice", AllowedActions: nil}
		mockSvc.On("Get", mock.Anything, actor, id).Return(expectedDoc, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.DocumentView
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, id, result.DocumentID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, actor, id).Return(nil, errs.NotFound("document not found")).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/documents/invalid-uuid", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Get", mock.Anything, actor, id).Return(nil, errors.New("db error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestUpdateDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp()
	app.Patch("/documents/:id", UpdateDocument(mockSvc))
	id := uuid.New().String()

	t.Run("partial update", func(t *testing.T) {
		mockSvc.On("UpdateMetadata", mock.Anything, actor, id, mock.MatchedBy(func(in service.UpdateMetadataInput) bool {
			return in.Title != nil && *in.Title == "Renamed" && in.Description == nil
		})).Return(&service.DocumentView{DocumentID: id, Title: "Renamed"}, nil).Once()

		req := httptest.NewRequest(http.MethodPatch, "/documents/"+id, strings.NewReader(`{"title":"Renamed"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("forbidden", func(t *testing.T) {
		mockSvc.On("UpdateMetadata", mock.Anything, actor, id, mock.Anything).
			Return(nil, errs.Forbidden("only the creator or assignee may edit this document")).Once()

		req := httptest.NewRequest(http.MethodPatch, "/documents/"+id, strings.NewReader(`{"description":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "FORBIDDEN", decodeError(t, resp).Error.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/documents/"+id, strings.NewReader(`{"title":`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_BODY", decodeError(t, resp).Error.Code)
	})
}

func TestReplaceDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp()
	app.Put("/documents/:id", ReplaceDocument(mockSvc))
	id := uuid.New().String()

	t.Run("with file", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"title": "T", "description": "D"}, "v2.txt", "two")
		mockSvc.On("Replace", mock.Anything, actor, id, mock.MatchedBy(func(in service.ReplaceDocumentInput) bool {
			return *in.Title == "T" && *in.Description == "D" && in.File != nil && in.File.Filename == "v2.txt"
		})).Return(&service.DocumentView{DocumentID: id}, nil).Once()

		req := httptest.NewRequest(http.MethodPut, "/documents/"+id, body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("without file and description", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"title": "T"}, "", "")
		mockSvc.On("Replace", mock.Anything, actor, id, mock.MatchedBy(func(in service.ReplaceDocumentInput) bool {
			return in.Title != nil && in.Description == nil && in.File == nil
		})).Return(nil, errs.Validation("description is required")).Once()

		req := httptest.NewRequest(http.MethodPut, "/documents/"+id, body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestDeleteDocument(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp()
	app.Delete("/documents/:id", DeleteDocument(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, actor, id).Return(nil).Once()

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, actor, id).Return(errs.NotFound("document not found")).Once()

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("service error", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("Delete", mock.Anything, actor, id).Return(errors.New("delete error")).Once()

		req := httptest.NewRequest(http.MethodDelete, "/documents/"+id, nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestSubmitReview(t *testing.T) {
	mockSvc := new(serviceMocks.MockDocumentService)
	app := newApp()
	app.Post("/documents/:id/review", SubmitReview(mockSvc))
	id := uuid.New().String()

	t.Run("date only", func(t *testing.T) {
		want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
		mockSvc.On("SubmitReview", mock.Anything, actor, id, mock.MatchedBy(func(in service.ReviewInput) bool {
			return in.Notes == "looks fine" && in.ReviewDate != nil && in.ReviewDate.Equal(want)
		})).Return(&service.DocumentView{DocumentID: id, ReviewNotes: "looks fine"}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/"+id+"/review",
			strings.NewReader(`{"review_notes":"looks fine","review_date":"2024-03-01"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("default date", func(t *testing.T) {
		mockSvc.On("SubmitReview", mock.Anything, actor, id, service.ReviewInput{Notes: "ok"}).
			Return(&service.DocumentView{DocumentID: id}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/"+id+"/review", strings.NewReader(`{"review_notes":"ok"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid date", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/documents/"+id+"/review",
			strings.NewReader(`{"review_notes":"x","review_date":"yesterday"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_REVIEW_DATE", decodeError(t, resp).Error.Code)
	})

	t.Run("archived", func(t *testing.T) {
		mockSvc.On("SubmitReview", mock.Anything, actor, id, mock.Anything).
			Return(nil, errs.InvalidTransition("document is archived")).Once()

		req := httptest.NewRequest(http.MethodPost, "/documents/"+id+"/review", strings.NewReader(`{"review_notes":"late"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, "INVALID_TRANSITION", decodeError(t, resp).Error.Code)
	})
}

func TestApplyAction(t *testing.T) {
	mockSvc := new(serviceMocks.MockWorkflowService)
	app := newApp()
	app.Put("/documents/:id/action/:action", ApplyAction(mockSvc))
	id := uuid.New().String()

	tests := []struct {
		name       string
		action     string
		body       string
		input      service.ActionInput
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "approve", action: "approve", input: service.ActionInput{Action: "approve"}, wantStatus: http.StatusOK},
		{
			name:       "resubmit to another assignee",
			action:     "resubmit",
			body:       `{"assignee_id":"44444444-4444-4444-4444-444444444444"}`,
			input:      service.ActionInput{Action: "resubmit", AssigneeID: "44444444-4444-4444-4444-444444444444"},
			wantStatus: http.StatusOK,
		},
		{name: "forbidden", action: "reject", input: service.ActionInput{Action: "reject"}, err: errs.Forbidden("not allowed"), wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
		{name: "invalid transition", action: "approve", input: service.ActionInput{Action: "approve"}, err: errs.InvalidTransition("cannot approve"), wantStatus: http.StatusConflict, wantCode: "INVALID_TRANSITION"},
		{name: "unknown action", action: "publish", input: service.ActionInput{Action: "publish"}, err: errs.InvalidTransition("unknown action"), wantStatus: http.StatusConflict, wantCode: "INVALID_TRANSITION"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err != nil {
				mockSvc.On("Apply", mock.Anything, actor, id, tt.input).Return(nil, tt.err).Once()
			} else {
				mockSvc.On("Apply", mock.Anything, actor, id, tt.input).Return(&service.DocumentView{DocumentID: id}, nil).Once()
			}

			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(http.MethodPut, "/documents/"+id+"/action/"+tt.action, body)
			if tt.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			resp, _ := app.Test(req)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, resp).Error.Code)
			}
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestListUsers(t *testing.T) {
	mockSvc := new(serviceMocks.MockUserService)
	app := newApp()
	app.Get("/users", ListUsers(mockSvc))

	mockSvc.On("List", mock.Anything, actor).Return(nil, errors.New("db down")).Once()
	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/users", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	mockSvc.AssertExpectations(t)
}

func TestRouting(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: ErrorHandler(),
	})

	secret := []byte("routing-secret")
	docs := new(serviceMocks.MockDocumentService)
	RegisterRoutes(app, nil, Services{
		Documents: docs,
		Versions:  new(serviceMocks.MockVersionService),
		Workflow:  new(serviceMocks.MockWorkflowService),
		Users:     new(serviceMocks.MockUserService),
	}, middleware.Auth(secret))

	t.Run("not found route", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/non-existent", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		// Health endpoint only allows GET
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp).Error.Code)
	})

	t.Run("probes are public", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("api requires a token", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/documents", nil))

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, resp).Error.Code)
	})

	t.Run("token subject becomes the actor", func(t *testing.T) {
		token, err := middleware.SignToken(secret, actor, jwt.RegisteredClaims{})
		require.NoError(t, err)
		docs.On("List", mock.Anything, actor, service.ListQuery{Limit: 10}).Return(&service.DocumentListResult{}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/documents", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		docs.AssertExpectations(t)
	})
}
