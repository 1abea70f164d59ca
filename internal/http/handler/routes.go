package handler

import (
	"database/sql"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"

	"edms/docs"
	"edms/internal/service"
)

// Services bundles the use cases the HTTP layer exposes.
type Services struct {
	Documents service.DocumentService
	Versions  service.VersionService
	Workflow  service.WorkflowService
	Users     service.UserService
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Probes and the API
// docs are public; everything else runs behind auth when it is non-nil.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc Services, auth fiber.Handler) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	users := protected(app, "/users", auth)
	users.Get("/", ListUsers(svc.Users))

	documents := protected(app, "/documents", auth)
	documents.Get("/", ListDocuments(svc.Documents))
	documents.Post("/", CreateDocument(svc.Documents))
	documents.Get("/:id", GetDocument(svc.Documents))
	documents.Patch("/:id", UpdateDocument(svc.Documents))
	documents.Put("/:id", ReplaceDocument(svc.Documents))
	documents.Delete("/:id", DeleteDocument(svc.Documents))
	documents.Put("/:id/action/:action", ApplyAction(svc.Workflow))
	documents.Post("/:id/review", SubmitReview(svc.Documents))
	documents.Get("/:id/versions", ListVersions(svc.Versions))
	documents.Post("/:id/versions", AddVersion(svc.Versions))

	versions := protected(app, "/versions", auth)
	versions.Get("/:vid", GetVersion(svc.Versions))
	versions.Delete("/:vid", DeleteVersion(svc.Versions))
	versions.Get("/:vid/download", DownloadVersion(svc.Versions))
}

func protected(app *fiber.App, prefix string, auth fiber.Handler) fiber.Router {
	if auth == nil {
		return app.Group(prefix)
	}
	return app.Group(prefix, auth)
}
