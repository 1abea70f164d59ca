package repository

import (
	"context"

	"edms/internal/model"
)

// VersionRepository stores immutable document versions.
type VersionRepository interface {
	// Add assigns the next version number of v.DocumentID and inserts v.
	// Numbers come from a per-document counter, so a number is never handed out twice,
	// even after the latest version is deleted.
	// A non-nil guard runs against the document while it is locked; its error is
	// returned unchanged and nothing is written.
	Add(ctx context.Context, v *model.DocumentVersion, guard func(doc *model.Document) error) (*model.DocumentVersion, error)

	// ListByDocument returns versions ordered by version number ascending.
	ListByDocument(ctx context.Context, documentID string) ([]model.DocumentVersion, error)

	FindByID(ctx context.Context, id int64) (*model.DocumentVersion, error)

	// Delete removes one version. Remaining versions keep their numbers.
	Delete(ctx context.Context, id int64) error
}
