package repository

import (
	"context"

	"edms/internal/model"
)

// DocumentRepository defines data access for documents.
// Workflow and policy decisions are made by callers; Mutate only provides the locking.
type DocumentRepository interface {
	// Create inserts doc together with its first version in one atomic unit.
	// first.VersionNumber is forced to 1 and first.ID is filled in on success.
	Create(ctx context.Context, doc *model.Document, first *model.DocumentVersion) error

	// FindByID returns a document by its ID.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// List returns a paginated list of documents and the total row count for the given filter.
	List(ctx context.Context, f ListFilter) (*PageResult[model.Document], error)

	// Mutate loads the document under a row lock, applies fn and persists the
	// result when fn returns nil. fn's error is returned unchanged and nothing is written.
	Mutate(ctx context.Context, id string, fn func(doc *model.Document) error) (*model.Document, error)

	// Replace is Mutate plus, when next is non-nil, appending next as a new version
	// under the same lock. Either both writes happen or neither does.
	Replace(ctx context.Context, id string, fn func(doc *model.Document) error, next *model.DocumentVersion) (*model.Document, *model.DocumentVersion, error)

	// Delete removes the document and, in the same transaction, all of its versions.
	// It returns the storage paths of the removed versions.
	Delete(ctx context.Context, id string) ([]string, error)
}

// ListFilter narrows a document listing.
type ListFilter struct {
	// OwnerID restricts the listing to documents created by this user when non-empty.
	OwnerID string
	PageQuery
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
