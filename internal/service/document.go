package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"edms/internal/cache"
	"edms/internal/errs"
	"edms/internal/model"
	"edms/internal/policy"
	"edms/internal/repository"
)

const (
	defaultListLimit = 10
	maxListLimit     = 100
)

// CreateDocumentInput carries a new document and its first file.
type CreateDocumentInput struct {
	Title        string
	Description  string
	AssigneeID   string
	ReviewerID   string
	Priority     string
	DocumentType string
	Tags         []string
	File         *FileUpload
}

// UpdateMetadataInput is a partial update; nil fields are left unchanged.
type UpdateMetadataInput struct {
	Title       *string
	Description *string
}

// ReplaceDocumentInput is a full update. Title and Description are both required;
// File, when present, becomes a new version.
type ReplaceDocumentInput struct {
	Title       *string
	Description *string
	File        *FileUpload
}

// ReviewInput records a reviewer's notes. ReviewDate defaults to now.
type ReviewInput struct {
	Notes      string
	ReviewDate *time.Time
}

// ListQuery selects a page of documents. Owned restricts it to the actor's own documents.
type ListQuery struct {
	Limit  int
	Offset int
	Owned  bool
}

// DocumentService defines the document registry use cases.
type DocumentService interface {
	// Create stores the document and its first version as one unit; the uploaded
	// blob is removed again if the rows cannot be written.
	Create(ctx context.Context, actorID string, in CreateDocumentInput) (*DocumentView, error)

	// Get returns the detail view with versions and the actor's allowed actions.
	Get(ctx context.Context, actorID, id string) (*DocumentView, error)

	// List returns documents newest first using limit/offset and a total count.
	List(ctx context.Context, actorID string, q ListQuery) (*DocumentListResult, error)

	UpdateMetadata(ctx context.Context, actorID, id string, in UpdateMetadataInput) (*DocumentView, error)

	Replace(ctx context.Context, actorID, id string, in ReplaceDocumentInput) (*DocumentView, error)

	// Delete removes the document with all of its versions. Only the creator may do so.
	Delete(ctx context.Context, actorID, id string) error

	// SubmitReview records review notes. Only the reviewer may do so.
	SubmitReview(ctx context.Context, actorID, id string, in ReviewInput) (*DocumentView, error)
}

type documentService struct {
	Dependencies
	log *zap.Logger
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(deps Dependencies) DocumentService {
	deps = deps.withDefaults()
	return &documentService{
		Dependencies: deps,
		log:          deps.Logger.With(zap.String("service", "documents")),
	}
}

func (s *documentService) Create(ctx context.Context, actorID string, in CreateDocumentInput) (*DocumentView, error) {
	title, err := validateTitle(in.Title)
	if err != nil {
		return nil, err
	}
	priority := model.Priority(strings.ToLower(strings.TrimSpace(in.Priority)))
	if !priority.Valid() {
		return nil, errs.Validation("priority must be one of low, medium, high")
	}
	if strings.TrimSpace(in.AssigneeID) == "" {
		return nil, errs.Validation("assignee_id is required")
	}
	if err := in.File.validate(); err != nil {
		return nil, err
	}

	creator, err := lookupUser(ctx, s.Users, actorID, "creator")
	if err != nil {
		return nil, err
	}
	assignee, err := lookupUser(ctx, s.Users, strings.TrimSpace(in.AssigneeID), "assignee_id")
	if err != nil {
		return nil, err
	}
	var reviewer *model.UserRef
	if id := strings.TrimSpace(in.ReviewerID); id != "" {
		u, err := lookupUser(ctx, s.Users, id, "reviewer_id")
		if err != nil {
			return nil, err
		}
		ref := u.Ref()
		reviewer = &ref
	}

	doc := &model.Document{
		ID:           uuid.NewString(),
		Title:        title,
		Description:  in.Description,
		Status:       model.StatusPending,
		Priority:     priority,
		DocumentType: strings.TrimSpace(in.DocumentType),
		Tags:         normalizeTags(in.Tags),
		CreatedBy:    creator.Ref(),
		AssignedTo:   assignee.Ref(),
		Reviewer:     reviewer,
	}

	info, err := s.putVersionBlob(ctx, doc.ID, in.File)
	if err != nil {
		return nil, err
	}
	first := &model.DocumentVersion{
		Filename:    in.File.Filename,
		StoragePath: info.Key,
		Size:        info.Size,
		ContentType: info.ContentType,
		CreatedBy:   creator.Ref(),
	}
	if err := s.Documents.Create(ctx, doc, first); err != nil {
		return nil, s.rollbackBlob(ctx, info.Key, mapRepoErr(err, "save document"))
	}

	s.Metrics.VersionCreated(first.Size)
	s.log.Info("document created",
		zap.String("document_id", doc.ID),
		zap.String("actor_id", actorID),
		zap.String("assignee_id", doc.AssignedTo.ID),
	)
	return newDocumentView(doc, []model.DocumentVersion{*first}, actorID), nil
}

func (s *documentService) Get(ctx context.Context, actorID, id string) (*DocumentView, error) {
	id, err := parseDocumentID(id)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	return newDocumentView(&snap.Document, snap.Versions, actorID), nil
}

// snapshot serves the actor-independent part of a view, from the cache when possible.
func (s *documentService) snapshot(ctx context.Context, id string) (*cache.Snapshot, error) {
	snap, ok, err := s.Cache.Get(ctx, id)
	if err != nil {
		s.log.Warn("cache get failed", zap.String("document_id", id), zap.Error(err))
	}
	if ok {
		return snap, nil
	}

	// read before loading: an invalidation racing with this load bumps it and retires our copy
	gen, genErr := s.Cache.Generation(ctx, id)
	if genErr != nil {
		s.log.Warn("cache generation failed", zap.String("document_id", id), zap.Error(genErr))
	}

	doc, err := s.Documents.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "document")
	}
	versions, err := s.Versions.ListByDocument(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "list versions")
	}
	snap = &cache.Snapshot{Document: *doc, Versions: versions, Generation: gen}
	if genErr != nil {
		return snap, nil
	}
	if err := s.Cache.Set(ctx, snap); err != nil {
		s.log.Warn("cache set failed", zap.String("document_id", id), zap.Error(err))
	}
	return snap, nil
}

// List returns paginated documents without exposing repository types.
func (s *documentService) List(ctx context.Context, actorID string, q ListQuery) (*DocumentListResult, error) {
	limit, offset := q.Limit, q.Offset
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	f := repository.ListFilter{PageQuery: repository.PageQuery{Limit: limit, Offset: offset}}
	if q.Owned {
		f.OwnerID = actorID
	}
	res, err := s.Documents.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	items := make([]DocumentSummary, 0, len(res.Items))
	for _, d := range res.Items {
		items = append(items, newDocumentSummary(d))
	}
	return &DocumentListResult{Items: items, Total: res.Total}, nil
}

func (s *documentService) UpdateMetadata(ctx context.Context, actorID, id string, in UpdateMetadataInput) (*DocumentView, error) {
	id, err := parseDocumentID(id)
	if err != nil {
		return nil, err
	}
	var title string
	if in.Title != nil {
		if title, err = validateTitle(*in.Title); err != nil {
			return nil, err
		}
	}

	doc, err := s.Documents.Mutate(ctx, id, func(d *model.Document) error {
		if err := requireEditable(d, actorID); err != nil {
			return err
		}
		if in.Title != nil {
			d.Title = title
		}
		if in.Description != nil {
			d.Description = *in.Description
		}
		return nil
	})
	if err != nil {
		return nil, mapRepoErr(err, "document")
	}
	s.invalidate(ctx, id)
	return s.viewOf(ctx, doc, actorID)
}

func (s *documentService) Replace(ctx context.Context, actorID, id string, in ReplaceDocumentInput) (*DocumentView, error) {
	id, err := parseDocumentID(id)
	if err != nil {
		return nil, err
	}
	if in.Title == nil || in.Description == nil {
		return nil, errs.Validation("both title and description are required for full update")
	}
	title, err := validateTitle(*in.Title)
	if err != nil {
		return nil, err
	}
	if in.File != nil {
		if err := in.File.validate(); err != nil {
			return nil, err
		}
	}

	edit := func(d *model.Document) error {
		if err := requireEditable(d, actorID); err != nil {
			return err
		}
		d.Title = title
		d.Description = *in.Description
		return nil
	}
	if in.File == nil {
		doc, err := s.Documents.Mutate(ctx, id, edit)
		if err != nil {
			return nil, mapRepoErr(err, "document")
		}
		s.invalidate(ctx, id)
		return s.viewOf(ctx, doc, actorID)
	}

	// refuse before streaming the upload; edit checks again under the row lock
	cur, err := s.Documents.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "document")
	}
	if err := requireEditable(cur, actorID); err != nil {
		return nil, err
	}
	info, err := s.putVersionBlob(ctx, id, in.File)
	if err != nil {
		return nil, err
	}
	doc, v, err := s.Documents.Replace(ctx, id, edit, &model.DocumentVersion{
		Filename:    in.File.Filename,
		StoragePath: info.Key,
		Size:        info.Size,
		ContentType: info.ContentType,
		CreatedBy:   model.UserRef{ID: actorID},
	})
	if err != nil {
		return nil, s.rollbackBlob(ctx, info.Key, mapRepoErr(err, "document"))
	}
	s.invalidate(ctx, id)
	s.Metrics.VersionCreated(v.Size)
	s.log.Info("document replaced",
		zap.String("document_id", id),
		zap.Int("version_number", v.VersionNumber),
		zap.String("actor_id", actorID),
	)
	return s.viewOf(ctx, doc, actorID)
}

func (s *documentService) Delete(ctx context.Context, actorID, id string) error {
	id, err := parseDocumentID(id)
	if err != nil {
		return err
	}
	doc, err := s.Documents.FindByID(ctx, id)
	if err != nil {
		return mapRepoErr(err, "document")
	}
	if err := policy.RequireVisible(doc, actorID, policy.Creator); err != nil {
		return err
	}

	paths, err := s.Documents.Delete(ctx, id)
	if err != nil {
		return mapRepoErr(err, "document")
	}
	s.invalidate(ctx, id)
	s.removeBlobs(ctx, paths...)

	s.log.Info("document deleted",
		zap.String("document_id", id),
		zap.String("actor_id", actorID),
		zap.Int("versions", len(paths)),
	)
	return nil
}

func (s *documentService) SubmitReview(ctx context.Context, actorID, id string, in ReviewInput) (*DocumentView, error) {
	id, err := parseDocumentID(id)
	if err != nil {
		return nil, err
	}
	notes := strings.TrimSpace(in.Notes)
	if notes == "" {
		return nil, errs.Validation("review notes are required")
	}
	date := s.Now()
	if in.ReviewDate != nil {
		date = in.ReviewDate.UTC()
	}

	doc, err := s.Documents.Mutate(ctx, id, func(d *model.Document) error {
		if d.Status == model.StatusArchived {
			return errs.InvalidTransition("archived documents cannot be reviewed")
		}
		if err := policy.Require(d, actorID, policy.Reviewer); err != nil {
			return err
		}
		d.ReviewNotes = notes
		d.ReviewDate = &date
		return nil
	})
	if err != nil {
		return nil, mapRepoErr(err, "document")
	}
	s.invalidate(ctx, id)
	return s.viewOf(ctx, doc, actorID)
}

// viewOf renders doc with freshly loaded versions.
func (s *documentService) viewOf(ctx context.Context, doc *model.Document, actorID string) (*DocumentView, error) {
	versions, err := s.Versions.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, mapRepoErr(err, "list versions")
	}
	return newDocumentView(doc, versions, actorID), nil
}

// requireEditable guards content changes: archived documents are frozen and only
// the creator or the current assignee may edit.
func requireEditable(d *model.Document, actorID string) error {
	if d.Status == model.StatusArchived {
		return errs.InvalidTransition("archived documents are read-only")
	}
	return policy.Require(d, actorID, policy.Creator|policy.Assignee)
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
