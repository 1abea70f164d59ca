package service

import (
	"context"
	"errors"
	"io"

	"go.uber.org/zap"

	"edms/internal/errs"
	"edms/internal/model"
	"edms/internal/policy"
	"edms/internal/storage"
)

// Download is either a stream of version content or a URL to redirect to.
type Download struct {
	RedirectURL string
	Body        io.ReadCloser
	Filename    string
	ContentType string
	Size        int64
}

// VersionService defines the version store use cases.
type VersionService interface {
	// Add uploads a new version. The number is assigned by the store, never by the caller.
	Add(ctx context.Context, actorID, documentID string, file *FileUpload) (*VersionView, error)

	// List returns the versions of a document ordered by version number.
	List(ctx context.Context, actorID, documentID string) ([]VersionView, error)

	// Get returns a version when the actor holds a role on its document and NotFound otherwise.
	Get(ctx context.Context, actorID string, versionID int64) (*VersionView, error)

	// Open returns the content of a version under the same visibility rule as Get.
	Open(ctx context.Context, actorID string, versionID int64) (*Download, error)

	// Delete removes one version. Only the document's creator may do so.
	Delete(ctx context.Context, actorID string, versionID int64) error
}

type versionService struct {
	Dependencies
	log *zap.Logger
}

func NewVersionService(deps Dependencies) VersionService {
	deps = deps.withDefaults()
	return &versionService{
		Dependencies: deps,
		log:          deps.Logger.With(zap.String("service", "versions")),
	}
}

func (s *versionService) Add(ctx context.Context, actorID, documentID string, file *FileUpload) (*VersionView, error) {
	id, err := parseDocumentID(documentID)
	if err != nil {
		return nil, err
	}
	if err := file.validate(); err != nil {
		return nil, err
	}
	doc, err := s.Documents.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "document")
	}
	if err := requireEditable(doc, actorID); err != nil {
		return nil, err
	}
	v, err := s.add(ctx, doc.ID, actorID, file)
	if err != nil {
		return nil, err
	}
	view := newVersionView(*v)
	return &view, nil
}

// add stores the blob, then the row. The editability check is repeated against the
// locked document so a concurrent archive cannot slip in between. The blob is removed
// again when the row cannot be written.
func (s *versionService) add(ctx context.Context, documentID, actorID string, file *FileUpload) (*model.DocumentVersion, error) {
	info, err := s.putVersionBlob(ctx, documentID, file)
	if err != nil {
		return nil, err
	}

	v, err := s.Versions.Add(ctx, &model.DocumentVersion{
		DocumentID:  documentID,
		Filename:    file.Filename,
		StoragePath: info.Key,
		Size:        info.Size,
		ContentType: info.ContentType,
		CreatedBy:   model.UserRef{ID: actorID},
	}, func(d *model.Document) error {
		return requireEditable(d, actorID)
	})
	if err != nil {
		return nil, s.rollbackBlob(ctx, info.Key, mapRepoErr(err, "document"))
	}

	s.invalidate(ctx, documentID)
	s.Metrics.VersionCreated(v.Size)
	s.log.Info("version added",
		zap.String("document_id", documentID),
		zap.Int("version_number", v.VersionNumber),
		zap.String("actor_id", actorID),
	)
	return v, nil
}

func (s *versionService) List(ctx context.Context, actorID, documentID string) ([]VersionView, error) {
	id, err := parseDocumentID(documentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.Documents.FindByID(ctx, id); err != nil {
		return nil, mapRepoErr(err, "document")
	}
	versions, err := s.Versions.ListByDocument(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err, "list versions")
	}
	return newVersionViews(versions), nil
}

func (s *versionService) Get(ctx context.Context, actorID string, versionID int64) (*VersionView, error) {
	v, _, err := s.visible(ctx, actorID, versionID, policy.Creator|policy.Assignee|policy.Reviewer)
	if err != nil {
		return nil, err
	}
	view := newVersionView(*v)
	return &view, nil
}

func (s *versionService) Open(ctx context.Context, actorID string, versionID int64) (*Download, error) {
	v, _, err := s.visible(ctx, actorID, versionID, policy.Creator|policy.Assignee|policy.Reviewer)
	if err != nil {
		return nil, err
	}

	if s.PresignExpiry > 0 {
		u, err := s.Storage.PresignGet(ctx, v.StoragePath, v.Filename, s.PresignExpiry)
		if err == nil {
			return &Download{RedirectURL: u, Filename: v.Filename, ContentType: v.ContentType, Size: v.Size}, nil
		}
		if !errors.Is(err, storage.ErrPresignUnsupported) {
			return nil, err
		}
	}

	body, info, err := s.Storage.Get(ctx, v.StoragePath)
	if errors.Is(err, storage.ErrObjectNotFound) {
		s.log.Error("version content missing", zap.Int64("version_id", v.ID), zap.String("key", v.StoragePath))
		return nil, errs.NotFound("version content not found")
	}
	if err != nil {
		return nil, err
	}
	ct := info.ContentType
	if ct == "" {
		ct = v.ContentType
	}
	return &Download{Body: body, Filename: v.Filename, ContentType: ct, Size: info.Size}, nil
}

func (s *versionService) Delete(ctx context.Context, actorID string, versionID int64) error {
	v, doc, err := s.visible(ctx, actorID, versionID, policy.Creator)
	if err != nil {
		return err
	}
	if err := s.Versions.Delete(ctx, v.ID); err != nil {
		return mapRepoErr(err, "version")
	}
	s.invalidate(ctx, doc.ID)
	s.removeBlobs(ctx, v.StoragePath)

	s.log.Info("version deleted",
		zap.String("document_id", doc.ID),
		zap.Int("version_number", v.VersionNumber),
		zap.String("actor_id", actorID),
	)
	return nil
}

// visible loads a version and its document and hides both unless the actor holds one of roles.
func (s *versionService) visible(ctx context.Context, actorID string, versionID int64, roles policy.Role) (*model.DocumentVersion, *model.Document, error) {
	if versionID <= 0 {
		return nil, nil, errs.NotFound("version not found")
	}
	v, err := s.Versions.FindByID(ctx, versionID)
	if err != nil {
		return nil, nil, mapRepoErr(err, "version")
	}
	doc, err := s.Documents.FindByID(ctx, v.DocumentID)
	if err != nil {
		return nil, nil, mapRepoErr(err, "version")
	}
	if err := policy.RequireVisible(doc, actorID, roles); err != nil {
		return nil, nil, errs.NotFound("version not found")
	}
	return v, doc, nil
}
