// Package service implements the document lifecycle use cases on top of the
// repositories, object storage, cache and event publisher.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"edms/internal/cache"
	"edms/internal/errs"
	"edms/internal/events"
	"edms/internal/metrics"
	"edms/internal/model"
	"edms/internal/repository"
	"edms/internal/storage"
)

// Dependencies are the collaborators shared by every service. Cache, Events,
// Metrics and Logger are optional.
type Dependencies struct {
	Storage   storage.Storage
	Documents repository.DocumentRepository
	Versions  repository.VersionRepository
	Users     repository.UserRepository
	Cache     cache.DocumentCache
	Events    events.Publisher
	Metrics   *metrics.Collector
	Logger    *zap.Logger

	// PresignExpiry > 0 makes downloads redirect to presigned storage URLs.
	PresignExpiry time.Duration
	Now           func() time.Time
}

func (d Dependencies) withDefaults() Dependencies {
	if d.Cache == nil {
		d.Cache = cache.Noop{}
	}
	if d.Events == nil {
		d.Events = events.Noop{}
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}

// FileUpload is an uploaded byte stream plus the metadata the caller knows about it.
type FileUpload struct {
	Reader      io.Reader
	Filename    string
	ContentType string
	// Size is -1 when unknown.
	Size int64
}

func (f *FileUpload) validate() error {
	if f == nil || f.Reader == nil {
		return errs.Validation("file is required")
	}
	if strings.TrimSpace(f.Filename) == "" {
		return errs.Validation("filename is required")
	}
	return nil
}

// parseDocumentID treats malformed ids as absent documents.
func parseDocumentID(id string) (string, error) {
	u, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", errs.NotFound("document not found")
	}
	return u.String(), nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errs.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > model.MaxTitleLength {
		return "", errs.Validation("title must be at most %d characters", model.MaxTitleLength)
	}
	return title, nil
}

// mapRepoErr turns repository sentinels into domain errors and wraps everything else.
func mapRepoErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return errs.NotFound("%s not found", what)
	case errors.Is(err, repository.ErrVersionConflict):
		return errs.Conflict("another upload claimed the same version number, retry the request")
	case errors.Is(err, repository.ErrInvalidReference):
		return errs.Validation("referenced user does not exist")
	case errs.KindOf(err) != "":
		return err
	}
	return fmt.Errorf("%s: %w", what, err)
}

// lookupUser resolves a user id supplied in a request. Unknown ids are a validation error.
func lookupUser(ctx context.Context, users repository.UserRepository, id, field string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, errs.Validation("%s %q does not exist", field, id)
	}
	u, err := users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errs.Validation("%s %q does not exist", field, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", field, err)
	}
	return u, nil
}

func (d Dependencies) invalidate(ctx context.Context, id string) {
	if err := d.Cache.Invalidate(ctx, id); err != nil {
		d.Logger.Warn("cache invalidate failed", zap.String("document_id", id), zap.Error(err))
	}
}

// removeBlobs deletes stored content after the rows are gone. Failures only leave orphans, so they are logged.
func (d Dependencies) removeBlobs(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if err := d.Storage.Delete(ctx, key); err != nil {
			d.Logger.Warn("delete blob failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// putVersionBlob streams the upload into storage under a fresh key.
func (d Dependencies) putVersionBlob(ctx context.Context, documentID string, f *FileUpload) (storage.ObjectInfo, error) {
	key := storage.VersionKey(documentID, f.Filename)
	size := f.Size
	if size == 0 {
		size = -1
	}
	info, err := d.Storage.Put(ctx, key, f.Reader, storage.PutObjectOptions{
		Size:        size,
		ContentType: f.ContentType,
		Metadata: map[string]string{
			"original-filename": storage.SafeName(f.Filename),
			"document-id":       documentID,
		},
	})
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("upload to storage: %w", err)
	}
	if info.Key == "" {
		info.Key = key
	}
	if info.ContentType == "" {
		info.ContentType = f.ContentType
	}
	return info, nil
}

// rollbackBlob removes content whose row was never written and folds any failure into err.
func (d Dependencies) rollbackBlob(ctx context.Context, key string, err error) error {
	if delErr := d.Storage.Delete(ctx, key); delErr != nil {
		d.Logger.Error("rollback delete failed", zap.String("key", key), zap.Error(delErr))
		return fmt.Errorf("%w (rollback delete failed: %v)", err, delErr)
	}
	return err
}
