package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"edms/internal/model"
	"edms/internal/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var documentColumns = []string{
	"id", "title", "description", "status", "priority", "document_type", "tags",
	"created_by", "creator_email", "assigned_to", "assignee_email", "reviewer_id", "reviewer_email",
	"review_notes", "review_date", "last_version_number", "created_at", "updated_at",
}

func documentRow(rows *sqlmock.Rows, id, status string, reviewer bool) *sqlmock.Rows {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var reviewerID, reviewerEmail any
	if reviewer {
		reviewerID, reviewerEmail = "u3", "u3@example.com"
	}
	return rows.AddRow(id, "Invoice", "march", status, "high", "invoice", []byte(`["finance","q1"]`),
		"u1", "u1@example.com", "u2", "u2@example.com", reviewerID, reviewerEmail,
		"", nil, 1, now, now)
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestDocumentPostgres_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	newDoc := func() (*model.Document, *model.DocumentVersion) {
		doc := &model.Document{
			ID:         "doc-1",
			Title:      "Invoice",
			Status:     model.StatusPending,
			Priority:   model.PriorityHigh,
			Tags:       []string{"finance"},
			CreatedBy:  model.UserRef{ID: "u1", Email: "u1@example.com"},
			AssignedTo: model.UserRef{ID: "u2", Email: "u2@example.com"},
		}
		first := &model.DocumentVersion{
			Filename:    "invoice.pdf",
			StoragePath: "documents/doc-1/abc-invoice.pdf",
			Size:        42,
			ContentType: "application/pdf",
			CreatedBy:   doc.CreatedBy,
		}
		return doc, first
	}

	t.Run("inserts document and first version atomically", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewDocumentPostgres(db)
		repo.now = func() time.Time { return now }
		doc, first := newDoc()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO documents").
			WithArgs("doc-1", "Invoice", "", "pending", "high", "", []byte(`["finance"]`),
				"u1", "u2", nil, 1, now, now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO document_versions").
			WithArgs("doc-1", 1, "invoice.pdf", "documents/doc-1/abc-invoice.pdf", int64(42), "application/pdf", "u1", now).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
		mock.ExpectCommit()

		err := repo.Create(ctx, doc, first)

		require.NoError(t, err)
		assert.Equal(t, int64(7), first.ID)
		assert.Equal(t, 1, first.VersionNumber)
		assert.Equal(t, "doc-1", first.DocumentID)
		assert.Equal(t, 1, doc.LastVersionNumber)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("version insert failure rolls back the document", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewDocumentPostgres(db)
		doc, first := newDoc()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO documents").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("INSERT INTO document_versions").WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := repo.Create(ctx, doc, first)

		assert.EqualError(t, err, "disk full")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown user reference", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewDocumentPostgres(db)
		doc, first := newDoc()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO documents").WillReturnError(&pgconn.PgError{Code: "23503"})
		mock.ExpectRollback()

		err := repo.Create(ctx, doc, first)

		assert.ErrorIs(t, err, repository.ErrInvalidReference)
	})
}

func TestDocumentPostgres_FindByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewDocumentPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents d (.+) WHERE d.id = ?").
			WithArgs("doc-1").
			WillReturnRows(documentRow(sqlmock.NewRows(documentColumns), "doc-1", "pending", true))

		doc, err := repo.FindByID(ctx, "doc-1")

		require.NoError(t, err)
		assert.Equal(t, "doc-1", doc.ID)
		assert.Equal(t, model.StatusPending, doc.Status)
		assert.Equal(t, model.PriorityHigh, doc.Priority)
		assert.Equal(t, []string{"finance", "q1"}, doc.Tags)
		assert.Equal(t, model.UserRef{ID: "u2", Email: "u2@example.com"}, doc.AssignedTo)
		require.NotNil(t, doc.Reviewer)
		assert.Equal(t, "u3", doc.Reviewer.ID)
		assert.Nil(t, doc.ReviewDate)
	})

	t.Run("no reviewer", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents d").
			WithArgs("doc-2").
			WillReturnRows(documentRow(sqlmock.NewRows(documentColumns), "doc-2", "approved", false))

		doc, err := repo.FindByID(ctx, "doc-2")

		require.NoError(t, err)
		assert.Nil(t, doc.Reviewer)
		assert.Equal(t, "", doc.ReviewerID())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT (.+) FROM documents d").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		doc, err := repo.FindByID(ctx, "missing")

		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, doc)
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentPostgres_List(t *testing.T) {
	ctx := context.Background()

	t.Run("all documents", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewDocumentPostgres(db)

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents d$").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		rows := sqlmock.NewRows(documentColumns)
		documentRow(rows, "doc-2", "pending", false)
		documentRow(rows, "doc-1", "signed", true)
		mock.ExpectQuery("SELECT (.+) FROM documents d (.+) ORDER BY d.created_at DESC, d.id DESC LIMIT \\$1 OFFSET \\$2").
			WithArgs(10, 0).
			WillReturnRows(rows)

		res, err := repo.List(ctx, repository.ListFilter{PageQuery: repository.PageQuery{Limit: 10, Offset: 0}})

		require.NoError(t, err)
		assert.Equal(t, 2, res.Total)
		require.Len(t, res.Items, 2)
		assert.Equal(t, "doc-2", res.Items[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("owned filter", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewDocumentPostgres(db)

		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents d WHERE d.created_by = \\$1").
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("WHERE d.created_by = \\$1 ORDER BY (.+) LIMIT \\$2 OFFSET \\$3").
			WithArgs("u1", 5, 10).
			WillReturnRows(sqlmock.NewRows(documentColumns))

		res, err := repo.List(ctx, repository.ListFilter{OwnerID: "u1", PageQuery: repository.PageQuery{Limit: 5, Offset: 10}})

		require.NoError(t, err)
		assert.Equal(t, 0, res.Total)
		assert.NotNil(t, res.Items)
		assert.Empty(t, res.Items)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("count error", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewDocumentPostgres(db)

		mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("boom"))

		_, err := repo.List(ctx, repository.ListFilter{PageQuery: repository.PageQuery{Limit: 10}})

		assert.EqualError(t, err, "boom")
	})
}

func TestDocumentPostgres_Mutate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

	t.Run("locks row and writes back changes", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewDocumentPostgres(db)
		repo.now = func() time.Time { return now }

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT (.+) WHERE d.id = \\$1 FOR UPDATE OF d").
			WithArgs("doc-1").
			WillReturnRows(documentRow(sqlmock.NewRows(documentColumns), "doc-1", "pending", true))
		mock.ExpectExec("UPDATE documents").
			WithArgs("doc-1", "Invoice", "march", "approved", "high", "invoice", []byte(`["finance","q1"]`),
				"u1", "u3", "", nil, now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		doc, err := repo.Mutate(ctx, "doc-1", func(d *model.Document) error {
			d.Status = model.StatusApproved
			d.AssignedTo = d.CreatedBy
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, model.StatusApproved, doc.Status)
		assert.Equal(t, "u1", doc.AssignedTo.ID)
		assert.Equal(t, now, doc.UpdatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("callback error rolls back without writing", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewDocumentPostgres(db)
		sentinel := errors.New("not allowed")

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE OF d").
			WithArgs("doc-1").
			WillReturnRows(documentRow(sqlmock.NewRows(documentColumns), "doc-1", "archived", false))
		mock.ExpectRollback()

		doc, err := repo.Mutate(ctx, "doc-1", func(d *model.Document) error { return sentinel })

		assert.ErrorIs(t, err, sentinel)
		assert.Nil(t, doc)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing document", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewDocumentPostgres(db)

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE OF d").WithArgs("missing").WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		called := false
		_, err := repo.Mutate(ctx, "missing", func(d *model.Document) error { called = true; return nil })

		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.False(t, called)
	})
}

func TestDocumentPostgres_Replace(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	next := &model.DocumentVersion{Filename: "v2.pdf", StoragePath: "documents/doc-1/v2.pdf",
		Size: 5, ContentType: "application/pdf", CreatedBy: model.UserRef{ID: "u2"}}
	rename := func(d *model.Document) error {
		d.Title = "Invoice (final)"
		return nil
	}

	t.Run("metadata and version in one transaction", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewDocumentPostgres(db)
		repo.now = func() time.Time { return now }

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE OF d").
			WithArgs("doc-1").
			WillReturnRows(documentRow(sqlmock.NewRows(documentColumns), "doc-1", "pending", false))
		mock.ExpectExec("UPDATE documents SET title").
			WithArgs("doc-1", "Invoice (final)", "march", "pending", "high", "invoice", []byte(`["finance","q1"]`),
				"u2", nil, "", nil, now).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("UPDATE documents SET last_version_number").
			WithArgs("doc-1", now).
			WillReturnRows(sqlmock.NewRows([]string{"last_version_number"}).AddRow(2))
		mock.ExpectQuery("INSERT INTO document_versions").
			WithArgs("doc-1", 2, "v2.pdf", "documents/doc-1/v2.pdf", int64(5), "application/pdf", "u2", now).
			WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(7, "u2@example.com"))
		mock.ExpectCommit()

		doc, v, err := repo.Replace(ctx, "doc-1", rename, next)

		require.NoError(t, err)
		assert.Equal(t, "Invoice (final)", doc.Title)
		assert.Equal(t, 2, doc.LastVersionNumber)
		assert.Equal(t, int64(7), v.ID)
		assert.Equal(t, 2, v.VersionNumber)
		assert.Empty(t, next.DocumentID, "input must not be mutated")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed version insert rolls back the metadata", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewDocumentPostgres(db)
		repo.now = func() time.Time { return now }

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE OF d").
			WithArgs("doc-1").
			WillReturnRows(documentRow(sqlmock.NewRows(documentColumns), "doc-1", "pending", false))
		mock.ExpectExec("UPDATE documents SET title").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("UPDATE documents SET last_version_number").
			WillReturnRows(sqlmock.NewRows([]string{"last_version_number"}).AddRow(2))
		mock.ExpectQuery("INSERT INTO document_versions").
			WillReturnError(&pgconn.PgError{Code: "23503"})
		mock.ExpectRollback()

		doc, v, err := repo.Replace(ctx, "doc-1", rename, next)

		assert.ErrorIs(t, err, repository.ErrInvalidReference)
		assert.Nil(t, doc)
		assert.Nil(t, v)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDocumentPostgres_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("returns storage paths of cascaded versions", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewDocumentPostgres(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT storage_path FROM document_versions WHERE document_id = ?").
			WithArgs("doc-1").
			WillReturnRows(sqlmock.NewRows([]string{"storage_path"}).AddRow("documents/a").AddRow("documents/b"))
		mock.ExpectExec("DELETE FROM documents WHERE id = ?").
			WithArgs("doc-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		paths, err := repo.Delete(ctx, "doc-1")

		require.NoError(t, err)
		assert.Equal(t, []string{"documents/a", "documents/b"}, paths)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing document", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewDocumentPostgres(db)

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT storage_path").WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"storage_path"}))
		mock.ExpectExec("DELETE FROM documents").WithArgs("missing").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		paths, err := repo.Delete(ctx, "missing")

		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, paths)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
