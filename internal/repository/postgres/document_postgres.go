package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"edms/internal/database"
	"edms/internal/model"
	"edms/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db  *sql.DB
	now func() time.Time
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const selectDocument = `
	SELECT d.id, d.title, d.description, d.status, d.priority, d.document_type, d.tags,
	       d.created_by, c.email, d.assigned_to, a.email, d.reviewer_id, r.email,
	       d.review_notes, d.review_date, d.last_version_number, d.created_at, d.updated_at
	FROM documents d
	JOIN users c ON c.id = d.created_by
	JOIN users a ON a.id = d.assigned_to
	LEFT JOIN users r ON r.id = d.reviewer_id
`

// Create inserts the document row and its first version inside one transaction.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document, first *model.DocumentVersion) error {
	tags, err := encodeTags(doc.Tags)
	if err != nil {
		return err
	}
	now := r.now()
	doc.LastVersionNumber = 1
	doc.CreatedAt, doc.UpdatedAt = now, now
	first.DocumentID = doc.ID
	first.VersionNumber = 1
	first.CreatedAt = now

	const qDoc = `
		INSERT INTO documents (id, title, description, status, priority, document_type, tags,
		                       created_by, assigned_to, reviewer_id, last_version_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	const qVer = `
		INSERT INTO document_versions (document_id, version_number, filename, storage_path, size,
		                               content_type, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err = database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, qDoc,
			doc.ID,
			doc.Title,
			doc.Description,
			string(doc.Status),
			nullString(string(doc.Priority)),
			doc.DocumentType,
			tags,
			doc.CreatedBy.ID,
			doc.AssignedTo.ID,
			nullString(doc.ReviewerID()),
			doc.LastVersionNumber,
			doc.CreatedAt,
			doc.UpdatedAt,
		); err != nil {
			return err
		}
		return tx.QueryRowContext(ctx, qVer,
			first.DocumentID,
			first.VersionNumber,
			first.Filename,
			first.StoragePath,
			first.Size,
			first.ContentType,
			first.CreatedBy.ID,
			first.CreatedAt,
		).Scan(&first.ID)
	})
	return translate(err)
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	row := r.db.QueryRowContext(ctx, selectDocument+` WHERE d.id = $1`, id)
	d, err := scanDocument(row)
	if err != nil {
		return nil, translate(err)
	}
	return d, nil
}

// List returns documents using LIMIT/OFFSET pagination and a total count.
func (r *DocumentPostgres) List(ctx context.Context, f repository.ListFilter) (*repository.PageResult[model.Document], error) {
	var (
		where string
		args  []any
	)
	if f.OwnerID != "" {
		where = ` WHERE d.created_by = $1`
		args = append(args, f.OwnerID)
	}

	// Count total rows
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents d`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	// Fetch page
	qList := selectDocument + where +
		fmt.Sprintf(` ORDER BY d.created_at DESC, d.id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := r.db.QueryContext(ctx, qList, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &repository.PageResult[model.Document]{
		Items: items,
		Total: total,
	}, nil
}

// Mutate locks the document row with SELECT ... FOR UPDATE, lets fn change it and writes it back.
func (r *DocumentPostgres) Mutate(ctx context.Context, id string, fn func(doc *model.Document) error) (*model.Document, error) {
	doc, _, err := r.Replace(ctx, id, fn, nil)
	return doc, err
}

// Replace runs Mutate's locked update and, when next is non-nil, appends next in the same transaction.
func (r *DocumentPostgres) Replace(ctx context.Context, id string, fn func(doc *model.Document) error, next *model.DocumentVersion) (*model.Document, *model.DocumentVersion, error) {
	var (
		out   *model.Document
		added *model.DocumentVersion
	)
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		d, err := lockDocument(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
		d.UpdatedAt = r.now()
		if err := writeDocument(ctx, tx, d); err != nil {
			return err
		}
		if next != nil {
			v := *next
			v.DocumentID = d.ID
			if added, err = appendVersion(ctx, tx, &v, d.UpdatedAt); err != nil {
				return err
			}
			d.LastVersionNumber = added.VersionNumber
		}
		out = d
		return nil
	})
	if err != nil {
		return nil, nil, translate(err)
	}
	return out, added, nil
}

// lockDocument loads a document and holds its row lock until tx ends.
func lockDocument(ctx context.Context, tx *sql.Tx, id string) (*model.Document, error) {
	return scanDocument(tx.QueryRowContext(ctx, selectDocument+` WHERE d.id = $1 FOR UPDATE OF d`, id))
}

func writeDocument(ctx context.Context, tx *sql.Tx, d *model.Document) error {
	const qUpdate = `
		UPDATE documents
		SET title = $2, description = $3, status = $4, priority = $5, document_type = $6, tags = $7,
		    assigned_to = $8, reviewer_id = $9, review_notes = $10, review_date = $11, updated_at = $12
		WHERE id = $1
	`
	tags, err := encodeTags(d.Tags)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, qUpdate,
		d.ID,
		d.Title,
		d.Description,
		string(d.Status),
		nullString(string(d.Priority)),
		d.DocumentType,
		tags,
		d.AssignedTo.ID,
		nullString(d.ReviewerID()),
		d.ReviewNotes,
		nullTime(d.ReviewDate),
		d.UpdatedAt,
	)
	return err
}

// Delete removes the document; versions go with it through ON DELETE CASCADE in the same transaction.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) ([]string, error) {
	var paths []string
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `SELECT storage_path FROM document_versions WHERE document_id = $1 ORDER BY version_number`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p string
			if err := rows.Scan(&p); err != nil {
				return err
			}
			paths = append(paths, p)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return paths, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (*model.Document, error) {
	var (
		d             model.Document
		status        string
		priority      sql.NullString
		tags          []byte
		reviewerID    sql.NullString
		reviewerEmail sql.NullString
		reviewDate    sql.NullTime
	)
	if err := s.Scan(
		&d.ID,
		&d.Title,
		&d.Description,
		&status,
		&priority,
		&d.DocumentType,
		&tags,
		&d.CreatedBy.ID,
		&d.CreatedBy.Email,
		&d.AssignedTo.ID,
		&d.AssignedTo.Email,
		&reviewerID,
		&reviewerEmail,
		&d.ReviewNotes,
		&reviewDate,
		&d.LastVersionNumber,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.Status = model.Status(status)
	d.Priority = model.Priority(priority.String)
	if reviewerID.Valid {
		d.Reviewer = &model.UserRef{ID: reviewerID.String, Email: reviewerEmail.String}
	}
	if reviewDate.Valid {
		t := reviewDate.Time
		d.ReviewDate = &t
	}
	d.Tags = []string{}
	if len(tags) > 0 {
		if err := json.Unmarshal(tags, &d.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
		if d.Tags == nil {
			d.Tags = []string{}
		}
	}
	return &d, nil
}

func encodeTags(tags []string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	return b, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// translate maps driver-level failures onto repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return repository.ErrNotFound
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", repository.ErrVersionConflict, err)
	case database.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %v", repository.ErrInvalidReference, err)
	}
	return err
}
