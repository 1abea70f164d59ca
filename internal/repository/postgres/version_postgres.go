package postgres

import (
	"context"
	"database/sql"
	"time"

	"edms/internal/database"
	"edms/internal/model"
	"edms/internal/repository"
)

// VersionPostgres is a PostgreSQL implementation of repository.VersionRepository.
type VersionPostgres struct {
	db  *sql.DB
	now func() time.Time
}

func NewVersionPostgres(db *sql.DB) *VersionPostgres {
	return &VersionPostgres{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var _ repository.VersionRepository = (*VersionPostgres)(nil)

const selectVersion = `
	SELECT v.id, v.document_id, v.version_number, v.filename, v.storage_path, v.size,
	       v.content_type, v.created_by, u.email, v.created_at
	FROM document_versions v
	JOIN users u ON u.id = v.created_by
`

// Add inserts v under the next number of its document in one transaction. With a guard
// the document row is locked first and checked; without one the counter UPDATE takes the lock.
// Concurrent uploads to the same document queue on that lock.
func (r *VersionPostgres) Add(ctx context.Context, v *model.DocumentVersion, guard func(doc *model.Document) error) (*model.DocumentVersion, error) {
	var out *model.DocumentVersion
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if guard != nil {
			d, err := lockDocument(ctx, tx, v.DocumentID)
			if err != nil {
				return err
			}
			if err := guard(d); err != nil {
				return err
			}
		}
		var err error
		out, err = appendVersion(ctx, tx, v, r.now())
		return err
	})
	if err != nil {
		return nil, translate(err)
	}
	return out, nil
}

// appendVersion bumps documents.last_version_number and inserts a copy of v with the returned number.
func appendVersion(ctx context.Context, tx *sql.Tx, v *model.DocumentVersion, now time.Time) (*model.DocumentVersion, error) {
	const qNext = `
		UPDATE documents
		SET last_version_number = last_version_number + 1, updated_at = $2
		WHERE id = $1
		RETURNING last_version_number
	`
	const qInsert = `
		WITH ins AS (
			INSERT INTO document_versions (document_id, version_number, filename, storage_path, size,
			                               content_type, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_by
		)
		SELECT ins.id, u.email FROM ins JOIN users u ON u.id = ins.created_by
	`
	out := *v
	out.CreatedAt = now
	if err := tx.QueryRowContext(ctx, qNext, out.DocumentID, out.CreatedAt).Scan(&out.VersionNumber); err != nil {
		return nil, err
	}
	if err := tx.QueryRowContext(ctx, qInsert,
		out.DocumentID,
		out.VersionNumber,
		out.Filename,
		out.StoragePath,
		out.Size,
		out.ContentType,
		out.CreatedBy.ID,
		out.CreatedAt,
	).Scan(&out.ID, &out.CreatedBy.Email); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListByDocument returns the versions of a document in ascending number order.
func (r *VersionPostgres) ListByDocument(ctx context.Context, documentID string) ([]model.DocumentVersion, error) {
	rows, err := r.db.QueryContext(ctx, selectVersion+` WHERE v.document_id = $1 ORDER BY v.version_number ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.DocumentVersion, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *VersionPostgres) FindByID(ctx context.Context, id int64) (*model.DocumentVersion, error) {
	v, err := scanVersion(r.db.QueryRowContext(ctx, selectVersion+` WHERE v.id = $1`, id))
	if err != nil {
		return nil, translate(err)
	}
	return v, nil
}

// Delete removes a single version row. The document's counter is left alone.
func (r *VersionPostgres) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM document_versions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanVersion(s rowScanner) (*model.DocumentVersion, error) {
	var v model.DocumentVersion
	if err := s.Scan(
		&v.ID,
		&v.DocumentID,
		&v.VersionNumber,
		&v.Filename,
		&v.StoragePath,
		&v.Size,
		&v.ContentType,
		&v.CreatedBy.ID,
		&v.CreatedBy.Email,
		&v.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &v, nil
}
