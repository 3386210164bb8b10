package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sotarylen/mediapress/internal/domain"
)

// ErrDocumentNotFound is returned when a document lookup matches nothing.
var ErrDocumentNotFound = errors.New("document not found")

// DocumentRepository is the SQL-backed implementation of the content
// store seam: it reads document metadata and reads/writes blobs.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// GetByID returns the document with the given id, or ErrDocumentNotFound.
func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	query := `SELECT id, blob, title, slug, created_at, author_id, doc_type FROM documents WHERE id = $1`

	var doc domain.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to get document %d: %w", id, err)
	}

	return &doc, nil
}

// UpdateBlob persists a new serialized blob for the document.
func (r *DocumentRepository) UpdateBlob(ctx context.Context, id int64, blob string) error {
	query := `UPDATE documents SET blob = $1 WHERE id = $2`

	result, execErr := r.db.ExecContext(ctx, query, blob, id)
	return execRequireRows(result, execErr, fmt.Errorf("%w: %d", ErrDocumentNotFound, id))
}

// StreamContaining iterates over every document whose blob contains the
// given literal substring, invoking fn for each. The scan streams rows
// from the database rather than loading the corpus into memory. An
// error from fn aborts the stream; fn implementations that want
// per-document isolation must swallow their own failures.
//
// POSITION is used instead of LIKE so the substring is matched
// literally, with no wildcard escaping concerns.
func (r *DocumentRepository) StreamContaining(
	ctx context.Context,
	substring string,
	fn func(id int64, blob string) error,
) error {
	query := `SELECT id, blob FROM documents WHERE POSITION($1 IN blob) > 0 ORDER BY id ASC`

	rows, err := r.db.QueryxContext(ctx, query, substring)
	if err != nil {
		return fmt.Errorf("failed to stream documents: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row struct {
			ID   int64  `db:"id"`
			Blob string `db:"blob"`
		}
		if scanErr := rows.StructScan(&row); scanErr != nil {
			return fmt.Errorf("failed to scan document row: %w", scanErr)
		}
		if fnErr := fn(row.ID, row.Blob); fnErr != nil {
			return fnErr
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return fmt.Errorf("document stream interrupted: %w", rowsErr)
	}

	return nil
}
