package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is the full DDL for the mediapress tables. source_url is
// deliberately NOT unique: uniqueness is enforced by the registrar's
// insert-if-absent flow so that racing writers reconcile to the first
// record instead of erroring.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         BIGSERIAL PRIMARY KEY,
	blob       TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	slug       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	author_id  BIGINT NOT NULL DEFAULT 0,
	doc_type   TEXT NOT NULL DEFAULT 'post'
);

CREATE TABLE IF NOT EXISTS assets (
	id                 BIGSERIAL PRIMARY KEY,
	file_path          TEXT NOT NULL,
	public_url         TEXT NOT NULL,
	mime_type          TEXT NOT NULL,
	source_url         TEXT,
	alt_text           TEXT NOT NULL DEFAULT '',
	parent_document_id BIGINT,
	size_bytes         BIGINT NOT NULL DEFAULT 0,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_assets_source_url ON assets (source_url) WHERE source_url IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_assets_mime_type ON assets (mime_type);

CREATE TABLE IF NOT EXISTS failed_urls (
	url             TEXT PRIMARY KEY,
	first_failed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS batch_reservations (
	name       TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);
`

// Migrate creates the mediapress tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
