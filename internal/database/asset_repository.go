package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sotarylen/mediapress/internal/domain"
)

// ErrAssetNotFound is returned when an asset lookup by id matches nothing.
// Callers should check with errors.Is().
var ErrAssetNotFound = errors.New("asset not found")

// assetSelectColumns lists columns for SELECT queries on assets.
const assetSelectColumns = `id, file_path, public_url, mime_type, source_url,
	alt_text, parent_document_id, size_bytes, created_at`

// AssetRepository handles database operations for asset records.
type AssetRepository struct {
	db *sqlx.DB
}

// NewAssetRepository creates a new asset repository.
func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// Create inserts a new asset record and fills in its id and creation time.
func (r *AssetRepository) Create(ctx context.Context, asset *domain.Asset) error {
	query := `
		INSERT INTO assets (file_path, public_url, mime_type, source_url, alt_text, parent_document_id, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	row := r.db.QueryRowxContext(
		ctx, query,
		asset.FilePath, asset.PublicURL, asset.MimeType, asset.SourceURL,
		asset.AltText, asset.ParentDocumentID, asset.SizeBytes,
	)
	if err := row.Scan(&asset.ID, &asset.CreatedAt); err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}

	return nil
}

// GetByID returns the asset with the given id, or ErrAssetNotFound.
func (r *AssetRepository) GetByID(ctx context.Context, id int64) (*domain.Asset, error) {
	query := `SELECT ` + assetSelectColumns + ` FROM assets WHERE id = $1`

	var asset domain.Asset
	if err := r.db.GetContext(ctx, &asset, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to get asset %d: %w", id, err)
	}

	return &asset, nil
}

// FindBySourceURL returns the oldest asset whose source_url matches, or
// (nil, nil) when no record exists. Ordering by id makes "first writer
// wins" deterministic even if a race produced more than one row.
func (r *AssetRepository) FindBySourceURL(ctx context.Context, sourceURL string) (*domain.Asset, error) {
	query := `SELECT ` + assetSelectColumns + ` FROM assets WHERE source_url = $1 ORDER BY id ASC LIMIT 1`

	var asset domain.Asset
	if err := r.db.GetContext(ctx, &asset, query, sourceURL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find asset by source url: %w", err)
	}

	return &asset, nil
}

// ListConvertible returns assets eligible for transcoding: matching one
// of the given mime types and at least minSizeBytes large.
func (r *AssetRepository) ListConvertible(
	ctx context.Context,
	mimeTypes []string,
	minSizeBytes int64,
	limit, offset int,
) ([]domain.ConvertibleAsset, error) {
	if len(mimeTypes) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT id, file_path, public_url, mime_type, size_bytes, parent_document_id
		FROM assets
		WHERE mime_type IN (?) AND size_bytes >= ?
		ORDER BY id ASC
		LIMIT ? OFFSET ?
	`, mimeTypes, minSizeBytes, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to build convertible query: %w", err)
	}

	var candidates []domain.ConvertibleAsset
	if err := r.db.SelectContext(ctx, &candidates, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list convertible assets: %w", err)
	}

	return candidates, nil
}

// CountConvertible returns the total number of transcode candidates.
func (r *AssetRepository) CountConvertible(
	ctx context.Context,
	mimeTypes []string,
	minSizeBytes int64,
) (int, error) {
	if len(mimeTypes) == 0 {
		return 0, nil
	}

	query, args, err := sqlx.In(
		`SELECT COUNT(*) FROM assets WHERE mime_type IN (?) AND size_bytes >= ?`,
		mimeTypes, minSizeBytes,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to build convertible count query: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(query), args...); err != nil {
		return 0, fmt.Errorf("failed to count convertible assets: %w", err)
	}

	return total, nil
}

// Delete removes an asset record. Used to withdraw the losing side of
// a source-URL registration race.
func (r *AssetRepository) Delete(ctx context.Context, id int64) error {
	result, execErr := r.db.ExecContext(ctx, `DELETE FROM assets WHERE id = $1`, id)
	return execRequireRows(result, execErr, fmt.Errorf("%w: %d", ErrAssetNotFound, id))
}

// UpdateEncoding updates the stored location and mime type of an asset
// after transcoding. source_url is intentionally left untouched.
func (r *AssetRepository) UpdateEncoding(
	ctx context.Context,
	id int64,
	filePath, publicURL, mimeType string,
	sizeBytes int64,
) error {
	query := `
		UPDATE assets
		SET file_path = $1, public_url = $2, mime_type = $3, size_bytes = $4
		WHERE id = $5
	`

	result, execErr := r.db.ExecContext(ctx, query, filePath, publicURL, mimeType, sizeBytes, id)
	return execRequireRows(result, execErr, fmt.Errorf("%w: %d", ErrAssetNotFound, id))
}
