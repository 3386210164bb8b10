package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sotarylen/mediapress/internal/domain"
)

// DefaultLedgerCapacity bounds the failure ledger when no capacity is
// configured.
const DefaultLedgerCapacity = 500

// FailureRepository is the persistent failure ledger: a bounded set of
// source URLs known to be bad. Entries are only removed by explicit
// operator action or capacity eviction, never because a later fetch of
// the same URL happened to succeed.
type FailureRepository struct {
	db       *sqlx.DB
	capacity int
}

// NewFailureRepository creates a new failure ledger repository.
func NewFailureRepository(db *sqlx.DB, capacity int) *FailureRepository {
	if capacity <= 0 {
		capacity = DefaultLedgerCapacity
	}
	return &FailureRepository{db: db, capacity: capacity}
}

// IsFailed reports whether the URL has a ledger entry.
func (r *FailureRepository) IsFailed(ctx context.Context, url string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM failed_urls WHERE url = $1)`

	var failed bool
	if err := r.db.GetContext(ctx, &failed, query, url); err != nil {
		return false, fmt.Errorf("failed to check failure ledger: %w", err)
	}

	return failed, nil
}

// RecordFailure adds a URL to the ledger. Re-recording an existing URL
// is a no-op that preserves the first-failure timestamp. Once the
// ledger exceeds its capacity the oldest entries are evicted.
func (r *FailureRepository) RecordFailure(ctx context.Context, url string) error {
	insert := `INSERT INTO failed_urls (url) VALUES ($1) ON CONFLICT (url) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, insert, url); err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}

	evict := `
		DELETE FROM failed_urls
		WHERE url IN (
			SELECT url FROM failed_urls
			ORDER BY first_failed_at DESC, url ASC
			OFFSET $1
		)
	`
	if _, err := r.db.ExecContext(ctx, evict, r.capacity); err != nil {
		return fmt.Errorf("failed to evict ledger entries: %w", err)
	}

	return nil
}

// ClearURL removes a single ledger entry. Clearing an absent URL is not
// an error.
func (r *FailureRepository) ClearURL(ctx context.Context, url string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM failed_urls WHERE url = $1`, url); err != nil {
		return fmt.Errorf("failed to clear ledger entry: %w", err)
	}
	return nil
}

// Clear empties the ledger.
func (r *FailureRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM failed_urls`); err != nil {
		return fmt.Errorf("failed to clear failure ledger: %w", err)
	}
	return nil
}

// List returns ledger entries, most recent first.
func (r *FailureRepository) List(ctx context.Context, limit int) ([]domain.FailedURL, error) {
	query := `SELECT url, first_failed_at FROM failed_urls ORDER BY first_failed_at DESC LIMIT $1`

	var entries []domain.FailedURL
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list failure ledger: %w", err)
	}

	return entries, nil
}
