package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrReservationLost is returned when a renew or release finds the
// reservation no longer held by this owner.
var ErrReservationLost = errors.New("reservation not held by this owner")

// ReservationRepository manages short-lived named reservations with an
// expiry. It backs the batch-run mutual exclusion: a second acquire
// while a live reservation is held fails rather than queueing.
type ReservationRepository struct {
	db *sqlx.DB
}

// NewReservationRepository creates a new reservation repository.
func NewReservationRepository(db *sqlx.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Acquire attempts to take the named reservation for owner with the
// given TTL. It succeeds when no reservation exists or the existing one
// has expired. Returns false, nil when another owner holds it.
func (r *ReservationRepository) Acquire(
	ctx context.Context,
	name, owner string,
	ttl time.Duration,
) (bool, error) {
	query := `
		INSERT INTO batch_reservations (name, owner, expires_at)
		VALUES ($1, $2, NOW() + $3 * INTERVAL '1 second')
		ON CONFLICT (name) DO UPDATE SET
			owner = EXCLUDED.owner,
			expires_at = EXCLUDED.expires_at
		WHERE batch_reservations.expires_at < NOW()
	`

	result, err := r.db.ExecContext(ctx, query, name, owner, ttl.Seconds())
	if err != nil {
		return false, fmt.Errorf("failed to acquire reservation: %w", err)
	}

	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return false, affectedErr
	}

	return n > 0, nil
}

// Renew extends the reservation's expiry. Returns ErrReservationLost if
// the reservation is no longer held by owner.
func (r *ReservationRepository) Renew(
	ctx context.Context,
	name, owner string,
	ttl time.Duration,
) error {
	query := `
		UPDATE batch_reservations
		SET expires_at = NOW() + $3 * INTERVAL '1 second'
		WHERE name = $1 AND owner = $2
	`

	result, execErr := r.db.ExecContext(ctx, query, name, owner, ttl.Seconds())
	return execRequireRows(result, execErr, ErrReservationLost)
}

// Release drops the reservation if still held by owner. Releasing a
// reservation that already expired away is not an error.
func (r *ReservationRepository) Release(ctx context.Context, name, owner string) error {
	query := `DELETE FROM batch_reservations WHERE name = $1 AND owner = $2`

	if _, err := r.db.ExecContext(ctx, query, name, owner); err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	return nil
}

// IsHeld reports whether a live (unexpired) reservation exists.
func (r *ReservationRepository) IsHeld(ctx context.Context, name string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM batch_reservations WHERE name = $1 AND expires_at > NOW())`

	var held bool
	if err := r.db.GetContext(ctx, &held, query, name); err != nil {
		return false, fmt.Errorf("failed to check reservation: %w", err)
	}

	return held, nil
}
