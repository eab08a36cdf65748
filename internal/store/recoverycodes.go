package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// RecoveryCodeRepository defines the persistence contract for one-time
// recovery codes.
type RecoveryCodeRepository interface {
	// Replace atomically discards the user's existing codes and stores
	// the new batch.
	Replace(ctx context.Context, userID string, codes []string) error

	// Consume deletes a matching unconsumed code for the user and
	// reports whether one was found. Absence does not reveal whether any
	// codes remain.
	Consume(ctx context.Context, userID, code string) (bool, error)

	// DeleteAllForUser removes every code owned by userID.
	DeleteAllForUser(ctx context.Context, userID string) error
}

// PostgresRecoveryCodeRepository implements RecoveryCodeRepository over
// PostgreSQL.
type PostgresRecoveryCodeRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRecoveryCodeRepository constructs a repository on db. A nil now
// falls back to time.Now.
func NewPostgresRecoveryCodeRepository(db *sql.DB, now func() time.Time) *PostgresRecoveryCodeRepository {
	if now == nil {
		now = time.Now
	}
	return &PostgresRecoveryCodeRepository{db: db, now: now}
}

func (r *PostgresRecoveryCodeRepository) Replace(ctx context.Context, userID string, codes []string) error {
	return WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM recovery_codes WHERE user_id = $1`, userID); err != nil {
			return storeErr(err)
		}
		created := r.now()
		for _, code := range codes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO recovery_codes (id, user_id, code, created_at) VALUES ($1, $2, $3, $4)`,
				uuid.NewString(), userID, code, created); err != nil {
				return storeErr(err)
			}
		}
		return nil
	})
}

func (r *PostgresRecoveryCodeRepository) Consume(ctx context.Context, userID, code string) (bool, error) {
	// Atomic find-and-delete: of two concurrent consumers of the same
	// code, only one sees an affected row.
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM recovery_codes WHERE user_id = $1 AND code = $2`, userID, code)
	if err != nil {
		return false, storeErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, storeErr(err)
	}
	return affected > 0, nil
}

func (r *PostgresRecoveryCodeRepository) DeleteAllForUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM recovery_codes WHERE user_id = $1`, userID); err != nil {
		return storeErr(err)
	}
	return nil
}
