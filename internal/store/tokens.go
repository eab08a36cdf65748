package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dkrasnov/gatekeeper/internal/common"
	"github.com/google/uuid"
)

// TokenType labels the purpose of a stored token.
type TokenType string

const (
	TokenRefresh           TokenType = "REFRESH"
	TokenAccountActivation TokenType = "ACCOUNT_ACTIVATION"
	TokenPasswordReset     TokenType = "PASSWORD_RESET"
)

// singleActive reports whether at most one live token of this type may exist
// per user. Refresh tokens are unlimited (multi-device sessions).
func (t TokenType) singleActive() bool {
	return t == TokenAccountActivation || t == TokenPasswordReset
}

// Token is an opaque, revocable credential row. Access tokens are never
// stored; they are signed and self-contained.
type Token struct {
	ID        string
	UserID    string
	Value     string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenRepository defines the persistence contract for opaque tokens.
type TokenRepository interface {
	// Issue generates a random token value and stores it. For
	// single-active types the prior live token of the same type for the
	// user is removed in the same transaction.
	Issue(ctx context.Context, userID string, typ TokenType, ttl time.Duration) (*Token, error)

	// Consume looks up a token by value and deletes it. An absent value
	// yields common.ErrTokenNotFound, a type mismatch
	// common.ErrTokenWrongType (the row is left untouched), and an
	// expired token common.ErrTokenExpired with the row deleted as a
	// side effect. Exactly one of two concurrent consumers wins.
	Consume(ctx context.Context, value string, typ TokenType) (*Token, error)

	// ConsumeForUser is Consume scoped to an owner. A token belonging to
	// a different user reads as common.ErrTokenNotFound and is left
	// untouched, so a mismatched attempt cannot burn the owner's token.
	ConsumeForUser(ctx context.Context, userID, value string, typ TokenType) (*Token, error)

	// RevokeRefresh deletes the refresh token identified by value when it
	// belongs to userID. Unknown or foreign values are a silent no-op.
	RevokeRefresh(ctx context.Context, userID, value string) error

	// FindRefresh is a read-only lookup of a refresh token by value,
	// used to identify the session during logout without consuming it.
	FindRefresh(ctx context.Context, value string) (*Token, error)

	// DeleteAllForUser removes every token of the given type owned by
	// userID.
	DeleteAllForUser(ctx context.Context, userID string, typ TokenType) error
}

const tokenValueBytes = 32 // 256 bits of entropy, hex-encoded

// PostgresTokenRepository implements TokenRepository over PostgreSQL.
type PostgresTokenRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresTokenRepository constructs a repository on db. A nil now falls
// back to time.Now.
func NewPostgresTokenRepository(db *sql.DB, now func() time.Time) *PostgresTokenRepository {
	if now == nil {
		now = time.Now
	}
	return &PostgresTokenRepository{db: db, now: now}
}

func (r *PostgresTokenRepository) Issue(ctx context.Context, userID string, typ TokenType, ttl time.Duration) (*Token, error) {
	value, err := common.RandHexString(tokenValueBytes)
	if err != nil {
		return nil, err
	}

	issued := r.now()
	tok := &Token{
		ID:        uuid.NewString(),
		UserID:    userID,
		Value:     value,
		Type:      typ,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(ttl),
	}

	const insert = `
		INSERT INTO tokens (id, user_id, value, token_type, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if !typ.singleActive() {
		if _, err := r.db.ExecContext(ctx, insert,
			tok.ID, tok.UserID, tok.Value, tok.Type, tok.IssuedAt, tok.ExpiresAt); err != nil {
			return nil, storeErr(err)
		}
		return tok, nil
	}

	// Delete-existing-then-insert runs in one transaction so two
	// concurrent issuances cannot leave two live tokens of the same
	// purpose for one user.
	err = WithTx(ctx, r.db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM tokens WHERE user_id = $1 AND token_type = $2`,
			userID, typ); err != nil {
			return storeErr(err)
		}
		if _, err := tx.ExecContext(ctx, insert,
			tok.ID, tok.UserID, tok.Value, tok.Type, tok.IssuedAt, tok.ExpiresAt); err != nil {
			return storeErr(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tok, nil
}

func (r *PostgresTokenRepository) Consume(ctx context.Context, value string, typ TokenType) (*Token, error) {
	return r.consume(ctx, "", value, typ)
}

func (r *PostgresTokenRepository) ConsumeForUser(ctx context.Context, userID, value string, typ TokenType) (*Token, error) {
	return r.consume(ctx, userID, value, typ)
}

func (r *PostgresTokenRepository) consume(ctx context.Context, owner, value string, typ TokenType) (*Token, error) {
	tok, err := r.findByValue(ctx, value)
	if err != nil {
		return nil, err
	}

	if owner != "" && tok.UserID != owner {
		return nil, common.ErrTokenNotFound
	}

	if tok.Type != typ {
		return nil, common.ErrTokenWrongType
	}

	if !r.now().Before(tok.ExpiresAt) {
		// Expired tokens are garbage: delete on touch, never extend.
		if _, err := r.db.ExecContext(ctx,
			`DELETE FROM tokens WHERE value = $1`, value); err != nil {
			return nil, storeErr(err)
		}
		return nil, common.ErrTokenExpired
	}

	// Conditional single-row delete: under a race, exactly one caller
	// observes an affected row and every other gets not-found.
	var res sql.Result
	if owner == "" {
		res, err = r.db.ExecContext(ctx,
			`DELETE FROM tokens WHERE value = $1 AND token_type = $2`, value, typ)
	} else {
		res, err = r.db.ExecContext(ctx,
			`DELETE FROM tokens WHERE value = $1 AND token_type = $2 AND user_id = $3`,
			value, typ, owner)
	}
	if err != nil {
		return nil, storeErr(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, storeErr(err)
	}
	if affected == 0 {
		return nil, common.ErrTokenNotFound
	}
	return tok, nil
}

func (r *PostgresTokenRepository) RevokeRefresh(ctx context.Context, userID, value string) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE value = $1 AND user_id = $2 AND token_type = $3`,
		value, userID, TokenRefresh); err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *PostgresTokenRepository) FindRefresh(ctx context.Context, value string) (*Token, error) {
	tok, err := r.findByValue(ctx, value)
	if err != nil {
		return nil, err
	}
	if tok.Type != TokenRefresh {
		return nil, common.ErrTokenNotFound
	}
	return tok, nil
}

func (r *PostgresTokenRepository) DeleteAllForUser(ctx context.Context, userID string, typ TokenType) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM tokens WHERE user_id = $1 AND token_type = $2`,
		userID, typ); err != nil {
		return storeErr(err)
	}
	return nil
}

func (r *PostgresTokenRepository) findByValue(ctx context.Context, value string) (*Token, error) {
	const query = `
		SELECT id, user_id, token_type, issued_at, expires_at
		FROM tokens
		WHERE value = $1
	`
	tok := &Token{Value: value}
	err := r.db.QueryRowContext(ctx, query, value).
		Scan(&tok.ID, &tok.UserID, &tok.Type, &tok.IssuedAt, &tok.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrTokenNotFound
		}
		return nil, storeErr(err)
	}
	return tok, nil
}
