package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dkrasnov/gatekeeper/internal/common"
)

var fixedNow = time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

func newTokenRepo(db *sql.DB) *PostgresTokenRepository {
	return NewPostgresTokenRepository(db, func() time.Time { return fixedNow })
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestIssue_Refresh_InsertsWithoutTx(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	mock.ExpectExec("INSERT INTO tokens").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := newTokenRepo(db)
	tok, err := repo.Issue(context.Background(), "u1", TokenRefresh, time.Hour)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}

	if tok.UserID != "u1" || tok.Type != TokenRefresh {
		t.Fatalf("unexpected token: %+v", tok)
	}
	if !regexp.MustCompile(`^[0-9a-f]{64}$`).MatchString(tok.Value) {
		t.Fatalf("value is not 32 random bytes hex: %q", tok.Value)
	}
	if !tok.ExpiresAt.Equal(fixedNow.Add(time.Hour)) {
		t.Fatalf("expiry mismatch: %v", tok.ExpiresAt)
	}
	expectationsMet(t, mock)
}

func TestIssue_SingleActive_DeletesPriorInSameTx(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM tokens WHERE user_id").
		WithArgs("u1", string(TokenPasswordReset)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO tokens").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	repo := newTokenRepo(db)
	if _, err := repo.Issue(context.Background(), "u1", TokenPasswordReset, time.Hour); err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestIssue_SingleActive_RollsBackOnInsertError(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM tokens WHERE user_id").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO tokens").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	repo := newTokenRepo(db)
	_, err := repo.Issue(context.Background(), "u1", TokenAccountActivation, time.Hour)
	if !errors.Is(err, common.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	expectationsMet(t, mock)
}

func tokenRows(id, userID string, typ TokenType, expires time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "token_type", "issued_at", "expires_at"}).
		AddRow(id, userID, string(typ), fixedNow.Add(-time.Minute), expires)
}

func TestConsume_Success(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id, user_id, token_type, issued_at, expires_at").
		WithArgs("v1").
		WillReturnRows(tokenRows("t1", "u1", TokenPasswordReset, fixedNow.Add(time.Hour)))
	mock.ExpectExec("DELETE FROM tokens WHERE value").
		WithArgs("v1", string(TokenPasswordReset)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := newTokenRepo(db)
	tok, err := repo.Consume(context.Background(), "v1", TokenPasswordReset)
	if err != nil {
		t.Fatalf("Consume error: %v", err)
	}
	if tok.UserID != "u1" || tok.ID != "t1" {
		t.Fatalf("unexpected token: %+v", tok)
	}
	expectationsMet(t, mock)
}

func TestConsume_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id, user_id, token_type, issued_at, expires_at").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	repo := newTokenRepo(db)
	_, err := repo.Consume(context.Background(), "missing", TokenRefresh)
	if !errors.Is(err, common.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestConsume_WrongTypeLeavesRow(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id, user_id, token_type, issued_at, expires_at").
		WithArgs("v1").
		WillReturnRows(tokenRows("t1", "u1", TokenAccountActivation, fixedNow.Add(time.Hour)))

	repo := newTokenRepo(db)
	_, err := repo.Consume(context.Background(), "v1", TokenPasswordReset)
	if !errors.Is(err, common.ErrTokenWrongType) {
		t.Fatalf("expected ErrTokenWrongType, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestConsume_ExpiredDeletesRow(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id, user_id, token_type, issued_at, expires_at").
		WithArgs("v1").
		WillReturnRows(tokenRows("t1", "u1", TokenRefresh, fixedNow.Add(-time.Second)))
	mock.ExpectExec("DELETE FROM tokens WHERE value").
		WithArgs("v1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := newTokenRepo(db)
	_, err := repo.Consume(context.Background(), "v1", TokenRefresh)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestConsume_ExpiredAtExactBoundary(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	// now == expires_at counts as expired.
	mock.ExpectQuery("SELECT id, user_id, token_type, issued_at, expires_at").
		WithArgs("v1").
		WillReturnRows(tokenRows("t1", "u1", TokenRefresh, fixedNow))
	mock.ExpectExec("DELETE FROM tokens WHERE value").
		WithArgs("v1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := newTokenRepo(db)
	_, err := repo.Consume(context.Background(), "v1", TokenRefresh)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestConsume_RaceLoserGetsNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	// The row was read, but a concurrent consumer deleted it first.
	mock.ExpectQuery("SELECT id, user_id, token_type, issued_at, expires_at").
		WithArgs("v1").
		WillReturnRows(tokenRows("t1", "u1", TokenRefresh, fixedNow.Add(time.Hour)))
	mock.ExpectExec("DELETE FROM tokens WHERE value").
		WithArgs("v1", string(TokenRefresh)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := newTokenRepo(db)
	_, err := repo.Consume(context.Background(), "v1", TokenRefresh)
	if !errors.Is(err, common.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestConsumeForUser_Success(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id, user_id, token_type, issued_at, expires_at").
		WithArgs("v1").
		WillReturnRows(tokenRows("t1", "u1", TokenAccountActivation, fixedNow.Add(time.Hour)))
	mock.ExpectExec("DELETE FROM tokens WHERE value").
		WithArgs("v1", string(TokenAccountActivation), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := newTokenRepo(db)
	tok, err := repo.ConsumeForUser(context.Background(), "u1", "v1", TokenAccountActivation)
	if err != nil {
		t.Fatalf("ConsumeForUser error: %v", err)
	}
	if tok.UserID != "u1" || tok.ID != "t1" {
		t.Fatalf("unexpected token: %+v", tok)
	}
	expectationsMet(t, mock)
}

func TestConsumeForUser_ForeignOwnerLeavesRow(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	// Only the lookup runs; the foreign row must survive the attempt.
	mock.ExpectQuery("SELECT id, user_id, token_type, issued_at, expires_at").
		WithArgs("v1").
		WillReturnRows(tokenRows("t1", "owner", TokenAccountActivation, fixedNow.Add(time.Hour)))

	repo := newTokenRepo(db)
	_, err := repo.ConsumeForUser(context.Background(), "intruder", "v1", TokenAccountActivation)
	if !errors.Is(err, common.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestRevokeRefresh_ForeignTokenIsNoOp(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	mock.ExpectExec("DELETE FROM tokens WHERE value").
		WithArgs("v1", "caller", string(TokenRefresh)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := newTokenRepo(db)
	if err := repo.RevokeRefresh(context.Background(), "caller", "v1"); err != nil {
		t.Fatalf("RevokeRefresh error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestFindRefresh_HidesOtherTokenTypes(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id, user_id, token_type, issued_at, expires_at").
		WithArgs("v1").
		WillReturnRows(tokenRows("t1", "u1", TokenAccountActivation, fixedNow.Add(time.Hour)))

	repo := newTokenRepo(db)
	_, err := repo.FindRefresh(context.Background(), "v1")
	if !errors.Is(err, common.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestFindRefresh_Success(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	mock.ExpectQuery("SELECT id, user_id, token_type, issued_at, expires_at").
		WithArgs("v1").
		WillReturnRows(tokenRows("t1", "u1", TokenRefresh, fixedNow.Add(time.Hour)))

	repo := newTokenRepo(db)
	tok, err := repo.FindRefresh(context.Background(), "v1")
	if err != nil {
		t.Fatalf("FindRefresh error: %v", err)
	}
	if tok.UserID != "u1" {
		t.Fatalf("unexpected token: %+v", tok)
	}
	expectationsMet(t, mock)
}

func TestDeleteAllForUser(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	mock.ExpectExec("DELETE FROM tokens WHERE user_id").
		WithArgs("u1", string(TokenRefresh)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	repo := newTokenRepo(db)
	if err := repo.DeleteAllForUser(context.Background(), "u1", TokenRefresh); err != nil {
		t.Fatalf("DeleteAllForUser error: %v", err)
	}
	expectationsMet(t, mock)
}
