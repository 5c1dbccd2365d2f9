package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"git.sr.ht/~jakintosh/quizauth/internal/service"
)

func (s *SQLiteStore) RefreshStore() service.RefreshStore {
	return s
}

func (s *SQLiteStore) InsertRefreshToken(
	ctx context.Context,
	record *service.RefreshRecord,
) error {
	return insertRefresh(ctx, s.db, record)
}

func (s *SQLiteStore) GetRefreshToken(
	ctx context.Context,
	token string,
	now time.Time,
) (
	*service.RefreshRecord,
	error,
) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, owner, expiration, created_at
		FROM refresh_tokens
		WHERE token=?1 AND expiration > ?2;`,
		token,
		now.Unix(),
	)

	var (
		record     service.RefreshRecord
		expiration int64
		createdAt  int64
	)
	err := row.Scan(&record.Token, &record.Owner, &expiration, &createdAt)
	if err != nil {
		return nil, err
	}
	record.ExpiresAt = time.Unix(expiration, 0)
	record.CreatedAt = time.Unix(createdAt, 0)
	return &record, nil
}

// RotateRefreshToken runs delete-then-insert in one transaction. The delete
// is the serialization point: of several concurrent rotations of the same
// token exactly one observes a deleted row, and the rest roll back without
// inserting anything.
func (s *SQLiteStore) RotateRefreshToken(
	ctx context.Context,
	oldToken string,
	next *service.RefreshRecord,
	now time.Time,
) (
	bool,
	error,
) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("couldn't begin rotation: %v", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE token=?1 AND owner=?2 AND expiration > ?3;`,
		oldToken,
		next.Owner,
		now.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("couldn't delete from refresh_tokens: %v", err)
	}
	if resultsEmpty(result) {
		return false, nil
	}

	if err := insertRefresh(ctx, tx, next); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("couldn't commit rotation: %v", err)
	}
	return true, nil
}

func (s *SQLiteStore) DeleteRefreshToken(
	ctx context.Context,
	token string,
) (
	bool,
	error,
) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE token=?1;`,
		token,
	)
	if err != nil {
		return false, fmt.Errorf("couldn't delete from refresh_tokens: %v", err)
	}

	deleted := !resultsEmpty(result)
	return deleted, nil
}

func (s *SQLiteStore) DeleteRefreshTokensFor(
	ctx context.Context,
	owner string,
) (
	int64,
	error,
) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE owner=?1;`,
		owner,
	)
	if err != nil {
		return 0, fmt.Errorf("couldn't delete owner refresh_tokens: %v", err)
	}
	return result.RowsAffected()
}

func (s *SQLiteStore) DeleteExpiredRefreshTokens(
	ctx context.Context,
	now time.Time,
) (
	int64,
	error,
) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE expiration <= ?1;`,
		now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("couldn't purge refresh_tokens: %v", err)
	}
	return result.RowsAffected()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRefresh(
	ctx context.Context,
	db execer,
	record *service.RefreshRecord,
) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (owner, token, expiration, created_at)
		VALUES (?1, ?2, ?3, ?4);`,
		record.Owner,
		record.Token,
		record.ExpiresAt.Unix(),
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("couldn't insert into refresh_tokens: %v", err)
	}
	return nil
}
