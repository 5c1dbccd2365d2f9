package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"git.sr.ht/~jakintosh/quizauth/internal/service"
	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
)

func (s *SQLiteStore) IdentityStore() service.IdentityStore {
	return s
}

func (s *SQLiteStore) InsertIdentity(
	ctx context.Context,
	user *service.User,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, google_id, role, created_at)
		VALUES (?1, ?2, ?3, ?4, ?5);`,
		user.ID,
		user.Email,
		user.GoogleID,
		string(user.Role),
		user.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("couldn't insert into users: %v", err)
	}
	return nil
}

func (s *SQLiteStore) GetIdentity(
	ctx context.Context,
	id string,
) (
	*service.User,
	error,
) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, google_id, role, created_at
		FROM users
		WHERE id=?1;`,
		id,
	)
	return scanUser(row)
}

func (s *SQLiteStore) GetIdentityByGoogleID(
	ctx context.Context,
	googleID string,
) (
	*service.User,
	error,
) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, google_id, role, created_at
		FROM users
		WHERE google_id=?1;`,
		googleID,
	)
	return scanUser(row)
}

func (s *SQLiteStore) GetIdentityByEmail(
	ctx context.Context,
	email string,
) (
	*service.User,
	error,
) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, google_id, role, created_at
		FROM users
		WHERE email=?1;`,
		email,
	)
	return scanUser(row)
}

func (s *SQLiteStore) SetRole(
	ctx context.Context,
	id string,
	role identity.Role,
) (
	bool,
	error,
) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET role=?1
		WHERE id=?2;`,
		string(role),
		id,
	)
	if err != nil {
		return false, fmt.Errorf("couldn't update users role: %v", err)
	}

	updated := !resultsEmpty(result)
	return updated, nil
}

// scanUser passes sql.ErrNoRows through unwrapped so callers can match it.
func scanUser(row *sql.Row) (*service.User, error) {
	var (
		user      service.User
		role      string
		createdAt int64
	)
	err := row.Scan(&user.ID, &user.Email, &user.GoogleID, &role, &createdAt)
	if err != nil {
		return nil, err
	}
	user.Role = identity.Role(role)
	user.CreatedAt = time.Unix(createdAt, 0)
	return &user, nil
}
