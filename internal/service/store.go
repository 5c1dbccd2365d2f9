package service

import (
	"context"
	"time"

	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
)

// User is a persisted identity. Role is authoritative here and is copied
// into access tokens at issuance.
type User struct {
	ID        string
	Email     string
	GoogleID  string
	Role      identity.Role
	CreatedAt time.Time
}

func (u *User) Identity() identity.Identity {
	return identity.Identity{
		Subject: u.ID,
		Email:   u.Email,
		Role:    u.Role,
	}
}

// RefreshRecord is a stored refresh token. The token value itself is opaque.
type RefreshRecord struct {
	Token     string
	Owner     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IdentityStore handles persistence of user identity data. Lookups that find
// nothing return an error matching sql.ErrNoRows.
type IdentityStore interface {
	InsertIdentity(ctx context.Context, user *User) error
	GetIdentity(ctx context.Context, id string) (*User, error)
	GetIdentityByGoogleID(ctx context.Context, googleID string) (*User, error)
	GetIdentityByEmail(ctx context.Context, email string) (*User, error)
	SetRole(ctx context.Context, id string, role identity.Role) (updated bool, err error)
}

// RefreshStore handles persistence of refresh tokens. Records whose
// expiration is not after now are treated as absent by every read.
type RefreshStore interface {
	InsertRefreshToken(ctx context.Context, record *RefreshRecord) error
	GetRefreshToken(ctx context.Context, token string, now time.Time) (*RefreshRecord, error)
	// RotateRefreshToken atomically deletes oldToken and inserts next. It
	// reports rotated=false, with nothing inserted, when oldToken was no
	// longer present.
	RotateRefreshToken(ctx context.Context, oldToken string, next *RefreshRecord, now time.Time) (rotated bool, err error)
	DeleteRefreshToken(ctx context.Context, token string) (deleted bool, err error)
	DeleteRefreshTokensFor(ctx context.Context, owner string) (int64, error)
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// Pinger is implemented by stores that can report their own health.
type Pinger interface {
	Ping(ctx context.Context) error
}
