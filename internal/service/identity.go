package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"git.sr.ht/~jakintosh/quizauth/internal/federation"
	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
)

// resolveIdentity finds the user for a federated profile, creating one with
// the user role on first login. The stored role is never touched here.
func (s *Service) resolveIdentity(
	ctx context.Context,
	profile *federation.Profile,
) (
	*User,
	error,
) {
	user, err := s.identityStore.GetIdentityByGoogleID(ctx, profile.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: lookup identity: %v", ErrStoreUnavailable, err)
	}

	user = &User{
		ID:        uuid.NewString(),
		Email:     profile.Email,
		GoogleID:  profile.ID,
		Role:      identity.RoleUser,
		CreatedAt: s.now(),
	}
	if err := s.identityStore.InsertIdentity(ctx, user); err != nil {
		// a concurrent first login for the same account may have won
		existing, lookupErr := s.identityStore.GetIdentityByGoogleID(ctx, profile.ID)
		if lookupErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("%w: insert identity: %v", ErrStoreUnavailable, err)
	}

	s.log.Info("identity created", "user_id", user.ID, "email", user.Email)
	return user, nil
}

func (s *Service) lookupByEmail(
	ctx context.Context,
	email string,
) (
	*User,
	error,
) {
	user, err := s.identityStore.GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, email)
		}
		return nil, fmt.Errorf("%w: lookup identity: %v", ErrStoreUnavailable, err)
	}
	return user, nil
}

// SetRoleByEmail changes the stored role of an account. Access tokens already
// issued keep their old role until they expire; the next refresh picks up
// the change.
func (s *Service) SetRoleByEmail(
	ctx context.Context,
	email string,
	role identity.Role,
) (
	*User,
	error,
) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInternal, role)
	}

	user, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	updated, err := s.identityStore.SetRole(ctx, user.ID, role)
	if err != nil {
		return nil, fmt.Errorf("%w: set role: %v", ErrStoreUnavailable, err)
	}
	if !updated {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, email)
	}

	user.Role = role
	s.log.Info("role changed", "user_id", user.ID, "email", email, "role", role)
	return user, nil
}

// RevokeAllByEmail logs an account out everywhere.
func (s *Service) RevokeAllByEmail(
	ctx context.Context,
	email string,
) (
	int64,
	error,
) {
	user, err := s.lookupByEmail(ctx, email)
	if err != nil {
		return 0, err
	}
	return s.RevokeAll(ctx, user.ID)
}
