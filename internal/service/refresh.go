package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *Service) issueRefresh(
	ctx context.Context,
	owner string,
) (
	*RefreshRecord,
	error,
) {
	record, err := s.newRefreshRecord(owner)
	if err != nil {
		return nil, err
	}
	if err := s.refreshStore.InsertRefreshToken(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: failed to store refresh token: %v", ErrStoreUnavailable, err)
	}
	return record, nil
}

func (s *Service) newRefreshRecord(owner string) (*RefreshRecord, error) {
	token, err := generateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	now := s.now()
	return &RefreshRecord{
		Token:     token,
		Owner:     owner,
		ExpiresAt: now.Add(s.refreshLifetime),
		CreatedAt: now,
	}, nil
}

// ValidateRefreshToken returns the stored record for token if it exists and
// has not expired.
func (s *Service) ValidateRefreshToken(
	ctx context.Context,
	token string,
) (
	*RefreshRecord,
	error,
) {
	record, err := s.refreshStore.GetRefreshToken(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("%w: lookup refresh token: %v", ErrStoreUnavailable, err)
	}
	return record, nil
}

// rotateRefresh replaces oldToken with a fresh token for owner. When two
// callers race on the same token only one gets a replacement; the other
// sees ErrTokenNotFound.
func (s *Service) rotateRefresh(
	ctx context.Context,
	oldToken string,
	owner string,
) (
	*RefreshRecord,
	error,
) {
	next, err := s.newRefreshRecord(owner)
	if err != nil {
		return nil, err
	}

	rotated, err := s.refreshStore.RotateRefreshToken(ctx, oldToken, next, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: refresh token couldn't be rotated: %v", ErrStoreUnavailable, err)
	}
	if !rotated {
		return nil, ErrTokenNotFound
	}
	return next, nil
}

func (s *Service) RevokeRefreshToken(
	ctx context.Context,
	refreshToken string,
) error {
	deleted, err := s.refreshStore.DeleteRefreshToken(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("%w: failed to delete refresh token: %v", ErrStoreUnavailable, err)
	}
	if !deleted {
		return ErrTokenNotFound
	}
	return nil
}

// RevokeAll deletes every refresh token owned by identityID.
func (s *Service) RevokeAll(
	ctx context.Context,
	identityID string,
) (
	int64,
	error,
) {
	count, err := s.refreshStore.DeleteRefreshTokensFor(ctx, identityID)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to revoke refresh tokens: %v", ErrStoreUnavailable, err)
	}
	s.log.Info("refresh tokens revoked", "user_id", identityID, "count", count)
	return count, nil
}

// PurgeExpired removes refresh tokens past their expiration.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	count, err := s.refreshStore.DeleteExpiredRefreshTokens(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%w: failed to purge refresh tokens: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}
