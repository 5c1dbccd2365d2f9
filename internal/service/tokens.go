package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"git.sr.ht/~jakintosh/quizauth/pkg/tokens"
)

var generateRefreshToken = tokens.GenerateRefreshToken

// Refresh exchanges a refresh token for a new access token and a rotated
// refresh token. The role in the new access token is read from the store,
// so role changes take effect here. The returned session has no CSRF token.
func (s *Service) Refresh(
	ctx context.Context,
	refreshToken string,
) (
	*Session,
	error,
) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", ErrTokenInvalid)
	}

	record, err := s.ValidateRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.identityStore.GetIdentity(ctx, record.Owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: owner %s not found", ErrTokenInvalid, record.Owner)
		}
		return nil, fmt.Errorf("%w: lookup identity: %v", ErrStoreUnavailable, err)
	}

	accessToken, err := s.tokenIssuer.IssueAccessToken(user.Identity(), s.accessLifetime)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't issue access token: %v", ErrInternal, err)
	}

	next, err := s.rotateRefresh(ctx, refreshToken, user.ID)
	if err != nil {
		return nil, err
	}

	return &Session{
		Identity:         user.Identity(),
		AccessToken:      accessToken.Encoded(),
		AccessExpiresAt:  accessToken.Expiration(),
		RefreshToken:     next.Token,
		RefreshExpiresAt: next.ExpiresAt,
	}, nil
}

// Logout revokes refreshToken if it is known. Unknown or empty tokens are not
// an error: the caller clears cookies either way.
func (s *Service) Logout(
	ctx context.Context,
	refreshToken string,
) error {
	if refreshToken == "" {
		return nil
	}

	err := s.RevokeRefreshToken(ctx, refreshToken)
	if errors.Is(err, ErrTokenNotFound) {
		s.log.Debug("logout with unknown refresh token")
		return nil
	}
	return err
}
