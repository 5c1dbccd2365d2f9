package service

import (
	"context"
	"fmt"
	"net/url"

	"git.sr.ht/~jakintosh/quizauth/pkg/tokens"
)

// BeginLogin records a fresh state and returns the provider URL the browser
// should be redirected to.
func (s *Service) BeginLogin() (*url.URL, error) {
	state, err := s.states.Issue()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to generate state: %v", ErrInternal, err)
	}

	redirectURL, err := url.Parse(s.provider.AuthCodeURL(state))
	if err != nil {
		return nil, fmt.Errorf("%w: bad provider url: %v", ErrInternal, err)
	}
	return redirectURL, nil
}

// CompleteLogin finishes the provider round trip: it consumes state,
// exchanges code for a verified profile, resolves the local identity, and
// issues a full session.
func (s *Service) CompleteLogin(
	ctx context.Context,
	code string,
	state string,
) (
	*Session,
	error,
) {
	if code == "" || state == "" {
		return nil, ErrMissingParams
	}

	if !s.states.TakeIfValid(state) {
		return nil, ErrStateInvalid
	}

	profile, err := s.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := s.resolveIdentity(ctx, profile)
	if err != nil {
		return nil, err
	}

	session, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}

	s.log.Info("login", "user_id", user.ID, "email", user.Email)
	return session, nil
}

func (s *Service) issueSession(
	ctx context.Context,
	user *User,
) (
	*Session,
	error,
) {
	accessToken, err := s.tokenIssuer.IssueAccessToken(user.Identity(), s.accessLifetime)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't issue access token: %v", ErrInternal, err)
	}

	csrfToken, err := tokens.IssueCSRFToken()
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't issue csrf token: %v", ErrInternal, err)
	}

	refresh, err := s.issueRefresh(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	return &Session{
		Identity:         user.Identity(),
		AccessToken:      accessToken.Encoded(),
		AccessExpiresAt:  accessToken.Expiration(),
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
		CSRFToken:        csrfToken,
	}, nil
}
