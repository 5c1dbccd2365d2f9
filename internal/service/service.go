// Package service implements the session core of the quizauth server: Google
// login, access token issuance and verification, refresh token rotation,
// logout, and role checks.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.sr.ht/~jakintosh/quizauth/internal/federation"
	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
	"git.sr.ht/~jakintosh/quizauth/pkg/tokens"
)

var (
	ErrFederation       = federation.ErrFederation
	ErrEmailUnverified  = federation.ErrEmailUnverified
	ErrMissingParams    = fmt.Errorf("%w: missing code or state", federation.ErrFederation)
	ErrStateInvalid     = fmt.Errorf("%w: invalid state", federation.ErrFederation)
	ErrTokenInvalid     = errors.New("token invalid")
	ErrTokenNotFound    = fmt.Errorf("%w: token not found", ErrTokenInvalid)
	ErrForbiddenRole    = errors.New("forbidden role")
	ErrCSRFRejected     = errors.New("csrf rejected")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrAccountNotFound  = errors.New("account not found")
	ErrInternal         = errors.New("internal error")
)

// Provider is the external identity provider a login is delegated to.
type Provider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*federation.Profile, error)
}

type Options struct {
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
	StateLifetime   time.Duration
	Logger          *slog.Logger
}

const (
	DefaultAccessLifetime  = 15 * time.Minute
	DefaultRefreshLifetime = 7 * 24 * time.Hour
	DefaultStateLifetime   = 5 * time.Minute
)

// Service coordinates login, token, and role operations. It depends on
// storage interfaces (IdentityStore, RefreshStore) and delegates to them for
// persistence.
type Service struct {
	identityStore  IdentityStore
	refreshStore   RefreshStore
	provider       Provider
	states         *StateStore
	tokenIssuer    tokens.Issuer
	tokenValidator tokens.Validator

	accessLifetime  time.Duration
	refreshLifetime time.Duration
	log             *slog.Logger
	now             func() time.Time
}

func New(
	identityStore IdentityStore,
	refreshStore RefreshStore,
	provider Provider,
	issuer tokens.Issuer,
	validator tokens.Validator,
	opts Options,
) *Service {
	if opts.AccessLifetime <= 0 {
		opts.AccessLifetime = DefaultAccessLifetime
	}
	if opts.RefreshLifetime <= 0 {
		opts.RefreshLifetime = DefaultRefreshLifetime
	}
	if opts.StateLifetime <= 0 {
		opts.StateLifetime = DefaultStateLifetime
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		identityStore:   identityStore,
		refreshStore:    refreshStore,
		provider:        provider,
		states:          NewStateStore(opts.StateLifetime),
		tokenIssuer:     issuer,
		tokenValidator:  validator,
		accessLifetime:  opts.AccessLifetime,
		refreshLifetime: opts.RefreshLifetime,
		log:             logger.With("component", "session"),
		now:             time.Now,
	}
}

func (s *Service) States() *StateStore {
	return s.states
}

func (s *Service) AccessLifetime() time.Duration {
	return s.accessLifetime
}

func (s *Service) RefreshLifetime() time.Duration {
	return s.refreshLifetime
}

// Verify decodes an access token into the identity it proves. Failures wrap
// ErrTokenInvalid together with the codec's reason, so callers can tell an
// expired token from a forged one.
func (s *Service) Verify(
	accessToken string,
) (
	identity.Identity,
	error,
) {
	if accessToken == "" {
		return identity.Identity{}, fmt.Errorf("%w: no access token", ErrTokenInvalid)
	}

	token := tokens.AccessToken{}
	if err := token.Decode(accessToken, s.tokenValidator); err != nil {
		return identity.Identity{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	return token.Identity(), nil
}

// Authorize checks that id carries at least the required role.
func (s *Service) Authorize(
	id identity.Identity,
	required identity.Role,
) error {
	switch required {
	case identity.RoleUser:
		if id.Role.Valid() {
			return nil
		}
	case identity.RoleAdmin:
		if id.IsAdmin() {
			return nil
		}
	}
	return fmt.Errorf("%w: %s requires %s", ErrForbiddenRole, id.Role, required)
}

// CheckCSRF validates a double-submit pair. The returned error wraps both
// ErrCSRFRejected and the specific tokens error.
func (s *Service) CheckCSRF(
	cookieValue string,
	headerValue string,
) error {
	if err := tokens.ValidateCSRF(cookieValue, headerValue); err != nil {
		return fmt.Errorf("%w: %w", ErrCSRFRejected, err)
	}
	return nil
}

// Ping reports whether the backing stores are reachable.
func (s *Service) Ping(ctx context.Context) error {
	if p, ok := s.identityStore.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return nil
}

// RunMaintenance sweeps expired login states and purges expired refresh
// tokens every interval until ctx is done.
func (s *Service) RunMaintenance(
	ctx context.Context,
	interval time.Duration,
) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			swept := s.states.Sweep()
			purged, err := s.PurgeExpired(ctx)
			if err != nil {
				s.log.Error("refresh token purge failed", "error", err)
				continue
			}
			if swept > 0 || purged > 0 {
				s.log.Debug("maintenance", "states_swept", swept, "refresh_purged", purged)
			}
		}
	}
}
