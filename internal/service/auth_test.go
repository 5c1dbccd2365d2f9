package service_test

import (
	"context"
	"errors"
	"testing"

	"git.sr.ht/~jakintosh/quizauth/internal/service"
	"git.sr.ht/~jakintosh/quizauth/internal/testutil"
	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
)

func TestBeginLogin(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	// each login records a distinct pending state
	first, err := env.Service.BeginLogin()
	if err != nil {
		t.Fatalf("BeginLogin failed: %v", err)
	}
	second, err := env.Service.BeginLogin()
	if err != nil {
		t.Fatalf("BeginLogin failed: %v", err)
	}

	s1 := testutil.StateFromRedirect(t, first.String())
	s2 := testutil.StateFromRedirect(t, second.String())
	if s1 == s2 {
		t.Error("expected distinct states")
	}
	if env.Service.States().Len() != 2 {
		t.Errorf("pending states = %d, want 2", env.Service.States().Len())
	}
}

func TestCompleteLogin_NewUser(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	ctx := context.Background()

	state := env.BeginTestLogin(t)
	env.Google.AddCode("code-1", testutil.GoogleProfile("g-alice", "alice@example.com"))

	// first login creates a user with the user role
	session, err := env.Service.CompleteLogin(ctx, "code-1", state)
	if err != nil {
		t.Fatalf("CompleteLogin failed: %v", err)
	}
	if session.Identity.Email != "alice@example.com" {
		t.Errorf("Email = %s", session.Identity.Email)
	}
	if session.Identity.Role != identity.RoleUser {
		t.Errorf("Role = %s, want user", session.Identity.Role)
	}
	if session.AccessToken == "" || session.RefreshToken == "" || session.CSRFToken == "" {
		t.Errorf("expected all three session values, got %+v", session)
	}

	user, err := env.DB.GetIdentityByGoogleID(ctx, "g-alice")
	if err != nil {
		t.Fatalf("user not persisted: %v", err)
	}
	if user.ID != session.Identity.Subject {
		t.Errorf("subject %s does not match stored id %s", session.Identity.Subject, user.ID)
	}

	// access token verifies to the same identity
	id, err := env.Service.Verify(session.AccessToken)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if id != session.Identity {
		t.Errorf("Verify = %+v, want %+v", id, session.Identity)
	}

	// refresh token is stored for the user
	record, err := env.Service.ValidateRefreshToken(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("refresh token not stored: %v", err)
	}
	if record.Owner != user.ID {
		t.Errorf("refresh owner = %s, want %s", record.Owner, user.ID)
	}
}

func TestCompleteLogin_ExistingUserKeepsRole(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	admin := env.CreateTestUser(t, "root@example.com", identity.RoleAdmin)

	// returning admin logs in as admin, without a duplicate row
	state := env.BeginTestLogin(t)
	env.Google.AddCode("code", testutil.GoogleProfile(admin.GoogleID, admin.Email))

	session, err := env.Service.CompleteLogin(context.Background(), "code", state)
	if err != nil {
		t.Fatalf("CompleteLogin failed: %v", err)
	}
	if session.Identity.Subject != admin.ID {
		t.Errorf("Subject = %s, want %s", session.Identity.Subject, admin.ID)
	}
	if session.Identity.Role != identity.RoleAdmin {
		t.Errorf("Role = %s, want admin", session.Identity.Role)
	}
}

func TestCompleteLogin_MissingParams(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	state := env.BeginTestLogin(t)

	// missing code or state fails before touching the provider
	_, err := env.Service.CompleteLogin(context.Background(), "", state)
	if !errors.Is(err, service.ErrMissingParams) {
		t.Errorf("expected ErrMissingParams, got %v", err)
	}
	_, err = env.Service.CompleteLogin(context.Background(), "code", "")
	if !errors.Is(err, service.ErrMissingParams) {
		t.Errorf("expected ErrMissingParams, got %v", err)
	}
	if env.Google.Exchanges() != 0 {
		t.Errorf("provider contacted %d times", env.Google.Exchanges())
	}
}

func TestCompleteLogin_UnknownState(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	env.Google.AddCode("code", testutil.GoogleProfile("g-1", "a@example.com"))

	// a state never issued is rejected without an exchange
	_, err := env.Service.CompleteLogin(context.Background(), "code", "forged-state")
	if !errors.Is(err, service.ErrStateInvalid) {
		t.Errorf("expected ErrStateInvalid, got %v", err)
	}
	if !errors.Is(err, service.ErrFederation) {
		t.Errorf("ErrStateInvalid should be a federation error")
	}
	if env.Google.Exchanges() != 0 {
		t.Errorf("provider contacted %d times", env.Google.Exchanges())
	}
}

func TestCompleteLogin_StateReuse(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	state := env.BeginTestLogin(t)
	env.Google.AddCode("code-1", testutil.GoogleProfile("g-1", "a@example.com"))
	env.Google.AddCode("code-2", testutil.GoogleProfile("g-1", "a@example.com"))

	if _, err := env.Service.CompleteLogin(context.Background(), "code-1", state); err != nil {
		t.Fatalf("first CompleteLogin failed: %v", err)
	}

	// the same state cannot complete a second login
	_, err := env.Service.CompleteLogin(context.Background(), "code-2", state)
	if !errors.Is(err, service.ErrStateInvalid) {
		t.Errorf("expected ErrStateInvalid on reuse, got %v", err)
	}
}

func TestCompleteLogin_StateConsumedOnFailure(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	state := env.BeginTestLogin(t)

	// a failed exchange still burns the state
	_, err := env.Service.CompleteLogin(context.Background(), "bad-code", state)
	if !errors.Is(err, service.ErrFederation) {
		t.Fatalf("expected ErrFederation, got %v", err)
	}

	env.Google.AddCode("good-code", testutil.GoogleProfile("g-1", "a@example.com"))
	_, err = env.Service.CompleteLogin(context.Background(), "good-code", state)
	if !errors.Is(err, service.ErrStateInvalid) {
		t.Errorf("expected ErrStateInvalid, got %v", err)
	}
}

func TestCompleteLogin_UnverifiedEmail(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	ctx := context.Background()

	state := env.BeginTestLogin(t)
	profile := testutil.GoogleProfile("g-1", "a@example.com")
	profile.VerifiedEmail = false
	env.Google.AddCode("code", profile)

	// unverified accounts never get a user row
	_, err := env.Service.CompleteLogin(ctx, "code", state)
	if !errors.Is(err, service.ErrEmailUnverified) {
		t.Errorf("expected ErrEmailUnverified, got %v", err)
	}
	if _, err := env.DB.GetIdentityByGoogleID(ctx, "g-1"); err == nil {
		t.Error("unverified user should not be created")
	}
}
