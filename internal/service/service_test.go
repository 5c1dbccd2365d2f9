package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/quizauth/internal/service"
	"git.sr.ht/~jakintosh/quizauth/internal/testutil"
	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
	"git.sr.ht/~jakintosh/quizauth/pkg/tokens"
)

func TestVerify_Valid(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	user := env.CreateTestUser(t, "alice@example.com", identity.RoleUser)
	accessToken := env.IssueTestAccessToken(t, user, time.Minute)

	// valid token yields the identity
	id, err := env.Service.Verify(accessToken)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if id != user.Identity() {
		t.Errorf("Verify = %+v, want %+v", id, user.Identity())
	}
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	user := env.CreateTestUser(t, "alice@example.com", identity.RoleUser)
	accessToken := env.IssueTestAccessToken(t, user, -time.Minute)

	// expired is distinguishable from other failures
	_, err := env.Service.Verify(accessToken)
	if !errors.Is(err, service.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
	if !errors.Is(err, tokens.ErrTokenExpired()) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerify_ForeignKey(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	otherKey, err := tokens.DeriveSigningKey([]byte("another-secret-also-at-least-32-bytes!!"))
	if err != nil {
		t.Fatalf("DeriveSigningKey failed: %v", err)
	}
	issuer, _ := tokens.InitServer(otherKey, testutil.TestIssuer)
	forged, err := issuer.IssueAccessToken(identity.Identity{
		Subject: "mallory",
		Email:   "mallory@example.com",
		Role:    identity.RoleAdmin,
	}, time.Hour)
	if err != nil {
		t.Fatalf("IssueAccessToken failed: %v", err)
	}

	// tokens signed with another key are rejected as bad signatures
	_, err = env.Service.Verify(forged.Encoded())
	if !errors.Is(err, tokens.ErrTokenBadSignature()) {
		t.Errorf("expected ErrTokenBadSignature, got %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	_, err := env.Service.Verify("garbage")
	if !errors.Is(err, tokens.ErrTokenMalformed()) {
		t.Errorf("expected ErrTokenMalformed, got %v", err)
	}
	_, err = env.Service.Verify("")
	if !errors.Is(err, service.ErrTokenInvalid) {
		t.Errorf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	user := identity.Identity{Subject: "u", Email: "u@x", Role: identity.RoleUser}
	admin := identity.Identity{Subject: "a", Email: "a@x", Role: identity.RoleAdmin}

	tests := []struct {
		name     string
		id       identity.Identity
		required identity.Role
		allowed  bool
	}{
		{"user needs user", user, identity.RoleUser, true},
		{"admin needs user", admin, identity.RoleUser, true},
		{"user needs admin", user, identity.RoleAdmin, false},
		{"admin needs admin", admin, identity.RoleAdmin, true},
		{"unknown role", identity.Identity{Role: "guest"}, identity.RoleUser, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := env.Service.Authorize(tt.id, tt.required)
			if tt.allowed && err != nil {
				t.Errorf("Authorize = %v, want nil", err)
			}
			if !tt.allowed && !errors.Is(err, service.ErrForbiddenRole) {
				t.Errorf("Authorize = %v, want ErrForbiddenRole", err)
			}
		})
	}
}

func TestCheckCSRF(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	// match passes
	if err := env.Service.CheckCSRF("abc", "abc"); err != nil {
		t.Errorf("CheckCSRF(match) = %v", err)
	}

	// missing and mismatch are both rejections, and stay distinguishable
	err := env.Service.CheckCSRF("", "abc")
	if !errors.Is(err, service.ErrCSRFRejected) || !errors.Is(err, tokens.ErrCSRFMissing()) {
		t.Errorf("CheckCSRF(missing) = %v", err)
	}
	err = env.Service.CheckCSRF("abc", "abd")
	if !errors.Is(err, service.ErrCSRFRejected) || !errors.Is(err, tokens.ErrCSRFMismatch()) {
		t.Errorf("CheckCSRF(mismatch) = %v", err)
	}
}

func TestPing(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	if err := env.Service.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}

	// closed store reports unavailable
	env.DB.Close()
	if err := env.Service.Ping(context.Background()); !errors.Is(err, service.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestStoreFailure_IsUnavailable(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	user := env.CreateTestUser(t, "alice@example.com", identity.RoleUser)
	token := env.StoreTestRefreshToken(t, user.ID, time.Now().Add(time.Hour))

	// storage errors are not confused with bad tokens
	env.DB.Close()
	_, err := env.Service.Refresh(context.Background(), token)
	if !errors.Is(err, service.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable, got %v", err)
	}
	if errors.Is(err, service.ErrTokenInvalid) {
		t.Errorf("store failure must not read as an invalid token")
	}
}

func TestSetRoleByEmail(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)
	ctx := context.Background()

	user := env.CreateTestUser(t, "alice@example.com", identity.RoleUser)

	updated, err := env.Service.SetRoleByEmail(ctx, "alice@example.com", identity.RoleAdmin)
	if err != nil {
		t.Fatalf("SetRoleByEmail failed: %v", err)
	}
	if updated.Role != identity.RoleAdmin {
		t.Errorf("Role = %s, want admin", updated.Role)
	}

	stored, err := env.DB.GetIdentity(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetIdentity failed: %v", err)
	}
	if stored.Role != identity.RoleAdmin {
		t.Errorf("stored Role = %s, want admin", stored.Role)
	}

	// unknown accounts and roles are rejected
	if _, err := env.Service.SetRoleByEmail(ctx, "nobody@example.com", identity.RoleAdmin); !errors.Is(err, service.ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := env.Service.SetRoleByEmail(ctx, "alice@example.com", identity.Role("root")); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestRunMaintenance_StopsOnCancel(t *testing.T) {
	t.Parallel()
	env := testutil.SetupTestEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.Service.RunMaintenance(ctx, 5*time.Millisecond) }()

	// let a few ticks run, then stop
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunMaintenance returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("RunMaintenance did not stop")
	}
}
