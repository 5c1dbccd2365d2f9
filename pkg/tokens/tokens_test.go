package tokens_test

import (
	"bytes"
	"encoding/hex"
	"testing"

	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
	"git.sr.ht/~jakintosh/quizauth/pkg/tokens"
)

const testSecret = "0123456789abcdef0123456789abcdef-test"

// getSharedTestKey returns the signing key derived from the shared test secret.
func getSharedTestKey(t *testing.T) []byte {
	t.Helper()
	key, err := tokens.DeriveSigningKey([]byte(testSecret))
	if err != nil {
		t.Fatalf("DeriveSigningKey failed: %v", err)
	}
	return key
}

// generateTestKey derives a key from a distinct secret for tests that need
// tokens the shared key cannot verify.
func generateTestKey(t *testing.T) []byte {
	t.Helper()
	key, err := tokens.DeriveSigningKey([]byte("fedcba9876543210fedcba9876543210-other"))
	if err != nil {
		t.Fatalf("DeriveSigningKey failed: %v", err)
	}
	return key
}

func testIdentity(role identity.Role) identity.Identity {
	return identity.Identity{
		Subject: "3f0c7a1e-user",
		Email:   "alice@example.com",
		Role:    role,
	}
}

func TestInitServer(t *testing.T) {
	t.Parallel()
	key := getSharedTestKey(t)

	// server initialization returns issuer and validator
	issuer, validator := tokens.InitServer(key, "test.domain")
	if issuer == nil {
		t.Error("InitServer returned nil issuer")
	}
	if validator == nil {
		t.Error("InitServer returned nil validator")
	}
}

func TestDeriveSigningKey_Deterministic(t *testing.T) {
	t.Parallel()

	// same secret derives the same key
	a, err := tokens.DeriveSigningKey([]byte(testSecret))
	if err != nil {
		t.Fatalf("DeriveSigningKey failed: %v", err)
	}
	b, err := tokens.DeriveSigningKey([]byte(testSecret))
	if err != nil {
		t.Fatalf("DeriveSigningKey failed: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("expected identical keys for identical secrets")
	}

	// derived key differs from the raw secret
	if bytes.Equal(a, []byte(testSecret)[:32]) {
		t.Error("derived key should not equal the raw secret")
	}
}

func TestDeriveSigningKey_ShortSecret(t *testing.T) {
	t.Parallel()

	// secrets below the minimum length are rejected
	_, err := tokens.DeriveSigningKey([]byte("too-short"))
	if err == nil {
		t.Error("expected error for short secret")
	}
}

func TestGenerateRefreshToken(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for range 50 {
		token, err := tokens.GenerateRefreshToken()
		if err != nil {
			t.Fatalf("GenerateRefreshToken failed: %v", err)
		}

		// 32 random bytes, hex encoded
		if len(token) != 64 {
			t.Errorf("token length = %d, want 64", len(token))
		}
		if _, err := hex.DecodeString(token); err != nil {
			t.Errorf("token is not hex: %v", err)
		}
		if seen[token] {
			t.Fatalf("duplicate refresh token generated: %s", token)
		}
		seen[token] = true
	}
}

func TestGenerateState_Unique(t *testing.T) {
	t.Parallel()

	a, err := tokens.GenerateState()
	if err != nil {
		t.Fatalf("GenerateState failed: %v", err)
	}
	b, err := tokens.GenerateState()
	if err != nil {
		t.Fatalf("GenerateState failed: %v", err)
	}
	if a == b {
		t.Error("expected distinct state values")
	}
}
