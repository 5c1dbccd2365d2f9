// Package testutil provides test environment setup and utilities for internal package tests.
package testutil

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"git.sr.ht/~jakintosh/quizauth/internal/api"
	"git.sr.ht/~jakintosh/quizauth/internal/database"
	"git.sr.ht/~jakintosh/quizauth/internal/federation"
	"git.sr.ht/~jakintosh/quizauth/internal/service"
	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
	"git.sr.ht/~jakintosh/quizauth/pkg/tokens"
)

const (
	TestIssuer   = "test.quizauth.local"
	TestFrontend = "http://localhost:3000"
	TestSecret   = "test-secret-that-is-at-least-32-bytes-long"
)

var (
	sharedSigningKey     []byte
	sharedSigningKeyOnce sync.Once
)

// getSharedSigningKey returns the signing key derived from TestSecret.
func getSharedSigningKey() []byte {
	sharedSigningKeyOnce.Do(func() {
		key, err := tokens.DeriveSigningKey([]byte(TestSecret))
		if err != nil {
			panic("failed to derive shared signing key: " + err.Error())
		}
		sharedSigningKey = key
	})
	return sharedSigningKey
}

// SigningKey exposes the shared test signing key.
func SigningKey() []byte {
	return getSharedSigningKey()
}

// LogBuffer is a goroutine-safe sink for test loggers.
type LogBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *LogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *LogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestEnv provides all dependencies needed for testing
type TestEnv struct {
	DB             *database.SQLiteStore
	Service        *service.Service
	API            *api.API
	Mux            *mux.Router
	Router         http.Handler
	Google         *FakeGoogle
	TokenIssuer    tokens.Issuer
	TokenValidator tokens.Validator
	Logs           *LogBuffer
	Logger         *slog.Logger
}

// SetupTestEnv creates an isolated test environment with in-memory SQLite
// and a fake Google.
func SetupTestEnv(
	t *testing.T,
) *TestEnv {
	t.Helper()

	// create in-memory SQLite database
	db, err := database.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	// create token issuer/validator from the cached key
	issuer, validator := tokens.InitServer(getSharedSigningKey(), TestIssuer)

	google := NewFakeGoogle(t)
	logs := &LogBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// create service
	svc := service.New(
		db.IdentityStore(),
		db.RefreshStore(),
		google.Provider(t),
		issuer,
		validator,
		service.Options{Logger: logger},
	)

	return &TestEnv{
		DB:             db,
		Service:        svc,
		Google:         google,
		TokenIssuer:    issuer,
		TokenValidator: validator,
		Logs:           logs,
		Logger:         logger,
	}
}

// SetupTestEnvWithRouter creates TestEnv and configures the API router
func SetupTestEnvWithRouter(
	t *testing.T,
) *TestEnv {
	t.Helper()
	env := SetupTestEnv(t)
	env.API = api.New(env.Service, api.Options{
		FrontendURL: TestFrontend,
		Cookies:     service.CookiePolicy{Domain: "localhost"},
		Logger:      env.Logger,
	})
	env.Mux = env.API.Router()
	env.Router = env.API.Handler(env.Mux)
	return env
}

// CreateTestUser inserts a user directly into the store.
func (env *TestEnv) CreateTestUser(
	t *testing.T,
	email string,
	role identity.Role,
) *service.User {
	t.Helper()
	user := &service.User{
		ID:        uuid.NewString(),
		Email:     email,
		GoogleID:  "google-" + email,
		Role:      role,
		CreatedAt: time.Now(),
	}
	if err := env.DB.InsertIdentity(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// StoreTestRefreshToken stores a refresh token for owner that expires at
// expiresAt, which may be in the past.
func (env *TestEnv) StoreTestRefreshToken(
	t *testing.T,
	owner string,
	expiresAt time.Time,
) string {
	t.Helper()
	token, err := tokens.GenerateRefreshToken()
	if err != nil {
		t.Fatalf("failed to generate refresh token: %v", err)
	}
	record := &service.RefreshRecord{
		Token:     token,
		Owner:     owner,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	if err := env.DB.InsertRefreshToken(context.Background(), record); err != nil {
		t.Fatalf("failed to store test refresh token: %v", err)
	}
	return token
}

// IssueTestAccessToken creates an access token for user.
func (env *TestEnv) IssueTestAccessToken(
	t *testing.T,
	user *service.User,
	lifetime time.Duration,
) string {
	t.Helper()
	token, err := env.TokenIssuer.IssueAccessToken(user.Identity(), lifetime)
	if err != nil {
		t.Fatalf("failed to issue test access token: %v", err)
	}
	return token.Encoded()
}

// BeginTestLogin starts a login and returns the state the provider would
// echo back.
func (env *TestEnv) BeginTestLogin(
	t *testing.T,
) string {
	t.Helper()
	redirect, err := env.Service.BeginLogin()
	if err != nil {
		t.Fatalf("BeginLogin failed: %v", err)
	}
	return StateFromRedirect(t, redirect.String())
}

// StateFromRedirect extracts the state parameter from a provider URL.
func StateFromRedirect(
	t *testing.T,
	location string,
) string {
	t.Helper()
	u, err := url.Parse(location)
	if err != nil {
		t.Fatalf("bad redirect url %q: %v", location, err)
	}
	state := u.Query().Get("state")
	if state == "" {
		t.Fatalf("redirect url %q has no state", location)
	}
	return state
}

// GoogleProfile builds a verified profile for email.
func GoogleProfile(googleID string, email string) federation.Profile {
	return federation.Profile{
		ID:            googleID,
		Email:         email,
		VerifiedEmail: true,
		Name:          "Test User",
	}
}
