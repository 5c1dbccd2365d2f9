package config_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"git.sr.ht/~jakintosh/quizauth/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quizauth.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// setRequiredEnv provides the minimum settings through the environment.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_PATH", "quizauth.db")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("GOOGLE_CLIENT_ID", "client-id")
	t.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
	t.Setenv("GOOGLE_REDIRECT_URI", "http://localhost:8080/auth/google/callback")
	t.Setenv("FRONTEND_URL", "http://localhost:3000")
}

func TestLoad_EnvOnly(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// defaults fill everything not given
	if cfg.Auth.AccessTTL != 15*time.Minute {
		t.Errorf("AccessTTL = %v, want 15m", cfg.Auth.AccessTTL)
	}
	if cfg.Auth.RefreshTTL != 7*24*time.Hour {
		t.Errorf("RefreshTTL = %v, want 168h", cfg.Auth.RefreshTTL)
	}
	if cfg.Auth.StateTTL != 5*time.Minute {
		t.Errorf("StateTTL = %v, want 5m", cfg.Auth.StateTTL)
	}
	if cfg.Google.Timeout != 10*time.Second {
		t.Errorf("Google.Timeout = %v, want 10s", cfg.Google.Timeout)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr())
	}
	if cfg.Secure() {
		t.Error("development config must not require secure cookies")
	}
}

func TestLoad_FileWithExpansion(t *testing.T) {
	t.Setenv("QUIZAUTH_TEST_SECRET", testSecret)

	path := writeConfig(t, `
environment: production
server:
  port: "9000"
  frontend_url: https://quiz.example.com/
  cookie_domain: api.quiz.example.com
database:
  path: /var/lib/quizauth.db
auth:
  jwt_secret: ${QUIZAUTH_TEST_SECRET}
  access_ttl: 10m
  refresh_ttl: 72h
google:
  client_id: id
  client_secret: secret
  redirect_uri: https://api.quiz.example.com/auth/google/callback
  timeout: 3s
logging:
  level: debug
  format: json
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Auth.JWTSecret != testSecret {
		t.Errorf("JWTSecret was not expanded: %q", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.AccessTTL != 10*time.Minute || cfg.Auth.RefreshTTL != 72*time.Hour {
		t.Errorf("durations = %v/%v, want 10m/72h", cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL)
	}
	if cfg.Google.Timeout != 3*time.Second {
		t.Errorf("Google.Timeout = %v, want 3s", cfg.Google.Timeout)
	}

	// trailing slash is trimmed so redirects join cleanly
	if cfg.Server.FrontendURL != "https://quiz.example.com" {
		t.Errorf("FrontendURL = %q", cfg.Server.FrontendURL)
	}
	if !cfg.Secure() {
		t.Error("production config must require secure cookies")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "7000")
	t.Setenv("ACCESS_TTL", "5m")

	path := writeConfig(t, `
server:
  port: "9000"
auth:
  access_ttl: 30m
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "7000" {
		t.Errorf("Port = %q, want env value 7000", cfg.Server.Port)
	}
	if cfg.Auth.AccessTTL != 5*time.Minute {
		t.Errorf("AccessTTL = %v, want env value 5m", cfg.Auth.AccessTTL)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"short secret", map[string]string{"JWT_SECRET": "too-short"}},
		{"no database", map[string]string{"DATABASE_PATH": ""}},
		{"no client id", map[string]string{"GOOGLE_CLIENT_ID": ""}},
		{"no redirect", map[string]string{"GOOGLE_REDIRECT_URI": ""}},
		{"relative frontend", map[string]string{"FRONTEND_URL": "localhost:3000"}},
		{"unknown environment", map[string]string{"APP_ENV": "staging"}},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}},
		{"bad format", map[string]string{"LOG_FORMAT": "xml"}},
		{"access outlives refresh", map[string]string{"ACCESS_TTL": "200h"}},
		{"bad duration", map[string]string{"STATE_TTL": "five minutes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load("")
			if !errors.Is(err, config.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	setRequiredEnv(t)

	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, config.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestLoad_BadFileDuration(t *testing.T) {
	setRequiredEnv(t)

	path := writeConfig(t, "auth:\n  refresh_ttl: a week\n")
	_, err := config.Load(path)
	if !errors.Is(err, config.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	// json format at warn drops info lines
	var buf bytes.Buffer
	logger := config.LoggingConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("quiet")
	logger.Warn("loud", "user_id", "u-1")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, `"user_id":"u-1"`) {
		t.Errorf("expected json attrs, got: %s", out)
	}
}
