package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"git.sr.ht/~jakintosh/quizauth/internal/federation"
)

// FakeGoogle is an httptest stand-in for Google's token and userinfo
// endpoints. Codes are single use, like the real thing.
type FakeGoogle struct {
	Server *httptest.Server

	mu       sync.Mutex
	codes    map[string]federation.Profile
	accesses map[string]federation.Profile
	exchange int
}

func NewFakeGoogle(t *testing.T) *FakeGoogle {
	t.Helper()
	fake := &FakeGoogle{
		codes:    make(map[string]federation.Profile),
		accesses: make(map[string]federation.Profile),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", fake.handleToken)
	mux.HandleFunc("GET /userinfo", fake.handleUserInfo)
	fake.Server = httptest.NewServer(mux)
	t.Cleanup(fake.Server.Close)

	return fake
}

// AddCode registers an authorization code that exchanges for profile.
func (f *FakeGoogle) AddCode(code string, profile federation.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code] = profile
}

// Exchanges reports how many token requests reached the fake.
func (f *FakeGoogle) Exchanges() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exchange
}

// Config returns a federation config pointed at the fake.
func (f *FakeGoogle) Config() federation.Config {
	return federation.Config{
		ClientID:     "test-client-id",
		ClientSecret: "test-client-secret",
		RedirectURL:  "http://localhost:3001/auth/google/callback",
		AuthURL:      f.Server.URL + "/auth",
		TokenURL:     f.Server.URL + "/token",
		UserInfoURL:  f.Server.URL + "/userinfo",
		HTTPClient:   f.Server.Client(),
	}
}

// Provider builds a federation.Google against the fake.
func (f *FakeGoogle) Provider(t *testing.T) *federation.Google {
	t.Helper()
	provider, err := federation.NewGoogle(f.Config())
	if err != nil {
		t.Fatalf("failed to build fake google provider: %v", err)
	}
	return provider
}

func (f *FakeGoogle) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.exchange++
	profile, ok := f.codes[r.PostForm.Get("code")]
	delete(f.codes, r.PostForm.Get("code"))
	accessToken := "fake-access-" + r.PostForm.Get("code")
	if ok {
		f.accesses[accessToken] = profile
	}
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func (f *FakeGoogle) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	accessToken := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	f.mu.Lock()
	profile, ok := f.accesses[accessToken]
	f.mu.Unlock()

	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(profile)
}
