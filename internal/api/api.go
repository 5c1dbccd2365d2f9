// Package api exposes the session core over HTTP: the Google login round
// trip, refresh, logout, and the middleware that guards protected routes.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"git.sr.ht/~jakintosh/quizauth/internal/service"
)

type Options struct {
	// FrontendURL is the browser app origin. Successful logins land on
	// its /dashboard, and CORS admits only this origin.
	FrontendURL string
	Cookies     service.CookiePolicy
	Logger      *slog.Logger
}

type API struct {
	service      *service.Service
	cookies      service.CookiePolicy
	frontend     string
	dashboardURL string
	log          *slog.Logger
	now          func() time.Time
}

func New(
	svc *service.Service,
	opts Options,
) *API {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	frontend := opts.FrontendURL
	dashboard := "/dashboard"
	if u, err := url.Parse(frontend); err == nil && u.Scheme != "" && u.Host != "" {
		frontend = u.Scheme + "://" + u.Host
		dashboard = u.JoinPath("dashboard").String()
	}

	return &API{
		service:      svc,
		cookies:      opts.Cookies,
		frontend:     frontend,
		dashboardURL: dashboard,
		log:          logger.With("component", "api"),
		now:          time.Now,
	}
}

type successResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func returnJson(data any, w http.ResponseWriter) {
	writeJson(w, http.StatusOK, data)
}

func writeJson(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func setCookies(w http.ResponseWriter, cookies []*http.Cookie) {
	for _, c := range cookies {
		http.SetCookie(w, c)
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
