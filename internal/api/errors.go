package api

import (
	"errors"
	"log/slog"
	"net/http"

	"git.sr.ht/~jakintosh/quizauth/internal/service"
	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
	"git.sr.ht/~jakintosh/quizauth/pkg/tokens"
)

// errorMapping is how one class of failure is reported to the client and
// the log.
type errorMapping struct {
	status  int
	message string
	level   slog.Level
}

func classify(err error, fallback string) errorMapping {
	switch {
	case errors.Is(err, service.ErrMissingParams):
		return errorMapping{http.StatusBadRequest, "Missing code or state", slog.LevelDebug}
	case errors.Is(err, service.ErrStateInvalid):
		return errorMapping{http.StatusBadRequest, "Invalid state", slog.LevelDebug}
	case errors.Is(err, service.ErrEmailUnverified):
		return errorMapping{http.StatusBadRequest, "Email not verified", slog.LevelInfo}
	case errors.Is(err, service.ErrFederation):
		return errorMapping{http.StatusBadRequest, "Authentication failed", slog.LevelWarn}

	case errors.Is(err, service.ErrCSRFRejected) && errors.Is(err, tokens.ErrCSRFMissing()):
		return errorMapping{http.StatusForbidden, "CSRF token missing", slog.LevelInfo}
	case errors.Is(err, service.ErrCSRFRejected):
		return errorMapping{http.StatusForbidden, "Invalid CSRF token", slog.LevelWarn}
	case errors.Is(err, service.ErrForbiddenRole):
		return errorMapping{http.StatusForbidden, "Forbidden: Admin access required", slog.LevelInfo}

	case errors.Is(err, service.ErrStoreUnavailable):
		return errorMapping{http.StatusInternalServerError, fallback, slog.LevelError}
	case errors.Is(err, service.ErrTokenInvalid):
		return errorMapping{http.StatusUnauthorized, fallback, slog.LevelDebug}
	default:
		return errorMapping{http.StatusInternalServerError, fallback, slog.LevelError}
	}
}

// writeError reports err as a JSON error body. fallback is the message used
// when the error class has no fixed client-facing text.
func (a *API) writeError(
	w http.ResponseWriter,
	r *http.Request,
	err error,
	fallback string,
) {
	m := classify(err, fallback)
	if m.status >= http.StatusInternalServerError && fallback == "" {
		m.message = "Internal server error"
	}

	attrs := []any{
		"method", r.Method,
		"path", r.URL.Path,
		"status", m.status,
		"error", err,
	}
	if id, ok := identity.FromRequest(r); ok {
		attrs = append(attrs, "user_id", id.Subject, "role", id.Role)
	}
	a.log.Log(r.Context(), m.level, "request rejected", attrs...)

	writeJson(w, m.status, errorResponse{Error: m.message})
}
