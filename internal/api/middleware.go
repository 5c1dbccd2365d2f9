package api

import (
	"errors"
	"net/http"
	"strings"

	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
	"git.sr.ht/~jakintosh/quizauth/pkg/tokens"
)

// RequireAuth admits requests carrying a valid access token, from the
// access_token cookie or an Authorization bearer header, and attaches the
// identity to the request context.
func (a *API) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accessToken := cookieValue(r, tokens.AccessTokenCookie)
		if accessToken == "" {
			accessToken = bearerToken(r)
		}
		if accessToken == "" {
			writeJson(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
			return
		}

		id, err := a.service.Verify(accessToken)
		if err != nil {
			message := "Invalid token"
			if errors.Is(err, tokens.ErrTokenExpired()) {
				message = "Token expired"
			}
			a.writeError(w, r, err, message)
			return
		}

		ctx := identity.WithIdentity(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin is RequireAuth plus an admin role check. A rejected caller
// stays identified for logging.
func (a *API) RequireAdmin(next http.Handler) http.Handler {
	return a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := identity.MustFromRequest(r)
		if err := a.service.Authorize(id, identity.RoleAdmin); err != nil {
			a.writeError(w, r, err, "")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// RequireCSRF enforces the double-submit check on state-changing methods.
func (a *API) RequireCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		err := a.service.CheckCSRF(
			cookieValue(r, tokens.CSRFTokenCookie),
			r.Header.Get(tokens.CSRFHeader),
		)
		if err != nil {
			a.writeError(w, r, err, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
