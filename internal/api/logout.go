package api

import (
	"net/http"

	"git.sr.ht/~jakintosh/quizauth/pkg/tokens"
)

// Logout always succeeds from the browser's point of view. A store failure
// is logged and the cookies are cleared regardless; the orphaned refresh
// token ages out on its own.
func (a *API) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshToken := cookieValue(r, tokens.RefreshTokenCookie)
		if err := a.service.Logout(r.Context(), refreshToken); err != nil {
			a.log.Error("logout could not revoke refresh token", "error", err)
		}

		setCookies(w, a.cookies.ClearCookies())
		returnJson(successResponse{Success: true}, w)
	}
}
