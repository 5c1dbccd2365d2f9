package api

import (
	"net/http"

	"git.sr.ht/~jakintosh/quizauth/pkg/tokens"
)

func (a *API) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		refreshToken := cookieValue(r, tokens.RefreshTokenCookie)
		if refreshToken == "" {
			writeJson(w, http.StatusUnauthorized, errorResponse{Error: "No refresh token"})
			return
		}

		session, err := a.service.Refresh(r.Context(), refreshToken)
		if err != nil {
			a.writeError(w, r, err, "Invalid refresh token")
			return
		}

		setCookies(w, session.Cookies(a.cookies, a.now()))
		returnJson(successResponse{Success: true}, w)
	}
}
