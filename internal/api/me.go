package api

import (
	"net/http"

	"git.sr.ht/~jakintosh/quizauth/pkg/identity"
)

// Me returns the caller's identity as proven by its access token.
func (a *API) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		returnJson(identity.MustFromRequest(r), w)
	}
}

type healthResponse struct {
	Status string `json:"status"`
}

func (a *API) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := a.service.Ping(r.Context()); err != nil {
			a.log.Error("health check failed", "error", err)
			writeJson(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
		returnJson(healthResponse{Status: "ok"}, w)
	}
}
