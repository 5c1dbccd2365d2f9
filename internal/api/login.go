package api

import (
	"net/http"
)

// GoogleLogin starts the provider round trip.
func (a *API) GoogleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		redirectURL, err := a.service.BeginLogin()
		if err != nil {
			a.writeError(w, r, err, "Authentication failed")
			return
		}
		http.Redirect(w, r, redirectURL.String(), http.StatusFound)
	}
}

// GoogleCallback completes login, sets all three session cookies, and sends
// the browser to the dashboard.
func (a *API) GoogleCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		session, err := a.service.CompleteLogin(r.Context(), q.Get("code"), q.Get("state"))
		if err != nil {
			a.writeError(w, r, err, "Authentication failed")
			return
		}

		setCookies(w, session.Cookies(a.cookies, a.now()))
		http.Redirect(w, r, a.dashboardURL, http.StatusFound)
	}
}
