package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Router builds the auth routes. Callers mount their own resources with
// Protected and Admin, then serve the result through Handler.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", a.Health()).Methods(http.MethodGet)

	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/google", a.GoogleLogin()).Methods(http.MethodGet)
	auth.HandleFunc("/google/callback", a.GoogleCallback()).Methods(http.MethodGet)
	auth.HandleFunc("/refresh", a.Refresh()).Methods(http.MethodPost)
	auth.HandleFunc("/logout", a.Logout()).Methods(http.MethodPost)
	auth.Handle("/me", a.RequireAuth(a.Me())).Methods(http.MethodGet)

	return r
}

// Protected mounts a subrouter under prefix that requires a valid access
// token, and a matching CSRF pair on state-changing methods.
func (a *API) Protected(r *mux.Router, prefix string) *mux.Router {
	sub := r.PathPrefix(prefix).Subrouter()
	sub.Use(a.RequireAuth, a.RequireCSRF)
	return sub
}

// Admin is Protected restricted to the admin role.
func (a *API) Admin(r *mux.Router, prefix string) *mux.Router {
	sub := r.PathPrefix(prefix).Subrouter()
	sub.Use(a.RequireAdmin, a.RequireCSRF)
	return sub
}

// Handler wraps r with CORS so preflights never reach route matching.
func (a *API) Handler(r *mux.Router) http.Handler {
	return a.CORS(r)
}
