package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"reeltrack/api"
	"reeltrack/handlers"
)

type routeDeps struct {
	TMDB          *handlers.TMDBHandler
	Watchlist     *handlers.WatchlistHandler
	Auth          *handlers.AuthHandler
	Version       *handlers.VersionHandler
	Authenticator api.Authenticator
	PasswordLogin bool
}

// mountRoutes registers the API under /api. TMDB lookups are public; the
// watchlist and session endpoints require a bearer token.
func mountRoutes(r *mux.Router, d routeDeps) {
	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/version", d.Version.GetVersion).Methods(http.MethodGet)

	tmdbRouter := apiRouter.PathPrefix("/tmdb").Subrouter()
	tmdbRouter.HandleFunc("/search", d.TMDB.Search).Methods(http.MethodGet, http.MethodOptions)
	tmdbRouter.HandleFunc("/tv/{id}", d.TMDB.ShowDetail).Methods(http.MethodGet, http.MethodOptions)
	tmdbRouter.HandleFunc("/tv/{id}/season/{season}", d.TMDB.SeasonDetail).Methods(http.MethodGet, http.MethodOptions)

	if d.PasswordLogin {
		apiRouter.HandleFunc("/auth/login", d.Auth.Login).Methods(http.MethodPost, http.MethodOptions)
	}

	protected := apiRouter.NewRoute().Subrouter()
	protected.Use(api.AuthMiddleware(d.Authenticator))

	protected.HandleFunc("/auth/logout", d.Auth.Logout).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/auth/me", d.Auth.Me).Methods(http.MethodGet, http.MethodOptions)
	if d.PasswordLogin {
		protected.HandleFunc("/auth/refresh", d.Auth.Refresh).Methods(http.MethodPost, http.MethodOptions)
		protected.HandleFunc("/auth/password", d.Auth.ChangePassword).Methods(http.MethodPost, http.MethodOptions)
	}

	protected.HandleFunc("/watchlist", d.Watchlist.List).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/watchlist", d.Watchlist.Add).Methods(http.MethodPost)
	protected.HandleFunc("/watchlist/{id}", d.Watchlist.Update).Methods(http.MethodPatch, http.MethodOptions)
	protected.HandleFunc("/watchlist/{id}", d.Watchlist.Remove).Methods(http.MethodDelete)
}
