package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewHTTPRouter builds the HTTP surface. stream serves the live websocket
// and may be nil.
func NewHTTPRouter(h *Handler, stream http.Handler) http.Handler {
	router := mux.NewRouter()
	router.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)
	router.Use(RequestIDMiddleware, h.Recover, h.Instrument)

	router.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.MethodNotAllowedHandler = http.HandlerFunc(h.methodNotAllowed)
	api.NotFoundHandler = http.HandlerFunc(h.notFound)
	api.Use(h.RateLimit(), h.OptionalAdmin)

	admin := func(fn http.HandlerFunc) http.Handler { return h.RequireAdmin(fn) }

	api.HandleFunc("/config", h.GetConfig).Methods(http.MethodGet)

	// Proxies
	api.HandleFunc("/omdb", h.OMDbProxy).Methods(http.MethodGet)
	api.HandleFunc("/tmdb", h.TMDbProxy).Methods(http.MethodGet)

	// Auth
	api.Handle("/auth/login", h.LoginRateLimit()(http.HandlerFunc(h.Login))).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
	api.HandleFunc("/auth/session", h.Session).Methods(http.MethodGet)
	api.Handle("/auth/password", admin(h.ChangePassword)).Methods(http.MethodPut)

	// Catalog
	api.HandleFunc("/search", h.Search).Methods(http.MethodGet)
	api.HandleFunc("/lookup/{tmdbId:[0-9]+}", h.Lookup).Methods(http.MethodGet)

	// Collection. Fixed paths go before /movies/{movieId}.
	api.HandleFunc("/movies", h.ListMovies).Methods(http.MethodGet)
	api.Handle("/movies", admin(h.CreateMovie)).Methods(http.MethodPost)
	api.Handle("/movies", admin(h.ClearMovies)).Methods(http.MethodDelete)
	api.HandleFunc("/movies/facets", h.Facets).Methods(http.MethodGet)
	api.HandleFunc("/movies/stats", h.Stats).Methods(http.MethodGet)
	api.HandleFunc("/movies/random", h.RandomMovie).Methods(http.MethodGet)
	api.HandleFunc("/movies/export", h.ExportMovies).Methods(http.MethodGet)
	if stream != nil {
		api.Handle("/movies/stream", stream).Methods(http.MethodGet)
	}
	api.HandleFunc("/movies/add", h.AddFromCatalog).Methods(http.MethodPost)
	api.Handle("/movies/batch/delete", admin(h.BatchDelete)).Methods(http.MethodPost)
	api.Handle("/movies/batch/update", admin(h.BatchUpdate)).Methods(http.MethodPost)
	api.Handle("/movies/import", admin(h.ImportMovies)).Methods(http.MethodPost)
	api.HandleFunc("/movies/{movieId}", h.GetMovie).Methods(http.MethodGet)
	api.Handle("/movies/{movieId}", admin(h.UpdateMovie)).Methods(http.MethodPatch)
	api.Handle("/movies/{movieId}", admin(h.DeleteMovie)).Methods(http.MethodDelete)

	// Suggestions
	api.Handle("/pending", admin(h.ListPending)).Methods(http.MethodGet)
	api.Handle("/pending/{pendingId}/approve", admin(h.ApprovePending)).Methods(http.MethodPost)
	api.Handle("/pending/{pendingId}/reject", admin(h.RejectPending)).Methods(http.MethodPost)
	api.Handle("/pending/{pendingId}", admin(h.DeletePending)).Methods(http.MethodDelete)

	if dir := h.cfg.Server.StaticDir; dir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(dir))).Methods(http.MethodGet, http.MethodHead)
	}

	return h.CORS()(router)
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.respondError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.respondError(w, r, http.StatusNotFound, "Not found")
}
