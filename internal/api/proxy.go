package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"moviedb/internal/metadata"
)

const proxyCacheControl = "s-maxage=3600, stale-while-revalidate"

// OMDbProxy relays GET /?i= to OMDb with the server side API key.
func (h *Handler) OMDbProxy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	imdbID := strings.TrimSpace(r.URL.Query().Get("i"))
	if imdbID == "" {
		h.respondError(w, r, http.StatusBadRequest, "IMDb ID (i) parameter is required")
		return
	}

	body, err := h.meta.OMDb().Raw(ctx, imdbID)
	if err != nil {
		var nf *metadata.NotFoundError
		switch {
		case errors.As(err, &nf):
			h.respondJSON(w, r, http.StatusNotFound, map[string]string{
				"error":   "Movie not found",
				"message": nf.Message,
			})
		case errors.Is(err, metadata.ErrMissingAPIKey):
			h.logger.ErrorContext(ctx, "OMDb API key not configured")
			h.respondError(w, r, http.StatusInternalServerError, "API key not configured")
		default:
			h.logger.ErrorContext(ctx, "OMDb proxy failed",
				slog.String("imdb_id", imdbID), slog.String("error", err.Error()))
			h.respondJSON(w, r, http.StatusInternalServerError, map[string]string{
				"error":   "Failed to fetch from OMDb",
				"message": err.Error(),
			})
		}
		return
	}
	h.relay(w, body)
}

// TMDbProxy relays GET {endpoint} to TMDb. Every query parameter other than
// endpoint is forwarded.
func (h *Handler) TMDbProxy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	endpoint := q.Get("endpoint")
	if strings.TrimSpace(endpoint) == "" {
		h.respondError(w, r, http.StatusBadRequest, "Endpoint parameter is required")
		return
	}
	q.Del("endpoint")

	body, err := h.meta.TMDb().Raw(ctx, endpoint, q)
	if err != nil {
		switch {
		case errors.Is(err, metadata.ErrInvalidEndpoint):
			h.respondError(w, r, http.StatusBadRequest, "Invalid endpoint")
		case errors.Is(err, metadata.ErrMissingAPIKey):
			h.logger.ErrorContext(ctx, "TMDb API key not configured")
			h.respondError(w, r, http.StatusInternalServerError, "API key not configured")
		default:
			h.logger.ErrorContext(ctx, "TMDb proxy failed",
				slog.String("endpoint", endpoint), slog.String("error", err.Error()))
			h.respondJSON(w, r, http.StatusInternalServerError, map[string]string{
				"error":   "Failed to fetch from TMDb",
				"message": err.Error(),
			})
		}
		return
	}
	h.relay(w, body)
}

func (h *Handler) relay(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", proxyCacheControl)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
