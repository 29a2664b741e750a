package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"moviedb/internal/domain"
	"moviedb/internal/metadata"
	"moviedb/internal/metrics"
	"moviedb/internal/store"
)

// searchHit is a catalog search result, joined with the collection entry for
// the same TMDb id when there is one.
type searchHit struct {
	metadata.SearchResult
	Existing *domain.Movie `json:"existing"`
}

// Search queries TMDb and marks the hits already in the collection.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	results, err := h.meta.Search(ctx, r.URL.Query().Get("query"))
	if err != nil {
		h.metadataError(w, r, err, "search movies")
		return
	}

	all, err := h.store.List(ctx)
	if err != nil {
		h.storeError(w, r, err, "list movies")
		return
	}
	byTMDb := make(map[int64]*domain.Movie, len(all))
	for _, m := range all {
		byTMDb[m.TMDbID] = m
	}

	hits := make([]searchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, searchHit{SearchResult: res, Existing: byTMDb[res.ID]})
	}
	h.respondJSON(w, r, http.StatusOK, hits)
}

// Lookup returns the collection movie for a TMDb id.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	tmdbID, err := strconv.ParseInt(mux.Vars(r)["tmdbId"], 10, 64)
	if err != nil || tmdbID <= 0 {
		h.respondError(w, r, http.StatusBadRequest, "Invalid TMDb ID")
		return
	}
	movie, err := h.store.GetByTMDbID(r.Context(), tmdbID)
	if err != nil {
		h.storeError(w, r, err, "look up movie")
		return
	}
	h.respondJSON(w, r, http.StatusOK, movie)
}

// AddFromCatalog builds a record from TMDb and OMDb. Admins insert it
// directly; visitors create a suggestion for review.
func (h *Handler) AddFromCatalog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req domain.AddFromCatalogRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if _, err := h.store.GetByTMDbID(ctx, req.TMDbID); err == nil {
		h.respondError(w, r, http.StatusConflict, "This movie is already in the collection")
		return
	} else if !errors.Is(err, store.ErrMovieNotFound) {
		h.storeError(w, r, err, "look up movie")
		return
	}

	movie, err := h.meta.FullMovieData(ctx, req.TMDbID)
	if err != nil {
		h.metadataError(w, r, err, "fetch movie details")
		return
	}
	movie.Status = req.Status
	if req.Status == domain.StatusWatched {
		today := h.now().Format(domain.DateLayout)
		movie.DateWatched = &today
	}

	if IsAdmin(ctx) {
		if err := h.store.Create(ctx, movie); err != nil {
			h.storeError(w, r, err, "add movie")
			return
		}
		h.logger.InfoContext(ctx, "Movie added from catalog",
			slog.String("movie_id", movie.ID), slog.Int64("tmdb_id", movie.TMDbID))
		h.live.PublishMovies(ctx)
		h.respondJSON(w, r, http.StatusCreated, movie)
		return
	}

	pending := domain.NewPendingFromMovie(movie)
	if err := h.store.CreatePending(ctx, pending); err != nil {
		h.storeError(w, r, err, "suggest movie")
		return
	}
	metrics.RecordSuggestion()
	h.logger.InfoContext(ctx, "Movie suggested",
		slog.String("pending_id", pending.ID), slog.Int64("tmdb_id", pending.TMDbID))
	h.live.PublishPendingCount(ctx)
	h.respondJSON(w, r, http.StatusAccepted, pending)
}

// metadataError maps upstream failures to client-facing statuses.
func (h *Handler) metadataError(w http.ResponseWriter, r *http.Request, err error, action string) {
	var upstream *metadata.UpstreamError
	switch {
	case errors.Is(err, metadata.ErrNotFound):
		h.respondError(w, r, http.StatusNotFound, "Movie not found")
	case errors.Is(err, metadata.ErrMissingAPIKey):
		h.respondError(w, r, http.StatusInternalServerError, "API key not configured")
	case errors.As(err, &upstream):
		h.logger.WarnContext(r.Context(), "Upstream request failed",
			slog.String("action", action), slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusBadGateway, "Failed to "+action)
	default:
		h.logger.ErrorContext(r.Context(), "Metadata request failed",
			slog.String("action", action), slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Failed to "+action)
	}
}
