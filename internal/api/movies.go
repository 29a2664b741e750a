package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"moviedb/internal/domain"
	"moviedb/internal/filter"
)

const maxPageSize = 100

// ListMovies returns the filtered and sorted collection. Pagination applies
// only when page or limit is given; the unpaginated count is sent in
// X-Total-Count.
func (h *Handler) ListMovies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	all, err := h.store.List(ctx)
	if err != nil {
		h.storeError(w, r, err, "list movies")
		return
	}
	movies := filter.Apply(all, filter.ParseCriteria(q))
	w.Header().Set("X-Total-Count", strconv.Itoa(len(movies)))

	if q.Has("page") || q.Has("limit") {
		page, _ := strconv.Atoi(q.Get("page"))
		if page <= 0 {
			page = 1
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 {
			limit = h.cfg.UI.MoviesPerPage
		}
		limit = min(limit, maxPageSize)
		if page-1 > len(movies)/limit {
			movies = movies[:0]
		} else {
			start := min((page-1)*limit, len(movies))
			end := min(start+limit, len(movies))
			movies = movies[start:end]
		}
	}
	h.respondJSON(w, r, http.StatusOK, movies)
}

// GetMovie returns one movie by id.
func (h *Handler) GetMovie(w http.ResponseWriter, r *http.Request) {
	movie, err := h.store.GetByID(r.Context(), mux.Vars(r)["movieId"])
	if err != nil {
		h.storeError(w, r, err, "get movie")
		return
	}
	h.respondJSON(w, r, http.StatusOK, movie)
}

// Facets returns the option lists for the filter panel.
func (h *Handler) Facets(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.List(r.Context())
	if err != nil {
		h.storeError(w, r, err, "list movies")
		return
	}
	h.respondJSON(w, r, http.StatusOK, filter.BuildFacets(all))
}

// Stats returns the header counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.List(r.Context())
	if err != nil {
		h.storeError(w, r, err, "list movies")
		return
	}
	h.respondJSON(w, r, http.StatusOK, filter.ComputeStats(all, h.now()))
}

// RandomMovie picks one movie among those matching the query filters.
func (h *Handler) RandomMovie(w http.ResponseWriter, r *http.Request) {
	all, err := h.store.List(r.Context())
	if err != nil {
		h.storeError(w, r, err, "list movies")
		return
	}
	movie, err := filter.Pick(all, filter.ParseCriteria(r.URL.Query()), nil)
	if errors.Is(err, filter.ErrNoMatch) {
		h.respondError(w, r, http.StatusNotFound, "No movies match the current filters")
		return
	}
	h.respondJSON(w, r, http.StatusOK, movie)
}

// ExportMovies downloads the whole collection as a JSON file.
func (h *Handler) ExportMovies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	all, err := h.store.List(ctx)
	if err != nil {
		h.storeError(w, r, err, "export movies")
		return
	}
	if all == nil {
		all = []*domain.Movie{}
	}
	body, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to encode export", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Failed to export movies")
		return
	}
	name := "moviedb-export-" + h.now().UTC().Format(domain.DateLayout) + ".json"
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// CreateMovie inserts a movie described in full by the admin.
func (h *Handler) CreateMovie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req domain.CreateMovieRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	movie := req.ToMovie()
	if err := h.store.Create(ctx, movie); err != nil {
		h.storeError(w, r, err, "create movie")
		return
	}
	h.logger.InfoContext(ctx, "Movie created", slog.String("movie_id", movie.ID), slog.String("title", movie.Title))
	h.live.PublishMovies(ctx)
	h.respondJSON(w, r, http.StatusCreated, movie)
}

// UpdateMovie applies a partial update.
func (h *Handler) UpdateMovie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var update domain.MovieUpdate
	if !h.decodeAndValidate(w, r, &update) {
		return
	}
	if update.Empty() {
		h.respondError(w, r, http.StatusBadRequest, "No fields to update")
		return
	}

	movie, err := h.store.Update(ctx, mux.Vars(r)["movieId"], update)
	if err != nil {
		h.storeError(w, r, err, "update movie")
		return
	}
	h.live.PublishMovies(ctx)
	h.respondJSON(w, r, http.StatusOK, movie)
}

// DeleteMovie removes one movie.
func (h *Handler) DeleteMovie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["movieId"]
	if err := h.store.Delete(ctx, id); err != nil {
		h.storeError(w, r, err, "delete movie")
		return
	}
	h.logger.InfoContext(ctx, "Movie deleted", slog.String("movie_id", id))
	h.live.PublishMovies(ctx)
	w.WriteHeader(http.StatusNoContent)
}

// BatchDelete removes several movies in one all-or-nothing write.
func (h *Handler) BatchDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req domain.BatchDeleteRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	n, err := h.store.BatchDelete(ctx, req.IDs)
	if err != nil {
		h.storeError(w, r, err, "delete movies")
		return
	}
	h.live.PublishMovies(ctx)
	h.respondJSON(w, r, http.StatusOK, map[string]int{"deleted": n})
}

// BatchUpdate applies one update to several movies in one all-or-nothing write.
func (h *Handler) BatchUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req domain.BatchUpdateRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}
	if req.Update.Empty() {
		h.respondError(w, r, http.StatusBadRequest, "No fields to update")
		return
	}
	n, err := h.store.BatchUpdate(ctx, req.IDs, req.Update)
	if err != nil {
		h.storeError(w, r, err, "update movies")
		return
	}
	h.live.PublishMovies(ctx)
	h.respondJSON(w, r, http.StatusOK, map[string]int{"updated": n})
}

// ImportMovies appends the movies of an export file. Identifiers are
// regenerated; nothing is de-duplicated.
func (h *Handler) ImportMovies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var movies []*domain.Movie
	if !h.decodeJSON(w, r, &movies, maxImportSize) {
		return
	}
	if len(movies) == 0 {
		h.respondError(w, r, http.StatusBadRequest, "No movies to import")
		return
	}
	for i, m := range movies {
		if m == nil || m.Title == "" {
			h.respondError(w, r, http.StatusBadRequest, "Movie at index "+strconv.Itoa(i)+" has no title")
			return
		}
		if err := h.validator.StructCtx(ctx, m); err != nil {
			h.logger.WarnContext(ctx, "Import validation failed", slog.Int("index", i), slog.String("error", err.Error()))
			h.respondError(w, r, http.StatusBadRequest, "Movie at index "+strconv.Itoa(i)+" is invalid: "+err.Error())
			return
		}
	}

	n, err := h.store.Import(ctx, movies)
	if err != nil {
		h.storeError(w, r, err, "import movies")
		return
	}
	h.logger.InfoContext(ctx, "Movies imported", slog.Int("count", n))
	h.live.PublishMovies(ctx)
	h.respondJSON(w, r, http.StatusOK, map[string]int{"imported": n})
}

// ClearMovies deletes the whole collection once the admin typed DELETE.
func (h *Handler) ClearMovies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req domain.ClearRequest
	if !h.decodeJSON(w, r, &req, maxBodySize) {
		return
	}
	if req.Confirm != domain.ClearConfirmation {
		h.respondError(w, r, http.StatusBadRequest, "Type DELETE to confirm")
		return
	}
	n, err := h.store.Clear(ctx)
	if err != nil {
		h.storeError(w, r, err, "clear movies")
		return
	}
	h.logger.WarnContext(ctx, "Collection cleared", slog.Int("count", n))
	h.live.PublishMovies(ctx)
	h.respondJSON(w, r, http.StatusOK, map[string]int{"deleted": n})
}
