// Package api is the HTTP surface of the service.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gorilla/sessions"

	"moviedb/internal/config"
	"moviedb/internal/metadata"
	"moviedb/internal/store"
	"moviedb/pkg/auth"
)

const (
	maxBodySize   = 1 << 20
	maxImportSize = 16 << 20
)

// Publisher is told about every mutation so connected browsers can refresh.
type Publisher interface {
	PublishMovies(ctx context.Context)
	PublishPendingCount(ctx context.Context)
}

type nopPublisher struct{}

func (nopPublisher) PublishMovies(context.Context)       {}
func (nopPublisher) PublishPendingCount(context.Context) {}

// Dependencies are the collaborators of Handler. Live may be nil.
type Dependencies struct {
	Store     store.Store
	Metadata  *metadata.Service
	Live      Publisher
	Tokens    auth.TokenManager
	Sessions  *sessions.CookieStore
	Validator *validator.Validate
	Config    *config.Config
	Logger    *slog.Logger
}

// Handler holds the dependencies of every HTTP endpoint.
type Handler struct {
	store     store.Store
	meta      *metadata.Service
	live      Publisher
	tokens    auth.TokenManager
	sessions  *sessions.CookieStore
	validator *validator.Validate
	cfg       *config.Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewHandler creates a Handler.
func NewHandler(d Dependencies) *Handler {
	h := &Handler{
		store:     d.Store,
		meta:      d.Metadata,
		live:      d.Live,
		tokens:    d.Tokens,
		sessions:  d.Sessions,
		validator: d.Validator,
		cfg:       d.Config,
		logger:    d.Logger,
		now:       time.Now,
	}
	if h.live == nil {
		h.live = nopPublisher{}
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	return h
}

func (h *Handler) respondJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			h.logger.ErrorContext(r.Context(), "Failed to encode JSON response",
				slog.String("error", err.Error()), slog.String("path", r.URL.Path))
		}
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.respondJSON(w, r, status, map[string]string{"error": message})
}

// decodeJSON reads a size limited JSON body into dst.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any, limit int64) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, r, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		h.respondError(w, r, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body",
			slog.String("error", err.Error()), slog.String("path", r.URL.Path))
		h.respondError(w, r, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}

// decodeAndValidate decodes a JSON body and runs the struct validation tags.
func (h *Handler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if !h.decodeJSON(w, r, dst, maxBodySize) {
		return false
	}
	if err := h.validator.StructCtx(r.Context(), dst); err != nil {
		h.logger.WarnContext(r.Context(), "Request validation failed",
			slog.String("error", err.Error()), slog.String("path", r.URL.Path))
		h.respondError(w, r, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

// storeError maps the store sentinels shared by several endpoints.
func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, err error, action string) {
	switch {
	case errors.Is(err, store.ErrMovieNotFound):
		h.respondError(w, r, http.StatusNotFound, "Movie not found")
	case errors.Is(err, store.ErrMovieAlreadyExists):
		h.respondError(w, r, http.StatusConflict, "This movie is already in the collection")
	case errors.Is(err, store.ErrPendingNotFound):
		h.respondError(w, r, http.StatusNotFound, "Suggestion not found")
	case errors.Is(err, store.ErrAlreadyReviewed):
		h.respondError(w, r, http.StatusConflict, "Suggestion has already been reviewed")
	case errors.Is(err, store.ErrAlreadySuggested):
		h.respondError(w, r, http.StatusConflict, "This movie has already been suggested")
	default:
		h.logger.ErrorContext(r.Context(), "Store operation failed",
			slog.String("action", action), slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Failed to "+action)
	}
}

// GetConfig returns the settings the browser client needs.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, r, http.StatusOK, struct {
		config.UIConfig
		SessionTimeoutMS int64 `json:"session_timeout_ms"`
		TMDbConfigured   bool  `json:"tmdb_configured"`
		OMDbConfigured   bool  `json:"omdb_configured"`
	}{
		UIConfig:         h.cfg.UI,
		SessionTimeoutMS: h.cfg.Auth.SessionTimeout.Milliseconds(),
		TMDbConfigured:   h.meta.TMDb().Configured(),
		OMDbConfigured:   h.meta.OMDb().Configured(),
	})
}

// Healthz reports whether the store answers.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "Health check failed", slog.String("error", err.Error()))
		h.respondJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
