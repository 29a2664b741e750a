package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"moviedb/internal/domain"
	"moviedb/internal/metrics"
	"moviedb/internal/store"
	"moviedb/pkg/auth"
)

const (
	sessionName     = "moviedb-admin"
	sessionTokenKey = "token"
	adminSubject    = "admin"
)

// NewSessionStore returns the cookie store that carries the admin token for
// browsers.
func NewSessionStore(secret string, timeout time.Duration, secure bool) *sessions.CookieStore {
	cs := sessions.NewCookieStore([]byte(secret))
	cs.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(timeout.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return cs
}

// Login checks the admin password and issues a token, also stored in the
// session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req domain.LoginRequest
	if !h.decodeJSON(w, r, &req, maxBodySize) {
		return
	}
	if req.Password == "" {
		h.respondError(w, r, http.StatusBadRequest, "Password is required")
		return
	}

	hash, err := h.adminPasswordHash(r)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to load admin password", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Failed to log in")
		return
	}
	if hash == "" {
		h.logger.WarnContext(ctx, "Login attempted but no admin password is configured")
		metrics.RecordLogin("failure")
		h.respondError(w, r, http.StatusUnauthorized, "Invalid password")
		return
	}
	if !auth.CheckPasswordHash(req.Password, hash) {
		h.logger.WarnContext(ctx, "Admin login failed", slog.String("remote_addr", r.RemoteAddr))
		metrics.RecordLogin("failure")
		h.respondError(w, r, http.StatusUnauthorized, "Invalid password")
		return
	}

	token, expiresAt, err := h.tokens.Generate(adminSubject, auth.RoleAdmin)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to generate token", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Failed to log in")
		return
	}

	// A stale or foreign cookie fails to decode; a fresh session replaces it.
	session, _ := h.sessions.Get(r, sessionName)
	session.Values[sessionTokenKey] = token
	if err := session.Save(r, w); err != nil {
		h.logger.ErrorContext(ctx, "Failed to save session", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Failed to log in")
		return
	}

	metrics.RecordLogin("success")
	h.logger.InfoContext(ctx, "Admin logged in")
	h.respondJSON(w, r, http.StatusOK, domain.LoginResponse{Token: token, ExpiresAt: expiresAt.Unix()})
}

// Logout clears the session cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Get(r, sessionName)
	delete(session.Values, sessionTokenKey)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to clear session", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Failed to log out")
		return
	}
	h.respondJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

// Session reports whether the caller holds a valid admin credential.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Authenticated bool  `json:"authenticated"`
		ExpiresAt     int64 `json:"expires_at,omitempty"`
	}{}
	if claims := AdminClaims(r.Context()); claims != nil {
		resp.Authenticated = true
		if claims.ExpiresAt != nil {
			resp.ExpiresAt = claims.ExpiresAt.Unix()
		}
	}
	h.respondJSON(w, r, http.StatusOK, resp)
}

// ChangePassword replaces the admin password after checking the current one.
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req domain.ChangePasswordRequest
	if !h.decodeJSON(w, r, &req, maxBodySize) {
		return
	}
	switch {
	case req.Current == "" || req.New == "" || req.Confirm == "":
		h.respondError(w, r, http.StatusBadRequest, "All fields are required")
		return
	case req.New != req.Confirm:
		h.respondError(w, r, http.StatusBadRequest, "New passwords do not match")
		return
	case len(req.New) < 6:
		h.respondError(w, r, http.StatusBadRequest, "New password must be at least 6 characters")
		return
	}
	if err := h.validator.StructCtx(ctx, req); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	hash, err := h.adminPasswordHash(r)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to load admin password", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Failed to change password")
		return
	}
	if !auth.CheckPasswordHash(req.Current, hash) {
		h.respondError(w, r, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	newHash, err := auth.HashPassword(req.New)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to hash password", slog.String("error", err.Error()))
		h.respondError(w, r, http.StatusInternalServerError, "Failed to change password")
		return
	}
	if err := h.store.SetAdminPasswordHash(ctx, newHash); err != nil {
		h.storeError(w, r, err, "change password")
		return
	}
	h.logger.InfoContext(ctx, "Admin password changed")
	h.respondJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

// adminPasswordHash prefers the stored hash over the configured one.
func (h *Handler) adminPasswordHash(r *http.Request) (string, error) {
	hash, err := h.store.AdminPasswordHash(r.Context())
	switch {
	case err == nil && hash != "":
		return hash, nil
	case err == nil, errors.Is(err, store.ErrSettingNotFound):
		return h.cfg.Auth.AdminPasswordHash, nil
	default:
		return "", err
	}
}
