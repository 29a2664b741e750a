package api

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"moviedb/internal/metrics"
	"moviedb/pkg/auth"
)

// ContextKey is the type of request context keys set by this package.
type ContextKey string

const (
	// RequestIDKey holds the request id.
	RequestIDKey ContextKey = "requestID"
	// AdminClaimsKey holds the validated admin claims.
	AdminClaimsKey ContextKey = "adminClaims"

	requestIDHeader = "X-Request-ID"
	loginLimit      = 5
)

var (
	errNoCredential = errors.New("no credential")
	errNotAdmin     = errors.New("not an admin")
)

// AdminClaims returns the admin claims attached by OptionalAdmin or
// RequireAdmin, or nil.
func AdminClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(AdminClaimsKey).(*auth.Claims)
	return claims
}

// IsAdmin reports whether the request carries a valid admin credential.
func IsAdmin(ctx context.Context) bool {
	return AdminClaims(ctx) != nil
}

// RequestID returns the id assigned by the RequestID middleware.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// statusRecorder captures the status code. It keeps Hijack available for
// the websocket upgrade.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	return rec.ResponseWriter.Write(b)
}

func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	if rec.status == 0 {
		rec.status = http.StatusSwitchingProtocols
	}
	return hj.Hijack()
}

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

func (rec *statusRecorder) code() int {
	if rec.status == 0 {
		return http.StatusOK
	}
	return rec.status
}

// RequestIDMiddleware reuses an incoming X-Request-ID or generates one.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), RequestIDKey, id)))
	})
}

// Recover turns a handler panic into a 500.
func (h *Handler) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rv := recover(); rv != nil {
				if rv == http.ErrAbortHandler {
					panic(rv)
				}
				h.logger.ErrorContext(r.Context(), "Handler panicked",
					slog.Any("panic", rv),
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestID(r.Context())),
					slog.String("stack", string(debug.Stack())))
				h.respondError(w, r, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Instrument logs each request and records it in Prometheus under its route
// template, so ids don't explode label cardinality.
func (h *Handler) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)
		metrics.RecordAPIRequest(r.Method, route, strconv.Itoa(rec.code()), elapsed)
		h.logger.InfoContext(r.Context(), "HTTP request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", rec.code()),
			slog.Duration("duration", elapsed),
			slog.String("request_id", RequestID(r.Context())))
	})
}

// adminCredential validates the bearer token, falling back to the session
// cookie.
func (h *Handler) adminCredential(r *http.Request) (*auth.Claims, error) {
	var token string
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.Split(header, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return nil, auth.ErrInvalidToken
		}
		token = parts[1]
	} else if session, err := h.sessions.Get(r, sessionName); err == nil {
		token, _ = session.Values[sessionTokenKey].(string)
	}
	if token == "" {
		return nil, errNoCredential
	}

	claims, err := h.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	if claims.Role != auth.RoleAdmin {
		return claims, errNotAdmin
	}
	return claims, nil
}

// RequireAdmin rejects requests without a valid admin credential.
func (h *Handler) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.adminCredential(r)
		switch {
		case errors.Is(err, errNoCredential):
			h.respondError(w, r, http.StatusUnauthorized, "Authentication required")
			return
		case errors.Is(err, errNotAdmin):
			h.logger.WarnContext(r.Context(), "Non-admin token rejected", slog.String("role", claims.Role))
			h.respondError(w, r, http.StatusForbidden, "Admin access required")
			return
		case err != nil:
			h.logger.WarnContext(r.Context(), "Invalid or expired token", slog.String("error", err.Error()))
			h.respondError(w, r, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), AdminClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAdmin marks the context when an admin credential is present and
// lets every request through.
func (h *Handler) OptionalAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, err := h.adminCredential(r); err == nil {
			r = r.WithContext(context.WithValue(r.Context(), AdminClaimsKey, claims))
		}
		next.ServeHTTP(w, r)
	})
}

// CORS applies the configured origin allow list.
func (h *Handler) CORS() func(http.Handler) http.Handler {
	origins := h.cfg.Security.CORSOrigins
	wildcard := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
		ExposedHeaders:   []string{"X-Total-Count", requestIDHeader},
		AllowCredentials: !wildcard,
		MaxAge:           300,
	})
}

// RateLimit limits requests per client IP unless disabled.
func (h *Handler) RateLimit() func(http.Handler) http.Handler {
	sec := h.cfg.Security
	if sec.RateLimitDisabled || sec.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(sec.RateLimitRequests, sec.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			h.respondError(w, r, http.StatusTooManyRequests, "Too many requests")
		}))
}

// LoginRateLimit is the stricter limit in front of the password check.
func (h *Handler) LoginRateLimit() func(http.Handler) http.Handler {
	if h.cfg.Security.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(loginLimit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordLogin("rate_limited")
			h.respondError(w, r, http.StatusTooManyRequests, "Too many login attempts, try again later")
		}))
}
