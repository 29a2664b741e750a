// Package metadata talks to TMDb and OMDb and turns their answers into
// collection records.
package metadata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"moviedb/internal/cache"
	"moviedb/internal/metrics"
)

const maxBodySize = 8 << 20

// Options configures the transport shared by both clients.
type Options struct {
	HTTPClient      *http.Client
	Cache           cache.Cache
	CacheTTL        time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	Logger          *slog.Logger
}

// upstream is one provider: an HTTP client behind a circuit breaker and a
// response cache. Only successful bodies are cached.
type upstream struct {
	provider string // metrics label
	display  string // used in error messages
	http     *http.Client
	cache    cache.Cache
	ttl      time.Duration
	breaker  *gobreaker.CircuitBreaker[[]byte]
	logger   *slog.Logger
}

func newUpstream(provider, display string, timeout time.Duration, opts Options) *upstream {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	u := &upstream{
		provider: provider,
		display:  display,
		http:     client,
		cache:    opts.Cache,
		ttl:      opts.CacheTTL,
		logger:   logger,
	}
	u.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        provider,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("provider", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
			metrics.SetBreakerState(name, stateValue(to))
		},
		IsSuccessful: isBreakerSuccess,
	})
	metrics.SetBreakerState(provider, 0)
	return u
}

// isBreakerSuccess keeps misses, client errors and caller cancellations from
// opening the breaker.
func isBreakerSuccess(err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) {
		return true
	}
	var ue *UpstreamError
	if errors.As(err, &ue) && ue.StatusCode >= 400 && ue.StatusCode < 500 {
		return true
	}
	return false
}

func stateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// fetch returns the body behind rawURL, consulting the cache under cacheKey
// first. check inspects a 2xx body and may turn it into an error.
func (u *upstream) fetch(ctx context.Context, cacheKey, rawURL string, check func([]byte) error) ([]byte, error) {
	if body, ok := u.cached(ctx, cacheKey); ok {
		metrics.RecordUpstream(u.provider, "cache_hit", 0)
		return body, nil
	}

	start := time.Now()
	body, err := u.breaker.Execute(func() ([]byte, error) {
		return u.get(ctx, rawURL, check)
	})
	elapsed := time.Since(start)

	switch {
	case err == nil:
		metrics.RecordUpstream(u.provider, "ok", elapsed)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordUpstream(u.provider, "rejected", 0)
		return nil, &UpstreamError{Provider: u.display, Err: err}
	case errors.Is(err, ErrNotFound):
		metrics.RecordUpstream(u.provider, "not_found", elapsed)
		return nil, err
	default:
		metrics.RecordUpstream(u.provider, "error", elapsed)
		return nil, err
	}

	if u.cache != nil && u.ttl > 0 {
		if err := u.cache.Set(ctx, cacheKey, body, u.ttl); err != nil {
			u.logger.WarnContext(ctx, "cache write failed",
				slog.String("provider", u.provider),
				slog.String("error", err.Error()))
		}
	}
	return body, nil
}

func (u *upstream) cached(ctx context.Context, key string) ([]byte, bool) {
	if u.cache == nil {
		return nil, false
	}
	body, ok, err := u.cache.Get(ctx, key)
	if err != nil {
		u.logger.WarnContext(ctx, "cache read failed",
			slog.String("provider", u.provider),
			slog.String("error", err.Error()))
		return nil, false
	}
	return body, ok
}

func (u *upstream) get(ctx context.Context, rawURL string, check func([]byte) error) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", u.display, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := u.http.Do(req)
	if err != nil {
		return nil, &UpstreamError{Provider: u.display, Err: redactURL(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return nil, &UpstreamError{Provider: u.display, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &UpstreamError{Provider: u.display, StatusCode: resp.StatusCode, Err: err}
	}
	if !json.Valid(body) {
		return nil, &UpstreamError{Provider: u.display, StatusCode: resp.StatusCode, Err: errors.New("malformed JSON body")}
	}
	if check != nil {
		if err := check(body); err != nil {
			return nil, err
		}
	}
	return body, nil
}

// redactURL drops the request URL, which carries the API key, from transport errors.
func redactURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
