package metadata

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey   = errors.New("API key not configured")
	ErrNotFound        = errors.New("movie not found")
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// NotFoundError carries the message an upstream attached to a miss.
type NotFoundError struct {
	Provider string
	Message  string
}

func (e *NotFoundError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: movie not found", e.Provider)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// UpstreamError reports a non-2xx answer or an unusable body.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s API error: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s API error: %d", e.Provider, e.StatusCode)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
