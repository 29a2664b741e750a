package metadata

import (
	"context"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"moviedb/internal/config"
	"moviedb/internal/domain"
)

// OMDbClient looks titles up on OMDb by IMDb id.
type OMDbClient struct {
	apiKey  string
	baseURL string
	up      *upstream
}

// NewOMDbClient creates a client for cfg.
func NewOMDbClient(cfg config.ProviderConfig, opts Options) *OMDbClient {
	return &OMDbClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		up:      newUpstream("omdb", "OMDb", cfg.Timeout, opts),
	}
}

// Configured reports whether an API key is set.
func (c *OMDbClient) Configured() bool {
	return c.apiKey != ""
}

// Raw returns the OMDb JSON for imdbID. OMDb answers misses with 200 and
// "Response":"False"; those come back as a *NotFoundError.
func (c *OMDbClient) Raw(ctx context.Context, imdbID string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	imdbID = strings.TrimSpace(imdbID)
	query := url.Values{"apikey": {c.apiKey}, "i": {imdbID}}
	return c.up.fetch(ctx, "omdb:"+imdbID, c.baseURL+"/?"+query.Encode(), checkOMDbResponse)
}

// IMDbRating returns the IMDb score of imdbID, nil when OMDb reports "N/A".
func (c *OMDbClient) IMDbRating(ctx context.Context, imdbID string) (*domain.Rating, error) {
	body, err := c.Raw(ctx, imdbID)
	if err != nil {
		return nil, err
	}
	var resp struct {
		IMDbRating string `json:"imdbRating"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &UpstreamError{Provider: "OMDb", StatusCode: 200, Err: err}
	}
	r, ok, err := domain.ParseRating(resp.IMDbRating)
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

func checkOMDbResponse(body []byte) error {
	var resp struct {
		Response string `json:"Response"`
		Error    string `json:"Error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return &UpstreamError{Provider: "OMDb", StatusCode: 200, Err: err}
	}
	if resp.Response == "False" {
		return &NotFoundError{Provider: "OMDb", Message: resp.Error}
	}
	return nil
}
