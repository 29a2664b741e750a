package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"moviedb/internal/config"
)

// TMDbGenre is a genre entry of a details response.
type TMDbGenre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// TMDbCountry is a production country entry of a details response.
type TMDbCountry struct {
	ISO  string `json:"iso_3166_1"`
	Name string `json:"name"`
}

// TMDbMovie is the subset of GET /movie/{id} the service reads.
type TMDbMovie struct {
	ID                  int64         `json:"id"`
	IMDbID              string        `json:"imdb_id"`
	Title               string        `json:"title"`
	Overview            string        `json:"overview"`
	ReleaseDate         string        `json:"release_date"`
	Runtime             int           `json:"runtime"`
	VoteAverage         float64       `json:"vote_average"`
	PosterPath          string        `json:"poster_path"`
	Genres              []TMDbGenre   `json:"genres"`
	ProductionCountries []TMDbCountry `json:"production_countries"`
}

// TMDbSearchResult is one hit of GET /search/movie.
type TMDbSearchResult struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	VoteAverage float64 `json:"vote_average"`
	PosterPath  string  `json:"poster_path"`
}

// TMDbClient calls the TMDb v3 API with the server-side key.
type TMDbClient struct {
	apiKey  string
	baseURL string
	up      *upstream
}

// NewTMDbClient creates a client for cfg. An empty key is allowed; every call
// then fails with ErrMissingAPIKey.
func NewTMDbClient(cfg config.ProviderConfig, opts Options) *TMDbClient {
	return &TMDbClient{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		up:      newUpstream("tmdb", "TMDb", cfg.Timeout, opts),
	}
}

// Configured reports whether an API key is set.
func (c *TMDbClient) Configured() bool {
	return c.apiKey != ""
}

// Raw performs GET {base}/{endpoint} with params and the API key and returns
// the JSON body unchanged. A caller supplied api_key is replaced.
func (c *TMDbClient) Raw(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	endpoint, err := cleanEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	for k, vs := range params {
		if k == "api_key" {
			continue
		}
		query[k] = append([]string(nil), vs...)
	}
	cacheKey := "tmdb:" + endpoint + "?" + query.Encode()
	query.Set("api_key", c.apiKey)

	return c.up.fetch(ctx, cacheKey, c.baseURL+"/"+endpoint+"?"+query.Encode(), nil)
}

// Search runs a movie title search, adult titles excluded.
func (c *TMDbClient) Search(ctx context.Context, query string) ([]TMDbSearchResult, error) {
	body, err := c.Raw(ctx, "search/movie", url.Values{
		"query":         {query},
		"include_adult": {"false"},
	})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Results []TMDbSearchResult `json:"results"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &UpstreamError{Provider: "TMDb", StatusCode: 200, Err: err}
	}
	return resp.Results, nil
}

// Details fetches one movie with its credits. A 404 from TMDb is ErrNotFound.
func (c *TMDbClient) Details(ctx context.Context, tmdbID int64) (*TMDbMovie, error) {
	body, err := c.Raw(ctx, "movie/"+strconv.FormatInt(tmdbID, 10), url.Values{
		"append_to_response": {"credits"},
	})
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) && ue.StatusCode == 404 {
			return nil, &NotFoundError{Provider: "TMDb", Message: fmt.Sprintf("no movie with id %d", tmdbID)}
		}
		return nil, err
	}
	var m TMDbMovie
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, &UpstreamError{Provider: "TMDb", StatusCode: 200, Err: err}
	}
	return &m, nil
}

// cleanEndpoint accepts relative API paths like "movie/27205/credits".
func cleanEndpoint(endpoint string) (string, error) {
	endpoint = strings.Trim(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return "", ErrInvalidEndpoint
	}
	if strings.ContainsAny(endpoint, "?#\\") || strings.Contains(endpoint, "://") {
		return "", ErrInvalidEndpoint
	}
	for _, seg := range strings.Split(endpoint, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", ErrInvalidEndpoint
		}
	}
	return endpoint, nil
}
