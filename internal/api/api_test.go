package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"moviedb/internal/config"
	"moviedb/internal/domain"
	"moviedb/internal/live"
	"moviedb/internal/metadata"
	"moviedb/internal/store"
	"moviedb/pkg/auth"
)

const adminPassword = "secret"

const inceptionDetails = `{
	"id": 27205,
	"imdb_id": "tt1375666",
	"title": "Inception",
	"overview": "A thief who steals corporate secrets.",
	"release_date": "2010-07-15",
	"runtime": 148,
	"poster_path": "/inception.jpg",
	"genres": [{"id": 28, "name": "Action"}],
	"production_countries": [{"iso_3166_1": "GB", "name": "United Kingdom"}]
}`

type testEnv struct {
	server   *httptest.Server
	store    *store.MemoryStore
	tokens   auth.TokenManager
	cfg      *config.Config
	tmdbLast atomic.Value // url.Values
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			AdminPasswordHash: auth.LegacyHash(adminPassword),
			SessionTimeout:    time.Hour,
		},
		Security: config.SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 1000,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: true,
		},
		UI: config.UIConfig{
			ImageBaseURL:  "https://image.tmdb.org/t/p",
			PosterSize:    "w500",
			MoviesPerPage: 50,
		},
	}
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	env := &testEnv{cfg: testConfig()}

	tmdb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.tmdbLast.Store(r.URL.Query())
		switch r.URL.Path {
		case "/movie/27205":
			_, _ = w.Write([]byte(inceptionDetails))
		case "/search/movie":
			_, _ = w.Write([]byte(`{"results":[
				{"id":27205,"title":"Inception","release_date":"2010-07-15","vote_average":8.369,"poster_path":"/inception.jpg","overview":"Dreams."},
				{"id":99,"title":"Inception: The Cobol Job","release_date":"","vote_average":0,"poster_path":"","overview":""}
			]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status_code":34}`))
		}
	}))
	t.Cleanup(tmdb.Close)

	omdb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("i") {
		case "tt1375666":
			_, _ = w.Write([]byte(`{"Title":"Inception","imdbRating":"8.8","Response":"True"}`))
		case "tt5000000":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte(`{"Response":"False","Error":"Incorrect IMDb ID."}`))
		}
	}))
	t.Cleanup(omdb.Close)

	env.cfg.TMDb = config.ProviderConfig{APIKey: "tmdb-key", BaseURL: tmdb.URL, Timeout: 2 * time.Second}
	env.cfg.OMDb = config.ProviderConfig{APIKey: "omdb-key", BaseURL: omdb.URL, Timeout: 2 * time.Second}
	if mutate != nil {
		mutate(env.cfg)
	}

	env.store = store.NewMemoryStore(nil)
	tokens, err := auth.NewTokenManager("test-jwt-secret", time.Hour, "moviedb-test")
	if err != nil {
		t.Fatalf("NewTokenManager() error = %v", err)
	}
	env.tokens = tokens

	meta := metadata.NewService(
		metadata.NewTMDbClient(env.cfg.TMDb, metadata.Options{}),
		metadata.NewOMDbClient(env.cfg.OMDb, metadata.Options{}),
		env.cfg.UI.ImageBaseURL, env.cfg.UI.PosterSize, 12, nil)
	hub := live.NewHub(env.store, env.cfg.Security.CORSOrigins, nil)
	t.Cleanup(hub.Shutdown)

	h := NewHandler(Dependencies{
		Store:     env.store,
		Metadata:  meta,
		Live:      hub,
		Tokens:    tokens,
		Sessions:  NewSessionStore("test-session-secret-0123456789abcdef", time.Hour, false),
		Validator: domain.NewValidator(),
		Config:    env.cfg,
	})
	env.server = httptest.NewServer(NewHTTPRouter(h, http.HandlerFunc(hub.ServeWS)))
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	token, _, err := e.tokens.Generate("admin", auth.RoleAdmin)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (*http.Response, []byte) {
	t.Helper()
	return e.doWith(t, http.DefaultClient, method, path, body, token)
}

func (e *testEnv) doWith(t *testing.T, client *http.Client, method, path string, body any, token string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Marshal() error = %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return resp, raw
}

func (e *testEnv) seed(t *testing.T, m *domain.Movie) *domain.Movie {
	t.Helper()
	if err := e.store.Create(context.Background(), m); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return m
}

func errorMessage(t *testing.T, body []byte) string {
	t.Helper()
	var resp map[string]string
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("error body %q is not JSON: %v", body, err)
	}
	return resp["error"]
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("Unmarshal(%s) error = %v", body, err)
	}
	return v
}

func TestConfigAndHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/api/config", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/config status = %d", resp.StatusCode)
	}
	cfg := decode[map[string]any](t, body)
	if cfg["poster_size"] != "w500" || cfg["movies_per_page"] != float64(50) {
		t.Errorf("config = %v", cfg)
	}
	if cfg["session_timeout_ms"] != float64(time.Hour.Milliseconds()) {
		t.Errorf("session_timeout_ms = %v", cfg["session_timeout_ms"])
	}
	if cfg["tmdb_configured"] != true || cfg["omdb_configured"] != true {
		t.Errorf("configured flags = %v, %v", cfg["tmdb_configured"], cfg["omdb_configured"])
	}

	resp, body = env.do(t, http.MethodGet, "/healthz", nil, "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Errorf("GET /healthz = %d %s", resp.StatusCode, body)
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, _ := env.do(t, http.MethodGet, "/api/movies", nil, "")
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing generated X-Request-ID")
	}

	req, _ := http.NewRequest(http.MethodGet, env.server.URL+"/api/movies", nil)
	req.Header.Set("X-Request-ID", "req-123")
	r2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	r2.Body.Close()
	if got := r2.Header.Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", got)
	}
}

func TestAdminRoutesRequireCredential(t *testing.T) {
	env := newTestEnv(t, nil)
	viewer, _, err := env.tokens.Generate("someone", "viewer")
	if err != nil {
		t.Fatal(err)
	}
	body := map[string]any{"tmdb_id": 1, "title": "A", "status": "watchlist"}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no credential", "", http.StatusUnauthorized},
		{"wrong scheme", "Token abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"non-admin role", "Bearer " + viewer, http.StatusForbidden},
		{"admin", "Bearer " + env.adminToken(t), http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := json.Marshal(body)
			req, _ := http.NewRequest(http.MethodPost, env.server.URL+"/api/movies", bytes.NewReader(raw))
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestCreateListAndPaginate(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.adminToken(t)

	for i, title := range []string{"Alien", "Brazil", "Casablanca"} {
		resp, body := env.do(t, http.MethodPost, "/api/movies", map[string]any{
			"tmdb_id":      i + 1,
			"title":        title,
			"status":       "watched",
			"date_watched": "2024-01-0" + string(rune('1'+i)),
		}, token)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %s status = %d: %s", title, resp.StatusCode, body)
		}
		if m := decode[domain.Movie](t, body); m.ID == "" || m.Country != domain.UnknownCountry {
			t.Errorf("created movie = %+v", m)
		}
	}

	resp, body := env.do(t, http.MethodPost, "/api/movies",
		map[string]any{"tmdb_id": 1, "title": "Alien again", "status": "watched"}, token)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate status = %d", resp.StatusCode)
	}
	if got := errorMessage(t, body); got != "This movie is already in the collection" {
		t.Errorf("duplicate error = %q", got)
	}

	resp, body = env.do(t, http.MethodPost, "/api/movies",
		map[string]any{"tmdb_id": 9, "title": "", "status": "watched"}, token)
	if resp.StatusCode != http.StatusBadRequest || !strings.HasPrefix(errorMessage(t, body), "Validation failed") {
		t.Errorf("invalid create = %d %s", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/movies?tab=watched&sort=title", nil, "")
	all := decode[[]domain.Movie](t, body)
	if len(all) != 3 || all[0].Title != "Alien" || resp.Header.Get("X-Total-Count") != "3" {
		t.Fatalf("list = %d movies, total %s", len(all), resp.Header.Get("X-Total-Count"))
	}

	resp, body = env.do(t, http.MethodGet, "/api/movies?tab=watched&sort=title&page=2&limit=2", nil, "")
	page := decode[[]domain.Movie](t, body)
	if len(page) != 1 || page[0].Title != "Casablanca" {
		t.Errorf("page 2 = %+v", page)
	}
	if resp.Header.Get("X-Total-Count") != "3" {
		t.Errorf("X-Total-Count = %q, want 3", resp.Header.Get("X-Total-Count"))
	}

	for _, page := range []string{"3", "9223372036854775807"} {
		resp, body = env.do(t, http.MethodGet, "/api/movies?page="+page+"&limit=2", nil, "")
		if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "[]" {
			t.Errorf("page %s = %d %s", page, resp.StatusCode, body)
		}
	}

	resp, body = env.do(t, http.MethodGet, "/api/movies?tab=watchlist", nil, "")
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("empty tab = %d %s", resp.StatusCode, body)
	}
}

func TestUpdateAndDeleteMovie(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.adminToken(t)
	m := env.seed(t, &domain.Movie{TMDbID: 1, Title: "Heat", Status: domain.StatusWatchlist})
	path := "/api/movies/" + m.ID

	tests := []struct {
		name    string
		body    string
		want    int
		wantErr string
	}{
		{"empty update", `{}`, http.StatusBadRequest, "No fields to update"},
		{"bad json", `{"notes":`, http.StatusBadRequest, "Invalid request payload"},
		{"rating off the half step", `{"admin_rating":7.3}`, http.StatusBadRequest, ""},
		{"unknown status", `{"status":"maybe"}`, http.StatusBadRequest, ""},
		{"valid", `{"admin_rating":8.5,"status":"watched","date_watched":"2024-05-01"}`, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPatch, path, tt.body, token)
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.want, body)
			}
			if tt.wantErr != "" {
				if got := errorMessage(t, body); got != tt.wantErr {
					t.Errorf("error = %q, want %q", got, tt.wantErr)
				}
			}
		})
	}

	_, body := env.do(t, http.MethodGet, path, nil, "")
	got := decode[domain.Movie](t, body)
	if got.Status != domain.StatusWatched || got.AdminRating == nil || *got.AdminRating != 8.5 {
		t.Errorf("after update = %+v", got)
	}

	resp, _ := env.do(t, http.MethodDelete, path, nil, token)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE status = %d", resp.StatusCode)
	}
	resp, body = env.do(t, http.MethodGet, path, nil, "")
	if resp.StatusCode != http.StatusNotFound || errorMessage(t, body) != "Movie not found" {
		t.Errorf("GET deleted = %d %s", resp.StatusCode, body)
	}
	resp, _ = env.do(t, http.MethodPatch, path, `{"notes":"x"}`, token)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("PATCH deleted = %d", resp.StatusCode)
	}
}

func TestBatchOperationsAndClear(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.adminToken(t)
	a := env.seed(t, &domain.Movie{TMDbID: 1, Title: "A", Status: domain.StatusWatchlist})
	b := env.seed(t, &domain.Movie{TMDbID: 2, Title: "B", Status: domain.StatusWatchlist})
	c := env.seed(t, &domain.Movie{TMDbID: 3, Title: "C", Status: domain.StatusWatchlist})

	resp, body := env.do(t, http.MethodPost, "/api/movies/batch/update", map[string]any{
		"ids":    []string{a.ID, b.ID},
		"update": map[string]any{"status": "watched"},
	}, token)
	if resp.StatusCode != http.StatusOK || decode[map[string]int](t, body)["updated"] != 2 {
		t.Fatalf("batch update = %d %s", resp.StatusCode, body)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/movies/batch/update", map[string]any{
		"ids":    []string{a.ID},
		"update": map[string]any{},
	}, token)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty batch update = %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/movies/batch/delete", map[string]any{"ids": []string{}}, token)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty batch delete = %d", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodPost, "/api/movies/batch/delete", map[string]any{"ids": []string{c.ID}}, token)
	if resp.StatusCode != http.StatusOK || decode[map[string]int](t, body)["deleted"] != 1 {
		t.Fatalf("batch delete = %d %s", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodDelete, "/api/movies", map[string]string{"confirm": "delete"}, token)
	if resp.StatusCode != http.StatusBadRequest || errorMessage(t, body) != "Type DELETE to confirm" {
		t.Errorf("unconfirmed clear = %d %s", resp.StatusCode, body)
	}
	resp, body = env.do(t, http.MethodDelete, "/api/movies", map[string]string{"confirm": "DELETE"}, token)
	if resp.StatusCode != http.StatusOK || decode[map[string]int](t, body)["deleted"] != 2 {
		t.Errorf("clear = %d %s", resp.StatusCode, body)
	}
}

func TestExportThenImport(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.adminToken(t)
	year, runtime := 1995, 170
	poster := "https://image.tmdb.org/t/p/w500/heat.jpg"
	admin := 9.5
	letterboxd := "4.5"
	watched := "2023-11-04"
	heat := env.seed(t, &domain.Movie{
		TMDbID:           949,
		Title:            "Heat",
		Year:             &year,
		PosterPath:       &poster,
		Genres:           []string{"Crime", "Drama", "Action"},
		Country:          "United States of America",
		IMDbRating:       domain.RatingPtr(8.3),
		Plot:             "A group of professional bank robbers.",
		Runtime:          &runtime,
		AdminRating:      &admin,
		LetterboxdRating: &letterboxd,
		Notes:            "Shootout downtown.",
		DateWatched:      &watched,
		Status:           domain.StatusWatched,
	})
	env.seed(t, &domain.Movie{TMDbID: 2, Title: "Ronin", Status: domain.StatusWatchlist})

	resp, exported := env.do(t, http.MethodGet, "/api/movies/export", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, `filename="moviedb-export-`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if len(decode[[]domain.Movie](t, exported)) != 2 {
		t.Fatalf("export body = %s", exported)
	}

	resp, body := env.do(t, http.MethodPost, "/api/movies/import", string(exported), token)
	if resp.StatusCode != http.StatusOK || decode[map[string]int](t, body)["imported"] != 2 {
		t.Fatalf("import = %d %s", resp.StatusCode, body)
	}
	all, _ := env.store.List(context.Background())
	if len(all) != 4 {
		t.Errorf("collection size after import = %d, want 4", len(all))
	}

	var copied *domain.Movie
	for _, m := range all {
		if m.TMDbID == heat.TMDbID && m.ID != heat.ID {
			copied = m
		}
	}
	if copied == nil {
		t.Fatal("imported copy of Heat not found")
	}
	original, err := env.store.GetByID(context.Background(), heat.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !copied.DateAdded.Equal(original.DateAdded) || !copied.LastModified.Equal(original.LastModified) {
		t.Errorf("timestamps = %v/%v, want %v/%v", copied.DateAdded, copied.LastModified, original.DateAdded, original.LastModified)
	}
	for _, m := range []*domain.Movie{copied, original} {
		m.ID, m.DateAdded, m.LastModified = "", time.Time{}, time.Time{}
	}
	if !reflect.DeepEqual(copied, original) {
		t.Errorf("imported = %+v, want %+v", copied, original)
	}

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty array", `[]`, "No movies to import"},
		{"untitled entry", `[{"title":""}]`, "Movie at index 0 has no title"},
		{"not an array", `{"title":"x"}`, "Invalid request payload"},
		{"rating out of range", `[{"title":"ok"},{"title":"x","admin_rating":42.3}]`, "Movie at index 1 is invalid"},
		{"rating off the half step", `[{"title":"x","admin_rating":7.3}]`, "Movie at index 0 is invalid"},
		{"unknown status", `[{"title":"x","status":"Watched"}]`, "Movie at index 0 is invalid"},
		{"malformed date", `[{"title":"x","date_watched":"yesterday"}]`, "Movie at index 0 is invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/movies/import", tt.body, token)
			if resp.StatusCode != http.StatusBadRequest || !strings.HasPrefix(errorMessage(t, body), tt.want) {
				t.Errorf("import = %d %s", resp.StatusCode, body)
			}
		})
	}
	if after, _ := env.store.List(context.Background()); len(after) != 4 {
		t.Errorf("rejected imports changed the collection: %d movies", len(after))
	}
}

func TestFacetsStatsAndRandom(t *testing.T) {
	env := newTestEnv(t, nil)
	year := 1995
	env.seed(t, &domain.Movie{TMDbID: 1, Title: "Heat", Year: &year, Genres: []string{"Crime"}, Country: "United States of America", Status: domain.StatusWatched})
	env.seed(t, &domain.Movie{TMDbID: 2, Title: "Ronin", Status: domain.StatusWatchlist})

	_, body := env.do(t, http.MethodGet, "/api/movies/facets", nil, "")
	facets := decode[map[string]any](t, body)
	if genres, _ := facets["genres"].([]any); len(genres) != 1 || genres[0] != "Crime" {
		t.Errorf("facets = %s", body)
	}

	_, body = env.do(t, http.MethodGet, "/api/movies/stats", nil, "")
	stats := decode[map[string]any](t, body)
	if stats["watched"] != float64(1) || stats["watchlist"] != float64(1) {
		t.Errorf("stats = %s", body)
	}

	resp, body := env.do(t, http.MethodGet, "/api/movies/random?tab=watched", nil, "")
	if resp.StatusCode != http.StatusOK || decode[domain.Movie](t, body).Title != "Heat" {
		t.Errorf("random = %d %s", resp.StatusCode, body)
	}
	resp, body = env.do(t, http.MethodGet, "/api/movies/random?tab=watched&genres=Horror", nil, "")
	if resp.StatusCode != http.StatusNotFound || errorMessage(t, body) != "No movies match the current filters" {
		t.Errorf("random without match = %d %s", resp.StatusCode, body)
	}
}

func TestSuggestionWorkflow(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.adminToken(t)

	resp, body := env.do(t, http.MethodPost, "/api/movies/add", map[string]any{"tmdb_id": 27205, "status": "watched"}, "")
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("suggest status = %d: %s", resp.StatusCode, body)
	}
	pending := decode[domain.PendingMovie](t, body)
	if pending.Title != "Inception" || pending.RequestedStatus != domain.StatusWatched || pending.DateWatched == nil {
		t.Errorf("pending = %+v", pending)
	}

	resp, body = env.do(t, http.MethodPost, "/api/movies/add", map[string]any{"tmdb_id": 27205, "status": "watchlist"}, "")
	if resp.StatusCode != http.StatusConflict || errorMessage(t, body) != "This movie has already been suggested" {
		t.Errorf("second suggestion = %d %s", resp.StatusCode, body)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/pending", nil, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous pending list = %d", resp.StatusCode)
	}
	_, body = env.do(t, http.MethodGet, "/api/pending", nil, token)
	if list := decode[[]domain.PendingMovie](t, body); len(list) != 1 || list[0].ID != pending.ID {
		t.Fatalf("pending list = %s", body)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/pending?status=bogus", nil, token)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bogus status filter = %d", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodPost, "/api/pending/"+pending.ID+"/approve", nil, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d: %s", resp.StatusCode, body)
	}
	movie := decode[map[string]any](t, body)
	if movie["title"] != "Inception" || movie["imdb_rating"] != 8.8 || movie["status"] != "watched" {
		t.Errorf("approved movie = %s", body)
	}

	resp, body = env.do(t, http.MethodPost, "/api/pending/"+pending.ID+"/approve", nil, token)
	if resp.StatusCode != http.StatusConflict || errorMessage(t, body) != "Suggestion has already been reviewed" {
		t.Errorf("second approve = %d %s", resp.StatusCode, body)
	}

	_, body = env.do(t, http.MethodGet, "/api/pending?status=all", nil, token)
	if list := decode[[]domain.PendingMovie](t, body); len(list) != 1 || list[0].Status != domain.SuggestionApproved {
		t.Errorf("all suggestions = %s", body)
	}

	resp, body = env.do(t, http.MethodPost, "/api/movies/add", map[string]any{"tmdb_id": 27205, "status": "watchlist"}, "")
	if resp.StatusCode != http.StatusConflict || errorMessage(t, body) != "This movie is already in the collection" {
		t.Errorf("add after approval = %d %s", resp.StatusCode, body)
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/pending/"+pending.ID, nil, token)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete suggestion = %d", resp.StatusCode)
	}
	resp, body = env.do(t, http.MethodPost, "/api/pending/"+pending.ID+"/reject", nil, token)
	if resp.StatusCode != http.StatusNotFound || errorMessage(t, body) != "Suggestion not found" {
		t.Errorf("reject deleted = %d %s", resp.StatusCode, body)
	}
}

func TestAdminAddsFromCatalogDirectly(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.adminToken(t)

	resp, body := env.do(t, http.MethodPost, "/api/movies/add", map[string]any{"tmdb_id": 27205, "status": "watchlist"}, token)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin add status = %d: %s", resp.StatusCode, body)
	}
	m := decode[domain.Movie](t, body)
	if m.Country != "United Kingdom" || m.DateWatched != nil || m.PosterPath == nil ||
		*m.PosterPath != "https://image.tmdb.org/t/p/w500/inception.jpg" {
		t.Errorf("added movie = %+v", m)
	}

	resp, body = env.do(t, http.MethodPost, "/api/movies/add", map[string]any{"tmdb_id": 404, "status": "watchlist"}, token)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown tmdb id = %d %s", resp.StatusCode, body)
	}
	resp, _ = env.do(t, http.MethodPost, "/api/movies/add", map[string]any{"tmdb_id": 1, "status": "someday"}, token)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid status = %d", resp.StatusCode)
	}
}

func TestSearchAndLookup(t *testing.T) {
	env := newTestEnv(t, nil)
	existing := env.seed(t, &domain.Movie{TMDbID: 27205, Title: "Inception", Status: domain.StatusWatched})

	resp, body := env.do(t, http.MethodGet, "/api/search?query=incep", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d: %s", resp.StatusCode, body)
	}
	var hits []struct {
		ID       int64         `json:"id"`
		Year     string        `json:"year"`
		Rating   string        `json:"rating"`
		Existing *domain.Movie `json:"existing"`
	}
	if err := json.Unmarshal(body, &hits); err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("hits = %s", body)
	}
	if hits[0].Existing == nil || hits[0].Existing.ID != existing.ID || hits[0].Rating != "8.4" {
		t.Errorf("first hit = %+v", hits[0])
	}
	if hits[1].Existing != nil || hits[1].Year != "N/A" {
		t.Errorf("second hit = %+v", hits[1])
	}

	_, body = env.do(t, http.MethodGet, "/api/search?query=a", nil, "")
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("short query = %s", body)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/lookup/27205", http.StatusOK},
		{"/api/lookup/99", http.StatusNotFound},
		{"/api/lookup/abc", http.StatusNotFound},
	}
	for _, tt := range tests {
		resp, _ := env.do(t, http.MethodGet, tt.path, nil, "")
		if resp.StatusCode != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestOMDbProxy(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name     string
		method   string
		path     string
		want     int
		wantBody string
	}{
		{"missing id", http.MethodGet, "/api/omdb", http.StatusBadRequest, "IMDb ID (i) parameter is required"},
		{"found", http.MethodGet, "/api/omdb?i=tt1375666", http.StatusOK, `"imdbRating":"8.8"`},
		{"miss", http.MethodGet, "/api/omdb?i=tt9999999", http.StatusNotFound, "Incorrect IMDb ID."},
		{"upstream failure", http.MethodGet, "/api/omdb?i=tt5000000", http.StatusInternalServerError, "Failed to fetch from OMDb"},
		{"wrong method", http.MethodPost, "/api/omdb?i=tt1375666", http.StatusMethodNotAllowed, "Method not allowed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, tt.method, tt.path, nil, "")
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.want, body)
			}
			if !strings.Contains(string(body), tt.wantBody) {
				t.Errorf("body = %s, want it to contain %q", body, tt.wantBody)
			}
			if tt.want == http.StatusOK && resp.Header.Get("Cache-Control") != proxyCacheControl {
				t.Errorf("Cache-Control = %q", resp.Header.Get("Cache-Control"))
			}
		})
	}
}

func TestTMDbProxy(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/api/tmdb?endpoint=movie/27205&language=en-US&api_key=stolen", nil, "")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"Inception"`) {
		t.Fatalf("proxy = %d %s", resp.StatusCode, body)
	}
	q := env.tmdbLast.Load().(url.Values)
	if q.Get("api_key") != "tmdb-key" || q.Get("language") != "en-US" || q.Has("endpoint") {
		t.Errorf("forwarded query = %v", q)
	}

	tests := []struct {
		path string
		want int
		msg  string
	}{
		{"/api/tmdb", http.StatusBadRequest, "Endpoint parameter is required"},
		{"/api/tmdb?endpoint=../secret", http.StatusBadRequest, "Invalid endpoint"},
		{"/api/tmdb?endpoint=http://evil.example/x", http.StatusBadRequest, "Invalid endpoint"},
		{"/api/tmdb?endpoint=movie/404", http.StatusInternalServerError, "Failed to fetch from TMDb"},
	}
	for _, tt := range tests {
		resp, body := env.do(t, http.MethodGet, tt.path, nil, "")
		if resp.StatusCode != tt.want || errorMessage(t, body) != tt.msg {
			t.Errorf("GET %s = %d %s", tt.path, resp.StatusCode, body)
		}
	}
}

func TestProxiesWithoutKeys(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.TMDb.APIKey = ""
		c.OMDb.APIKey = ""
	})
	for _, path := range []string{"/api/tmdb?endpoint=movie/27205", "/api/omdb?i=tt1375666"} {
		resp, body := env.do(t, http.MethodGet, path, nil, "")
		if resp.StatusCode != http.StatusInternalServerError || errorMessage(t, body) != "API key not configured" {
			t.Errorf("GET %s = %d %s", path, resp.StatusCode, body)
		}
	}
}

func TestLoginSessionLogout(t *testing.T) {
	env := newTestEnv(t, nil)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	client := &http.Client{Jar: jar}

	resp, body := env.doWith(t, client, http.MethodPost, "/api/auth/login", map[string]string{"password": "wrong"}, "")
	if resp.StatusCode != http.StatusUnauthorized || errorMessage(t, body) != "Invalid password" {
		t.Fatalf("wrong password = %d %s", resp.StatusCode, body)
	}

	resp, body = env.doWith(t, client, http.MethodPost, "/api/auth/login", map[string]string{"password": adminPassword}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login = %d %s", resp.StatusCode, body)
	}
	login := decode[domain.LoginResponse](t, body)
	if login.Token == "" || login.ExpiresAt <= time.Now().Unix() {
		t.Errorf("login response = %+v", login)
	}

	_, body = env.do(t, http.MethodGet, "/api/auth/session", nil, login.Token)
	if s := decode[map[string]any](t, body); s["authenticated"] != true {
		t.Errorf("bearer session = %s", body)
	}

	// The cookie alone authorises admin routes.
	m := env.seed(t, &domain.Movie{TMDbID: 1, Title: "Heat", Status: domain.StatusWatchlist})
	resp, _ = env.doWith(t, client, http.MethodDelete, "/api/movies/"+m.ID, nil, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("cookie delete = %d", resp.StatusCode)
	}

	resp, _ = env.doWith(t, client, http.MethodPost, "/api/auth/logout", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("logout = %d", resp.StatusCode)
	}
	_, body = env.doWith(t, client, http.MethodGet, "/api/auth/session", nil, "")
	if s := decode[map[string]any](t, body); s["authenticated"] != false {
		t.Errorf("session after logout = %s", body)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.adminToken(t)

	tests := []struct {
		name string
		body map[string]string
		want int
		msg  string
	}{
		{"missing field", map[string]string{"current": adminPassword, "new": "abcdef"}, http.StatusBadRequest, "All fields are required"},
		{"mismatch", map[string]string{"current": adminPassword, "new": "abcdef", "confirm": "abcdeg"}, http.StatusBadRequest, "New passwords do not match"},
		{"too short", map[string]string{"current": adminPassword, "new": "abc", "confirm": "abc"}, http.StatusBadRequest, "New password must be at least 6 characters"},
		{"wrong current", map[string]string{"current": "nope", "new": "abcdef", "confirm": "abcdef"}, http.StatusUnauthorized, "Current password is incorrect"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPut, "/api/auth/password", tt.body, token)
			if resp.StatusCode != tt.want || errorMessage(t, body) != tt.msg {
				t.Errorf("change = %d %s", resp.StatusCode, body)
			}
		})
	}

	resp, body := env.do(t, http.MethodPut, "/api/auth/password",
		map[string]string{"current": adminPassword, "new": "n3w-pass", "confirm": "n3w-pass"}, token)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("change = %d %s", resp.StatusCode, body)
	}
	stored, err := env.store.AdminPasswordHash(context.Background())
	if err != nil || !auth.IsBcryptHash(stored) {
		t.Errorf("stored hash = %q, %v", stored, err)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"password": adminPassword}, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("old password login = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"password": "n3w-pass"}, "")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("new password login = %d", resp.StatusCode)
	}
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Security.RateLimitDisabled = false })

	var last int
	for range loginLimit + 1 {
		resp, _ := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{"password": "wrong"}, "")
		last = resp.StatusCode
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("status after %d attempts = %d, want 429", loginLimit+1, last)
	}
}

func TestLiveStreamThroughRouter(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, &domain.Movie{TMDbID: 1, Title: "Heat", Status: domain.StatusWatched})

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/movies/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Type string           `json:"type"`
		Data []map[string]any `json:"data"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if frame.Type != live.MessageTypeMovies || len(frame.Data) != 1 || frame.Data[0]["title"] != "Heat" {
		t.Errorf("snapshot = %+v", frame)
	}
}
