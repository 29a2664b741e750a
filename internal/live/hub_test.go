package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"moviedb/internal/domain"
	"moviedb/internal/store"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return f
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubSnapshotsAndPublishing(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	if err := s.Create(ctx, &domain.Movie{TMDbID: 27205, Title: "Inception", Status: domain.StatusWatched}); err != nil {
		t.Fatal(err)
	}

	hub := NewHub(s, []string{"*"}, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	first := readFrame(t, conn)
	if first.Type != MessageTypeMovies {
		t.Fatalf("first frame type = %q, want movies", first.Type)
	}
	var movies []domain.Movie
	if err := json.Unmarshal(first.Data, &movies); err != nil || len(movies) != 1 || movies[0].Title != "Inception" {
		t.Fatalf("snapshot = %s (%v)", first.Data, err)
	}
	waitForClients(t, hub, 1)

	if err := s.CreatePending(ctx, domain.NewPendingFromMovie(&domain.Movie{TMDbID: 603, Title: "The Matrix"})); err != nil {
		t.Fatal(err)
	}
	hub.PublishPendingCount(ctx)
	f := readFrame(t, conn)
	if f.Type != MessageTypePendingCount || string(f.Data) != "1" {
		t.Errorf("frame = %s %s, want pending_count 1", f.Type, f.Data)
	}

	if err := s.Create(ctx, &domain.Movie{TMDbID: 155, Title: "The Dark Knight"}); err != nil {
		t.Fatal(err)
	}
	hub.PublishMovies(ctx)
	f = readFrame(t, conn)
	if err := json.Unmarshal(f.Data, &movies); err != nil || f.Type != MessageTypeMovies || len(movies) != 2 {
		t.Errorf("frame = %s %s", f.Type, f.Data)
	}
}

func TestHubAnswersPing(t *testing.T) {
	hub := NewHub(store.NewMemoryStore(nil), []string{"*"}, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	readFrame(t, conn)
	waitForClients(t, hub, 1)

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatal(err)
	}
	if f := readFrame(t, conn); f.Type != MessageTypePong {
		t.Errorf("frame type = %q, want pong", f.Type)
	}
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub := NewHub(store.NewMemoryStore(nil), []string{"*"}, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	readFrame(t, conn)
	waitForClients(t, hub, 1)

	_ = conn.Close()
	waitForClients(t, hub, 0)
}

func TestHubRejectsForeignOrigin(t *testing.T) {
	hub := NewHub(store.NewMemoryStore(nil), []string{"https://movies.example"}, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := map[string][]string{"Origin": {"https://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatal("Dial() from a foreign origin succeeded")
	}
}

func TestHubShutdown(t *testing.T) {
	hub := NewHub(store.NewMemoryStore(nil), []string{"*"}, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	readFrame(t, conn)
	waitForClients(t, hub, 1)

	hub.Shutdown()
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after Shutdown", hub.ClientCount())
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("connection still open after Shutdown")
	}
}
