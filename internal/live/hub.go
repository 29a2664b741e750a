// Package live pushes collection snapshots to browsers over websockets.
package live

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"moviedb/internal/domain"
	"moviedb/internal/metrics"
)

const (
	MessageTypeMovies       = "movies"
	MessageTypePendingCount = "pending_count"
	MessageTypePing         = "ping"
	MessageTypePong         = "pong"
)

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Source provides the data behind snapshots.
type Source interface {
	List(ctx context.Context) ([]*domain.Movie, error)
	CountPending(ctx context.Context) (int, error)
}

// Hub tracks connected clients and fans snapshots out to them. A client
// whose buffer is full when a frame is published is dropped.
type Hub struct {
	mu       sync.Mutex
	clients  map[*Client]struct{}
	closed   bool
	source   Source
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHub creates a hub. allowedOrigins follows the CORS setting; "*" accepts
// any origin.
func NewHub(source Source, allowedOrigins []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	h := &Hub{
		clients: make(map[*Client]struct{}),
		source:  source,
		logger:  logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  4096,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
		},
	}
	return h
}

// ServeWS upgrades the request and sends the current movie list as the
// first frame.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.moviesMessage(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to load snapshot", slog.String("error", err.Error()))
		http.Error(w, `{"error":"Failed to load movies"}`, http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(h, conn)
	c.send <- snapshot
	if !h.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}

// PublishMovies sends the full movie list to every client.
func (h *Hub) PublishMovies(ctx context.Context) {
	if h.ClientCount() == 0 {
		return
	}
	payload, err := h.moviesMessage(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to publish movies", slog.String("error", err.Error()))
		return
	}
	h.broadcast(payload)
}

// PublishPendingCount sends the number of suggestions awaiting review.
func (h *Hub) PublishPendingCount(ctx context.Context) {
	if h.ClientCount() == 0 {
		return
	}
	n, err := h.source.CountPending(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to publish pending count", slog.String("error", err.Error()))
		return
	}
	payload, err := json.Marshal(Message{Type: MessageTypePendingCount, Data: n})
	if err != nil {
		return
	}
	h.broadcast(payload)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown disconnects every client and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.dropLocked(c)
	}
	h.logger.Info("live hub stopped")
}

func (h *Hub) moviesMessage(ctx context.Context) ([]byte, error) {
	movies, err := h.source.List(ctx)
	if err != nil {
		return nil, err
	}
	if movies == nil {
		movies = []*domain.Movie{}
	}
	return json.Marshal(Message{Type: MessageTypeMovies, Data: movies})
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	metrics.LiveClients.Inc()
	h.logger.Info("live client connected", slog.Int("total_clients", len(h.clients)))
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.dropLocked(c)
		h.logger.Info("live client disconnected", slog.Int("total_clients", len(h.clients)))
	}
}

func (h *Hub) dropLocked(c *Client) {
	delete(h.clients, c)
	close(c.send)
	metrics.LiveClients.Dec()
}

func (h *Hub) broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("dropping slow live client", slog.Uint64("client_id", c.id))
			h.dropLocked(c)
		}
	}
}

func (h *Hub) sendTo(c *Client, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}
