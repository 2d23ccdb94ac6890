package notifications

import (
	"context"
	"errors"
	"sync"

	"github.com/gofiber/websocket/v2"

	"microblogs/internal/middleware"
	"microblogs/internal/observability"
)

const (
	maxConnsPerUser = 12
	maxTotalConns   = 10000
)

var (
	ErrServerFull = errors.New("server connection limit reached")
	ErrUserFull   = errors.New("user connection limit reached")
	ErrShutdown   = errors.New("live feed is shutting down")
)

// Hub is the set of open live feed sockets on this instance. Every post
// event reaches every socket regardless of who owns it.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	perUser map[uint]int
	closed  bool
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		perUser: make(map[uint]int),
	}
}

// Register admits a socket for userID. conn may be nil in tests.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.closed:
		return nil, ErrShutdown
	case len(h.clients) >= maxTotalConns:
		return nil, ErrServerFull
	case h.perUser[userID] >= maxConnsPerUser:
		return nil, ErrUserFull
	}

	c := NewClient(h, conn, userID)
	h.clients[c] = struct{}{}
	h.perUser[userID]++
	observability.LiveFeedConnections.Inc()
	return c, nil
}

// UnregisterClient forgets c and closes its Send channel, which stops its
// WritePump. Repeated calls are harmless.
func (h *Hub) UnregisterClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(c)
}

// dropLocked removes c and closes Send exactly once. Callers hold h.mu for
// writing, so no BroadcastAll can be sending on it.
func (h *Hub) dropLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if h.perUser[c.UserID]--; h.perUser[c.UserID] <= 0 {
		delete(h.perUser, c.UserID)
	}
	close(c.Send)
	observability.LiveFeedConnections.Dec()
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastAll queues message on every socket without blocking.
func (h *Hub) BroadcastAll(message string) {
	data := []byte(message)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.TrySend(data)
	}
}

// StartWiring feeds the Notifier's post events into BroadcastAll.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartFeedSubscriber(ctx, h.BroadcastAll)
}

// Shutdown refuses new sockets and closes every Send channel. Each WritePump
// then sends a going-away close frame, so the hub never writes to a socket
// itself.
func (h *Hub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	for c := range h.clients {
		h.dropLocked(c)
	}
	middleware.Logger.Debug("live feed hub closed")
	return nil
}
