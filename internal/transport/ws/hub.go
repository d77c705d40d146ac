package ws

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vedran77/spark/internal/metrics"
	"github.com/vedran77/spark/internal/transport"
	"go.uber.org/zap"
)

// Hub tracks the websocket clients open on this process, keyed by
// connection id. It is the in-process transport.Sender.
//
// Connection ids carry the hub's node id as a prefix. The presence registry
// may be shared by several processes, so an id minted by another hub is
// reported as transport.ErrNotLocal and only ids this hub minted can be
// reported gone. Such a deployment still delivers live only to sockets
// held by the sending process; run the apigw transport to fan out across
// replicas.
type Hub struct {
	node    string
	mu      sync.RWMutex
	clients map[string]*Client

	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		node:    uuid.NewString()[:8],
		clients: make(map[string]*Client),
		logger:  logger,
		metrics: m,
	}
}

// NewConnectionID mints a connection id owned by this hub.
func (h *Hub) NewConnectionID() string {
	return h.node + "." + uuid.NewString()
}

func (h *Hub) owns(connectionID string) bool {
	return strings.HasPrefix(connectionID, h.node+".")
}

// reserve adds a client for connectionID before its socket is accepted, so
// that deliveries racing the handshake are buffered instead of reported
// gone.
func (h *Hub) reserve(connectionID string, opts Options) *Client {
	c := newClient(h, connectionID, opts)

	h.mu.Lock()
	h.clients[c.id] = c
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.ConnectionOpened()
	h.logger.Debug("ws hub: client connected",
		zap.String("connection_id", c.id),
		zap.Int("total", total))
	return c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	if ok {
		delete(h.clients, c.id)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.shutdown()
	h.metrics.ConnectionClosed()
	h.logger.Debug("ws hub: client disconnected",
		zap.String("connection_id", c.id),
		zap.Int("total", total))
}

// Send queues data for the connection. An id minted by another hub is
// reported as transport.ErrNotLocal. An own id that is no longer open is
// reported as transport.ErrGone. A client whose buffer is full is
// disconnected and reported gone too.
func (h *Hub) Send(ctx context.Context, connectionID string, data []byte) error {
	if !h.owns(connectionID) {
		return transport.ErrNotLocal
	}
	h.mu.RLock()
	c, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return transport.ErrGone
	}

	select {
	case <-c.done:
		return transport.ErrGone
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return transport.ErrGone
	default:
		h.logger.Warn("ws hub: send buffer full, dropping client",
			zap.String("connection_id", connectionID))
		h.unregister(c)
		return transport.ErrGone
	}
}

// Len returns the number of open clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.unregister(c)
	}
}
