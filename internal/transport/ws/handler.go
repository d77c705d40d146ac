package ws

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Sessions is the connection lifecycle of the live channel.
type Sessions interface {
	EventHandler
	Connect(ctx context.Context, connectionID, token string) (string, error)
	Disconnect(ctx context.Context, connectionID string) error
}

type Options struct {
	MaxMessageSize int64
	PingInterval   time.Duration
	MaxAge         time.Duration
}

// ServeWS returns an HTTP handler that upgrades to WebSocket.
// Auth is done via ?token=xxx query param (WebSocket can't send headers).
func ServeWS(hub *Hub, sessions Sessions, opts Options) http.HandlerFunc {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 4096
	}

	return func(w http.ResponseWriter, r *http.Request) {
		tokenStr := r.URL.Query().Get("token")
		if tokenStr == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}

		// reserved before the registry entry exists, so a delivery racing
		// the handshake is buffered rather than pruned
		connID := hub.NewConnectionID()
		client := hub.reserve(connID, opts)

		userID, err := sessions.Connect(r.Context(), connID, tokenStr)
		if err != nil {
			hub.unregister(client)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		// the registry entry must not outlive the socket
		defer func() {
			if err := sessions.Disconnect(context.WithoutCancel(r.Context()), connID); err != nil {
				hub.logger.Warn("ws: unregister failed", zap.String("connection_id", connID), zap.Error(err))
			}
		}()

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // Allow any origin (dev mode)
		})
		if err != nil {
			hub.unregister(client)
			hub.logger.Warn("ws: accept error", zap.Error(err))
			return
		}
		conn.SetReadLimit(opts.MaxMessageSize)

		client.attach(conn, userID, sessions)
		client.readPump(r.Context())
	}
}
