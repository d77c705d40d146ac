package ws

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	writeWait   = 10 * time.Second
	sendBufSize = 256
)

// EventHandler routes a client event from an authenticated connection.
type EventHandler interface {
	Handle(ctx context.Context, userID, connectionID string, raw []byte)
}

// Client is a single websocket connection.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	id      string
	userID  string
	handler EventHandler
	logger  *zap.Logger

	pingInterval time.Duration
	maxAge       time.Duration

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// newClient returns a client that is not yet bound to a socket. Payloads
// sent to it are buffered until attach starts the pumps.
func newClient(hub *Hub, id string, opts Options) *Client {
	return &Client{
		hub:          hub,
		id:           id,
		logger:       hub.logger.With(zap.String("connection_id", id)),
		pingInterval: opts.PingInterval,
		maxAge:       opts.MaxAge,
		send:         make(chan []byte, sendBufSize),
		done:         make(chan struct{}),
	}
}

// attach binds the accepted socket and starts the write pump. It must be
// called once, before readPump.
func (c *Client) attach(conn *websocket.Conn, userID string, handler EventHandler) {
	c.conn = conn
	c.userID = userID
	c.handler = handler
	c.logger = c.logger.With(zap.String("user_id", userID))
	go c.writePump()
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump reads client events until the socket closes and hands each one
// to the event handler.
func (c *Client) readPump(ctx context.Context) {
	defer c.hub.unregister(c)

	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				c.logger.Debug("ws: client disconnected")
			} else {
				c.logger.Debug("ws: read error", zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		c.handler.Handle(ctx, c.userID, c.id, data)
	}
}

// writePump writes queued payloads, pings the peer and closes the socket
// once it reaches the maximum connection age.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingInterval)
	var expire <-chan time.Time
	if c.maxAge > 0 {
		timer := time.NewTimer(c.maxAge)
		defer timer.Stop()
		expire = timer.C
	}
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.logger.Debug("ws: write error", zap.Error(err))
				c.conn.Close(websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.logger.Debug("ws: ping error", zap.Error(err))
				c.conn.Close(websocket.StatusGoingAway, "ping failed")
				return
			}

		case <-expire:
			c.logger.Debug("ws: connection reached max age")
			c.conn.Close(websocket.StatusGoingAway, "connection expired")
			return

		case <-c.done:
			c.conn.Close(websocket.StatusNormalClosure, "")
			return
		}
	}
}
