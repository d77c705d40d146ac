// Package transport defines the live-connection send capability shared by
// the websocket hub and the API Gateway client.
package transport

import (
	"context"
	"errors"
)

// ErrGone reports that the connection no longer exists on the transport.
// Callers should unregister it.
var ErrGone = errors.New("connection gone")

// ErrNotLocal reports that the connection is held by another server
// process. The registry entry is still valid and must be kept.
var ErrNotLocal = errors.New("connection held by another node")

// Sender pushes a serialized payload to one live connection.
type Sender interface {
	Send(ctx context.Context, connectionID string, data []byte) error
}
