// Package push sends out-of-band notifications to users who have no live
// connection.
package push

import (
	"context"
	"errors"
)

// ErrUserBlocked reports that the user has blocked the push channel. It is
// a terminal outcome and must not be retried.
var ErrUserBlocked = errors.New("push: user blocked the channel")

// Client sends a text notification to an external push handle.
type Client interface {
	Push(ctx context.Context, handle, text string) error
}

// Noop drops every notification. It is used when push is disabled.
type Noop struct{}

func (Noop) Push(ctx context.Context, handle, text string) error { return nil }
