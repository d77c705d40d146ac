package service

import (
	"context"

	"github.com/vedran77/spark/internal/notify"
	"go.uber.org/zap"
)

// Notifier delivers events to a user's live connections.
type Notifier interface {
	Deliver(ctx context.Context, userID string, p notify.Payload) (notify.Outcome, error)
}

// PushFallback sends a payload's push text to a user.
type PushFallback interface {
	Notify(ctx context.Context, userID string, p notify.Pushable)
}

// notifier pairs live delivery with the push fallback.
type notifier struct {
	live     Notifier
	fallback PushFallback
	logger   *zap.Logger
}

// deliver sends p live and pushes exactly once when no connection took it.
func (n *notifier) deliver(ctx context.Context, userID string, p notify.Pushable) notify.Outcome {
	out, err := n.live.Deliver(ctx, userID, p)
	if err != nil {
		n.logger.Warn("live delivery failed",
			zap.String("user_id", userID),
			zap.String("payload", p.Type()),
			zap.Error(err))
	}
	if !out.Delivered && n.fallback != nil {
		n.fallback.Notify(ctx, userID, p)
	}
	return out
}

// echo sends p live only.
func (n *notifier) echo(ctx context.Context, userID string, p notify.Payload) {
	if _, err := n.live.Deliver(ctx, userID, p); err != nil {
		n.logger.Warn("live delivery failed",
			zap.String("user_id", userID),
			zap.String("payload", p.Type()),
			zap.Error(err))
	}
}
