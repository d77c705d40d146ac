package notify

import (
	"context"
	"errors"

	"github.com/vedran77/spark/internal/metrics"
	"github.com/vedran77/spark/internal/push"
	"github.com/vedran77/spark/internal/repository"
	"go.uber.org/zap"
)

// Fallback sends a payload's push text to a user who could not be reached
// live. Failures are logged and never returned.
type Fallback struct {
	users   repository.UserRepository
	client  push.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewFallback(users repository.UserRepository, client push.Client, logger *zap.Logger, m *metrics.Metrics) *Fallback {
	return &Fallback{users: users, client: client, logger: logger, metrics: m}
}

func (f *Fallback) Notify(ctx context.Context, userID string, p Pushable) {
	log := f.logger.With(zap.String("user_id", userID), zap.String("payload", p.Type()))

	user, err := f.users.GetByID(ctx, userID)
	if err != nil {
		log.Warn("push fallback: loading user failed", zap.Error(err))
		f.metrics.Push("error")
		return
	}
	if user == nil || user.PushHandle == "" {
		log.Debug("push fallback: no push handle")
		f.metrics.Push("skipped")
		return
	}

	text, err := p.PushText()
	if err != nil {
		log.Error("push fallback: rendering failed", zap.Error(err))
		f.metrics.Push("error")
		return
	}

	err = f.client.Push(ctx, user.PushHandle, text)
	switch {
	case err == nil:
		f.metrics.Push("ok")
	case errors.Is(err, push.ErrUserBlocked):
		log.Debug("push fallback: user blocked the channel")
		f.metrics.Push("blocked")
	default:
		log.Warn("push fallback failed", zap.Error(err))
		f.metrics.Push("error")
	}
}
