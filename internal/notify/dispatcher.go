// Package notify delivers events to users over their live connections and
// over the push channel when no connection accepts them.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vedran77/spark/internal/metrics"
	"github.com/vedran77/spark/internal/presence"
	"github.com/vedran77/spark/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Outcome summarises one delivery. Delivered is true when at least one
// live connection accepted the payload.
type Outcome struct {
	Delivered bool
	Attempted int
	Pruned    int
}

type Dispatcher struct {
	registry presence.Registry
	sender   transport.Sender
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func NewDispatcher(registry presence.Registry, sender transport.Sender, logger *zap.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		sender:   sender,
		logger:   logger,
		metrics:  m,
	}
}

// Deliver sends p to every live connection of userID concurrently.
// Connections the transport reports gone are unregistered. Deliver never
// pushes; callers fall back when Outcome.Delivered is false. A registry
// error is returned with an undelivered outcome.
func (d *Dispatcher) Deliver(ctx context.Context, userID string, p Payload) (Outcome, error) {
	data, err := Encode(p)
	if err != nil {
		return Outcome{}, err
	}

	ids, err := d.registry.ConnectionsFor(ctx, userID)
	if err != nil {
		d.metrics.Delivery(false)
		return Outcome{}, fmt.Errorf("listing connections for %s: %w", userID, err)
	}

	var (
		mu  sync.Mutex
		out = Outcome{Attempted: len(ids)}
		g   errgroup.Group
	)
	for _, id := range ids {
		g.Go(func() error {
			ok, pruned := d.send(ctx, userID, id, data)
			mu.Lock()
			defer mu.Unlock()
			out.Delivered = out.Delivered || ok
			if pruned {
				out.Pruned++
			}
			return nil
		})
	}
	_ = g.Wait()

	d.metrics.Delivery(out.Delivered)
	return out, nil
}

// SendTo sends p to a single connection, pruning it when gone.
func (d *Dispatcher) SendTo(ctx context.Context, userID, connectionID string, p Payload) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	if ok, _ := d.send(ctx, userID, connectionID, data); !ok {
		return fmt.Errorf("sending %s to %s: not delivered", p.Type(), connectionID)
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, userID, connectionID string, data []byte) (delivered, pruned bool) {
	err := d.sender.Send(ctx, connectionID, data)
	switch {
	case err == nil:
		return true, false
	case errors.Is(err, transport.ErrGone):
		if uerr := d.registry.Unregister(ctx, connectionID); uerr != nil {
			d.logger.Warn("failed to prune gone connection",
				zap.String("user_id", userID),
				zap.String("connection_id", connectionID),
				zap.Error(uerr))
			return false, false
		}
		d.metrics.Prune()
		d.logger.Info("pruned gone connection",
			zap.String("user_id", userID),
			zap.String("connection_id", connectionID))
		return false, true
	case errors.Is(err, transport.ErrNotLocal):
		d.logger.Debug("connection held by another node",
			zap.String("user_id", userID),
			zap.String("connection_id", connectionID))
		return false, false
	default:
		d.logger.Warn("live send failed",
			zap.String("user_id", userID),
			zap.String("connection_id", connectionID),
			zap.Error(err))
		return false, false
	}
}
