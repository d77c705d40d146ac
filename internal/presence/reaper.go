package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/vedran77/spark/internal/repository"
	"go.uber.org/zap"
)

// Reaper removes connection rows older than the maximum connection age.
// Sockets never live longer than that, so such rows are stale.
type Reaper struct {
	conns  repository.ConnectionRepository
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time
	// OnReap, when set, receives the number of rows removed by each sweep.
	OnReap func(n int64)
}

func NewReaper(conns repository.ConnectionRepository, maxAge time.Duration, logger *zap.Logger) *Reaper {
	return &Reaper{conns: conns, maxAge: maxAge, logger: logger, now: time.Now}
}

// Sweep runs one pass and returns the number of rows removed.
func (r *Reaper) Sweep(ctx context.Context) (int64, error) {
	cutoff := r.now().Add(-r.maxAge)
	n, err := r.conns.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reaping connections: %w", err)
	}
	if r.OnReap != nil {
		r.OnReap(n)
	}
	return n, nil
}

// Schedule registers the sweep on a cron scheduler. The returned scheduler
// is started; stop it with Stop().
func (r *Reaper) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		n, err := r.Sweep(ctx)
		if err != nil {
			r.logger.Warn("presence sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			r.logger.Info("presence sweep removed stale connections", zap.Int64("count", n))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scheduling reaper %q: %w", spec, err)
	}
	c.Start()
	return c, nil
}
