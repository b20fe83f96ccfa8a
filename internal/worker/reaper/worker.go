package reaper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/acme/linkedin-outreach/internal/app"
)

// Worker periodically returns expired claims to pending so a crashed or
// disconnected executor cannot strand a prospect's sequence.
type Worker struct {
	container *app.Container
}

// New creates a new reaper worker.
func New(container *app.Container) *Worker {
	return &Worker{container: container}
}

// Run sweeps on the configured cron schedule until cancelled.
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.container.Config
	schedule := cfg.Queue.ReaperSchedule
	if schedule == "" {
		schedule = "@every 1m"
	}

	c := cron.New()
	if _, err := c.AddFunc(schedule, func() { w.sweep(ctx) }); err != nil {
		return err
	}
	c.Start()

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}

func (w *Worker) sweep(ctx context.Context) {
	cfg := w.container.Config
	logger := w.container.Logger

	ttl := cfg.Queue.ClaimTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	cutoff := time.Now().UTC().Add(-ttl)

	released, err := w.container.Repositories().Queue.ReleaseExpired(ctx, cutoff)
	if err != nil {
		logger.Error("reaper: release expired", zap.Error(err))
		return
	}
	if released > 0 {
		logger.Info("reaper: released stale claims", zap.Int64("count", released), zap.Time("cutoff", cutoff))
	}
}
