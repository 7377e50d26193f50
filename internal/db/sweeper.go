package db

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Sweeper purges sessions that were abandoned without an explicit end.
type Sweeper struct {
	Repo      *Repository
	Retention time.Duration
	Log       *zap.Logger
}

// Sweep deletes every session idle for longer than the retention window.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	before := s.Repo.Now().Add(-s.Retention)
	n, err := s.Repo.PurgeIdle(ctx, before)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.Log.Info("purged idle sessions", zap.Int64("count", n), zap.Time("before", before))
	}
	return n, nil
}

// Start runs Sweep on the given cron schedule until ctx is cancelled.  It
// returns once the schedule is installed.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	if s.Retention <= 0 {
		return fmt.Errorf("db: sweeper: retention must be positive")
	}
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("db: sweeper: schedule %q: %w", schedule, err)
	}
	c := cron.New(cron.WithParser(cronParser))
	c.Schedule(sched, cron.FuncJob(func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.Log.Warn("idle session sweep failed", zap.Error(err))
		}
	}))
	c.Start()
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}
