// Package jobs holds the background maintenance loops.
package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically removes expired session rows. Lazy deletion on lookup
// already keeps reads correct; the sweeper just keeps the table from growing
// with sessions nobody presents again.
type Sweeper struct {
	sweep    func(ctx context.Context) (int64, error)
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper calling the given sweep function on each tick.
func NewSweeper(sweep func(ctx context.Context) (int64, error), interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		sweep:    sweep,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until the context is cancelled, sweeping on every tick. Sweep
// failures are logged and the loop carries on.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("session sweeper started", slog.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			removed, err := s.sweep(ctx)
			if err != nil {
				s.logger.Error("session sweep failed", slog.String("error", err.Error()))
				continue
			}
			if removed > 0 {
				s.logger.Info("expired sessions removed", slog.Int64("count", removed))
			}
		}
	}
}
