package auction

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper drives the settlement sweep on a fixed period. A sweep is one pass
// over all active auctions, so the number of scheduled timers stays at one
// regardless of how many auctions exist; the trade-off is that settlement
// lags an auction's end time by at most one interval.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper ticking every interval.
func NewSweeper(engine *Engine, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{engine: engine, interval: interval, logger: logger}
}

// Run blocks, sweeping every interval until ctx is cancelled. One sweep runs
// immediately on start so a restart does not delay overdue settlements.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.InfoContext(ctx, "settlement sweeper started",
		slog.Duration("interval", s.interval),
	)

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("settlement sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	outcomes := s.engine.RunSweep(ctx)
	for _, out := range outcomes {
		if !out.Applied {
			continue
		}
		s.logger.InfoContext(ctx, "sweep settled auction",
			slog.String("listing_id", out.ListingID),
			slog.String("status", out.Status),
			slog.String("winner_id", out.WinnerID),
		)
	}
}
