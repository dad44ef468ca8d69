package auction

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkrogh/marketplace-auction/internal/config"
	"github.com/mkrogh/marketplace-auction/internal/store"
)

// Simulator is the demo-grade competing-bid actor. After a user bid it
// schedules a single delayed counter-bid from a synthetic rival, submitted
// through the normal PlaceBid path with no validation bypass. A rejected
// counter-bid is the expected fate of a stale actor and is dropped silently.
//
// It exists to exercise the engine's per-listing serialization in a
// single-user demo. Keep it disabled in production.
type Simulator struct {
	engine   *Engine
	listings store.ListingRepository
	cfg      config.SimulatorConfig
	logger   *slog.Logger

	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

// NewSimulator creates a Simulator. Wire it with engine.OnBidAccepted.
func NewSimulator(engine *Engine, listings store.ListingRepository, cfg config.SimulatorConfig, logger *slog.Logger) *Simulator {
	return &Simulator{
		engine:   engine,
		listings: listings,
		cfg:      cfg,
		logger:   logger,
		timers:   make(map[*time.Timer]struct{}),
	}
}

// OnBidAccepted schedules a counter-bid after a random delay. Bids placed by
// the simulator's own synthetic participants are ignored, otherwise every
// counter-bid would breed the next one forever.
func (s *Simulator) OnBidAccepted(listingID, bidderID string) {
	if s.isSynthetic(bidderID) {
		return
	}

	delay := s.cfg.MinDelay
	if jitter := s.cfg.MaxDelay - s.cfg.MinDelay; jitter > 0 {
		delay += rand.N(jitter)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, timer)
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}
		s.fire(context.Background(), listingID)
	})
	s.timers[timer] = struct{}{}
}

// Close stops all pending counter-bids. Timers that already fired finish on
// their own.
func (s *Simulator) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for timer := range s.timers {
		timer.Stop()
	}
	s.timers = make(map[*time.Timer]struct{})
}

// fire re-reads the auction and, if it is still open, submits one
// counter-bid slightly above the current price.
func (s *Simulator) fire(ctx context.Context, listingID string) {
	l, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		s.logger.DebugContext(ctx, "simulator: listing lookup failed",
			slog.String("listing_id", listingID),
			slog.Any("error", err),
		)
		return
	}
	a := l.Auction
	if a == nil || l.Status != store.StatusActive {
		return
	}

	rival := s.pickRival(a.Leader())
	if rival == "" {
		return
	}

	// The minimum plus a small random multiple of the increment, so the
	// synthetic market does not always bid the exact minimum.
	extra := decimal.NewFromInt(int64(rand.IntN(3)))
	amount := a.MinimumBid().Add(a.BidIncrement.Mul(extra))

	if _, err := s.engine.PlaceBid(ctx, listingID, rival, amount); err != nil {
		// Expected when the auction ended or moved past our amount.
		s.logger.DebugContext(ctx, "simulator: counter-bid rejected",
			slog.String("listing_id", listingID),
			slog.String("bidder_id", rival),
			slog.Any("reason", err),
		)
		return
	}

	s.logger.InfoContext(ctx, "simulator: counter-bid placed",
		slog.String("listing_id", listingID),
		slog.String("bidder_id", rival),
		slog.String("amount", amount.String()),
	)
}

// pickRival chooses a random synthetic bidder other than the current leader.
func (s *Simulator) pickRival(leader *store.Bid) string {
	candidates := make([]string, 0, len(s.cfg.Bidders))
	for _, id := range s.cfg.Bidders {
		if leader != nil && leader.BidderID == id {
			continue
		}
		candidates = append(candidates, id)
	}
	if len(candidates) == 0 {
		return ""
	}
	return candidates[rand.IntN(len(candidates))]
}

func (s *Simulator) isSynthetic(bidderID string) bool {
	for _, id := range s.cfg.Bidders {
		if id == bidderID {
			return true
		}
	}
	return false
}
