package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mkrogh/marketplace-auction/internal/clock"
	"github.com/mkrogh/marketplace-auction/internal/event"
	"github.com/mkrogh/marketplace-auction/internal/notify"
	"github.com/mkrogh/marketplace-auction/internal/store"
)

// Engine applies bid and settlement mutations to auction listings.
//
// All mutations of a single listing are serialized through a per-listing
// lock: validation and application happen in one critical section against
// the latest catalog state, so two near-simultaneous bids can never both be
// accepted off the same stale snapshot. Different listings do not contend.
type Engine struct {
	listings store.ListingRepository
	events   event.Store
	notifier notify.Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
	clock    clock.Clock

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	onBid func(listingID, bidderID string)
}

// NewEngine creates an Engine.
func NewEngine(listings store.ListingRepository, events event.Store, notifier notify.Notifier, logger *slog.Logger, tp trace.TracerProvider, clk clock.Clock) *Engine {
	return &Engine{
		listings: listings,
		events:   events,
		notifier: notifier,
		logger:   logger,
		tracer:   tp.Tracer("github.com/mkrogh/marketplace-auction/internal/auction"),
		clock:    clk,
		locks:    make(map[string]*sync.Mutex),
	}
}

// OnBidAccepted registers a hook invoked after every accepted bid. Set it
// before the engine starts serving; it is how the competing-bid simulator
// observes user bids.
func (e *Engine) OnBidAccepted(fn func(listingID, bidderID string)) {
	e.onBid = fn
}

// lockFor returns the mutex serializing mutations of one listing.
func (e *Engine) lockFor(listingID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[listingID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[listingID] = l
	}
	return l
}

// OpenAuction stores a new auction listing and records the opening in the
// event log. Listing creation is otherwise owned by the catalog; this is the
// entry point for listings born inside this process, such as demo seeding.
func (e *Engine) OpenAuction(ctx context.Context, l *store.Listing) error {
	ctx, span := e.tracer.Start(ctx, "Engine.OpenAuction")
	defer span.End()

	if err := e.listings.Create(ctx, l); err != nil {
		return fmt.Errorf("creating listing: %w", err)
	}
	span.SetAttributes(attribute.String("listing.id", l.ID))

	if a := l.Auction; a != nil {
		e.appendEvent(ctx, l, event.AuctionOpened, event.AuctionOpenedData{
			SellerID:     l.SellerID,
			StartingBid:  a.StartingBid,
			BidIncrement: a.BidIncrement,
			EndsAt:       a.EndsAt,
		})
		e.logger.InfoContext(ctx, "auction opened",
			slog.String("listing_id", l.ID),
			slog.String("starting_bid", a.StartingBid.String()),
			slog.Time("ends_at", a.EndsAt),
		)
	}
	return nil
}

// PlaceBid submits a bid on an active auction listing. On success the
// updated auction is returned; on rejection the error identifies the reason
// and no mutation has occurred.
func (e *Engine) PlaceBid(ctx context.Context, listingID, bidderID string, amount decimal.Decimal) (*store.Auction, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.PlaceBid",
		trace.WithAttributes(
			attribute.String("listing.id", listingID),
			attribute.String("bidder.id", bidderID),
			attribute.String("bid.amount", amount.String()),
		),
	)
	defer span.End()

	lock := e.lockFor(listingID)
	lock.Lock()
	defer lock.Unlock()

	l, err := e.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	return e.applyBidLocked(ctx, l, bidderID, amount, event.AuctionBidPlaced)
}

// BuyNow submits a bid equal to the listing's buy now price through the
// normal bidding path. It does not force settlement: the auction still
// settles at its natural end time.
func (e *Engine) BuyNow(ctx context.Context, listingID, bidderID string) (*store.Auction, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.BuyNow",
		trace.WithAttributes(
			attribute.String("listing.id", listingID),
			attribute.String("bidder.id", bidderID),
		),
	)
	defer span.End()

	lock := e.lockFor(listingID)
	lock.Lock()
	defer lock.Unlock()

	l, err := e.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if l.Auction == nil || l.Auction.BuyNowPrice == nil {
		return nil, ErrBuyNowUnavailable
	}
	return e.applyBidLocked(ctx, l, bidderID, *l.Auction.BuyNowPrice, event.AuctionBuyNow)
}

// applyBidLocked validates and applies one bid. The caller must hold the
// listing lock.
func (e *Engine) applyBidLocked(ctx context.Context, l *store.Listing, bidderID string, amount decimal.Decimal, evType event.Type) (*store.Auction, error) {
	now := e.clock.Now()
	if err := Validate(l, bidderID, amount, now); err != nil {
		return nil, err
	}

	a := l.Auction
	var outbid string
	if leader := a.Leader(); leader != nil {
		outbid = leader.BidderID
	}

	// Prepend so Bids[0] is always the current leader.
	a.Bids = append(store.BidList{{BidderID: bidderID, Amount: amount, Time: now}}, a.Bids...)
	a.CurrentBid = amount
	l.UpdatedAt = now

	if err := e.listings.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("persisting bid: %w", err)
	}

	e.appendEvent(ctx, l, evType, event.BidPlacedData{
		BidderID: bidderID,
		Amount:   amount,
		OutbidID: outbid,
	})

	if outbid != "" {
		e.notifier.Notify(ctx, notify.Notification{
			UserID:    outbid,
			Kind:      notify.KindOutbid,
			ListingID: l.ID,
			Title:     l.Title,
			Amount:    amount,
		})
	}

	e.logger.InfoContext(ctx, "bid placed",
		slog.String("listing_id", l.ID),
		slog.String("bidder_id", bidderID),
		slog.String("amount", amount.String()),
	)

	if e.onBid != nil {
		e.onBid(l.ID, bidderID)
	}
	return a, nil
}

// SettlementOutcome describes the terminal state reached by one settlement.
type SettlementOutcome struct {
	ListingID string
	Status    string
	WinnerID  string
	FinalBid  decimal.Decimal
	// Applied is false when the listing was already settled and the call
	// was a no-op replay. Replays emit no notifications.
	Applied bool
}

// Settle performs the one-time terminal transition of a listing's auction.
// It is idempotent: settling an already-settled listing returns the existing
// terminal state without emitting anything.
func (e *Engine) Settle(ctx context.Context, listingID string) (*SettlementOutcome, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Settle",
		trace.WithAttributes(attribute.String("listing.id", listingID)),
	)
	defer span.End()

	lock := e.lockFor(listingID)
	lock.Lock()
	defer lock.Unlock()

	l, err := e.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	a := l.Auction
	if a == nil {
		return nil, ErrAuctionNotActive
	}

	if l.Status != store.StatusActive {
		out := &SettlementOutcome{ListingID: l.ID, Status: l.Status, FinalBid: a.CurrentBid, Applied: false}
		if a.WinnerID != nil {
			out.WinnerID = *a.WinnerID
		}
		return out, nil
	}

	out := &SettlementOutcome{ListingID: l.ID, FinalBid: a.CurrentBid, Applied: true}
	if leader := a.Leader(); leader != nil && a.ReserveMet() {
		winner := leader.BidderID
		a.WinnerID = &winner
		l.Status = store.StatusSoldAuction
		out.WinnerID = winner
	} else {
		l.Status = store.StatusExpired
	}
	out.Status = l.Status
	l.UpdatedAt = e.clock.Now()

	if err := e.listings.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("persisting settlement: %w", err)
	}

	e.appendEvent(ctx, l, event.AuctionSettled, event.AuctionSettledData{
		Status:   l.Status,
		WinnerID: out.WinnerID,
		FinalBid: a.CurrentBid,
	})
	e.notifySettled(ctx, l, out)

	e.logger.InfoContext(ctx, "auction settled",
		slog.String("listing_id", l.ID),
		slog.String("status", l.Status),
		slog.String("winner_id", out.WinnerID),
		slog.String("final_bid", a.CurrentBid.String()),
	)
	return out, nil
}

// notifySettled tells the winner they won and every other participant they
// lost. Only called when the settlement actually transitioned the listing.
func (e *Engine) notifySettled(ctx context.Context, l *store.Listing, out *SettlementOutcome) {
	if out.WinnerID != "" {
		e.notifier.Notify(ctx, notify.Notification{
			UserID:    out.WinnerID,
			Kind:      notify.KindWon,
			ListingID: l.ID,
			Title:     l.Title,
			Amount:    out.FinalBid,
		})
	}

	seen := map[string]struct{}{}
	if out.WinnerID != "" {
		seen[out.WinnerID] = struct{}{}
	}
	for _, b := range l.Auction.Bids {
		if _, ok := seen[b.BidderID]; ok {
			continue
		}
		seen[b.BidderID] = struct{}{}
		e.notifier.Notify(ctx, notify.Notification{
			UserID:    b.BidderID,
			Kind:      notify.KindLost,
			ListingID: l.ID,
			Title:     l.Title,
			Amount:    out.FinalBid,
		})
	}
}

// RunSweep settles every active auction listing whose end time has passed.
// One listing failing does not stop the sweep; failures are logged and the
// listing is retried on the next tick.
func (e *Engine) RunSweep(ctx context.Context) []SettlementOutcome {
	ctx, span := e.tracer.Start(ctx, "Engine.RunSweep")
	defer span.End()

	listings, err := e.listings.ListActiveAuctions(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "sweep: listing active auctions failed", slog.Any("error", err))
		return nil
	}

	now := e.clock.Now()
	var outcomes []SettlementOutcome
	for i := range listings {
		l := &listings[i]
		if l.Auction == nil || !l.Auction.Ended(now) {
			continue
		}
		out, settleErr := e.Settle(ctx, l.ID)
		if settleErr != nil {
			e.logger.ErrorContext(ctx, "sweep: settlement failed",
				slog.String("listing_id", l.ID),
				slog.Any("error", settleErr),
			)
			continue
		}
		outcomes = append(outcomes, *out)
	}

	span.SetAttributes(attribute.Int("sweep.settled", len(outcomes)))
	return outcomes
}

// appendEvent records a domain event. Event persistence is an audit
// concern: failure is logged, never surfaced to the bidder.
func (e *Engine) appendEvent(ctx context.Context, l *store.Listing, t event.Type, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.ErrorContext(ctx, "marshalling event payload", slog.Any("error", err))
		return
	}
	evt := event.Event{
		AggregateID: l.ID,
		Type:        t,
		Data:        data,
		Version:     l.Version,
	}
	if err := e.events.Append(ctx, evt); err != nil {
		e.logger.ErrorContext(ctx, "failed to persist event",
			slog.String("listing_id", l.ID),
			slog.String("type", string(t)),
			slog.Any("error", err),
		)
	}
}
