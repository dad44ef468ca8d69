package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mkrogh/marketplace-auction/internal/clock"
	"github.com/mkrogh/marketplace-auction/internal/store"
)

// ListingRepo implements store.ListingRepository in memory.
type ListingRepo struct {
	mu               sync.RWMutex
	listings         map[string]*store.Listing
	clock            clock.Clock
	defaultIncrement decimal.Decimal
}

// NewListingRepo returns an empty ListingRepo. Listings created with an
// auction but no bid increment get defaultIncrement.
func NewListingRepo(clk clock.Clock, defaultIncrement decimal.Decimal) *ListingRepo {
	return &ListingRepo{
		listings:         make(map[string]*store.Listing),
		clock:            clk,
		defaultIncrement: defaultIncrement,
	}
}

func (r *ListingRepo) Create(_ context.Context, l *store.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.Status == "" {
		l.Status = store.StatusActive
	}
	if a := l.Auction; a != nil && !a.BidIncrement.IsPositive() {
		a.BidIncrement = r.defaultIncrement
	}
	now := r.clock.Now().UTC()
	l.CreatedAt = now
	l.UpdatedAt = now
	l.Version = 1
	r.listings[l.ID] = copyListing(l)
	return nil
}

func (r *ListingRepo) GetByID(_ context.Context, id string) (*store.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.listings[id]
	if !ok {
		return nil, store.ErrListingNotFound
	}
	return copyListing(l), nil
}

func (r *ListingRepo) ListActiveAuctions(_ context.Context) ([]store.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []store.Listing
	for _, l := range r.listings {
		if l.Status == store.StatusActive && l.Auction != nil {
			result = append(result, *copyListing(l))
		}
	}
	return result, nil
}

func (r *ListingRepo) Update(_ context.Context, l *store.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.listings[l.ID]
	if !ok {
		return store.ErrListingNotFound
	}
	if existing.Version != l.Version {
		return store.ErrVersionConflict
	}
	l.Version++
	r.listings[l.ID] = copyListing(l)
	return nil
}

// copyListing deep-copies a listing so callers never alias stored state.
func copyListing(l *store.Listing) *store.Listing {
	out := *l
	if l.Auction != nil {
		a := *l.Auction
		a.Bids = append(store.BidList(nil), l.Auction.Bids...)
		if l.Auction.ReservePrice != nil {
			rp := *l.Auction.ReservePrice
			a.ReservePrice = &rp
		}
		if l.Auction.BuyNowPrice != nil {
			bn := *l.Auction.BuyNowPrice
			a.BuyNowPrice = &bn
		}
		if l.Auction.WinnerID != nil {
			w := *l.Auction.WinnerID
			a.WinnerID = &w
		}
		out.Auction = &a
	}
	return &out
}
