package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Listing statuses. An auction is live only while its listing is active;
// once the status leaves active the auction record is immutable.
const (
	StatusActive      = "active"
	StatusSoldAuction = "sold_auction"
	StatusExpired     = "expired"
	StatusRemoved     = "removed"
)

// ErrListingNotFound is returned when a listing id does not exist.
var ErrListingNotFound = errors.New("listing not found")

// ErrVersionConflict is returned when an update races a concurrent write.
var ErrVersionConflict = errors.New("listing version conflict")

// Bid is a single accepted bid.
type Bid struct {
	BidderID string          `json:"bidder_id"`
	Amount   decimal.Decimal `json:"amount"`
	Time     time.Time       `json:"time"`
}

// BidList is a newest-first sequence of bids. The first element, if present,
// is the current highest bid. It is stored as a JSONB column.
type BidList []Bid

// Value implements driver.Valuer for JSONB storage.
func (b BidList) Value() (driver.Value, error) {
	if b == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(b)
}

// Scan implements sql.Scanner for JSONB storage.
func (b *BidList) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*b = nil
		return nil
	case []byte:
		return json.Unmarshal(v, b)
	case string:
		return json.Unmarshal([]byte(v), b)
	default:
		return fmt.Errorf("cannot scan %T into BidList", src)
	}
}

// Auction is the bidding sub-record attached to a listing.
type Auction struct {
	StartsAt     time.Time        `db:"auction_starts_at"`
	EndsAt       time.Time        `db:"auction_ends_at"`
	StartingBid  decimal.Decimal  `db:"starting_bid"`
	CurrentBid   decimal.Decimal  `db:"current_bid"`
	BidIncrement decimal.Decimal  `db:"bid_increment"`
	ReservePrice *decimal.Decimal `db:"reserve_price"`
	BuyNowPrice  *decimal.Decimal `db:"buy_now_price"`
	Bids         BidList          `db:"bids"`
	WinnerID     *string          `db:"winner_id"`
}

// Leader returns the current highest bid, or nil if there are none.
func (a *Auction) Leader() *Bid {
	if len(a.Bids) == 0 {
		return nil
	}
	return &a.Bids[0]
}

// MinimumBid returns the lowest amount the next bid must reach: the starting
// bid for a fresh auction, otherwise the current bid plus the increment.
func (a *Auction) MinimumBid() decimal.Decimal {
	if len(a.Bids) == 0 {
		return a.StartingBid
	}
	return a.CurrentBid.Add(a.BidIncrement)
}

// Ended reports whether the auction's end time has passed.
func (a *Auction) Ended(now time.Time) bool {
	return !now.Before(a.EndsAt)
}

// ReserveMet reports whether the reserve price (if any) has been reached.
func (a *Auction) ReserveMet() bool {
	return a.ReservePrice == nil || a.CurrentBid.GreaterThanOrEqual(*a.ReservePrice)
}

// Listing is the catalog record that embeds an auction. The catalog is the
// durable owner; the engine only applies atomic, invariant-preserving
// mutations and hands the record back.
type Listing struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	SellerID  string    `db:"seller_id"`
	Status    string    `db:"status"`
	Auction   *Auction  // flattened into listing columns by the drivers
	Version   int       `db:"version"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ListingRepository defines listing catalog persistence operations.
type ListingRepository interface {
	Create(ctx context.Context, l *Listing) error
	// GetByID returns ErrListingNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (*Listing, error)
	// ListActiveAuctions returns all active listings that carry an auction.
	ListActiveAuctions(ctx context.Context) ([]Listing, error)
	// Update persists a mutated listing, guarded by its version so a stale
	// write returns ErrVersionConflict instead of clobbering newer state.
	Update(ctx context.Context, l *Listing) error
}
