package auction

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkrogh/marketplace-auction/internal/store"
)

// Rejection reasons returned by bid operations. All of them are expected,
// recoverable, user-facing conditions.
var (
	ErrAuctionNotActive  = errors.New("auction is not active")
	ErrBidTooLow         = errors.New("bid is below minimum")
	ErrSelfOutbid        = errors.New("you are already the highest bidder")
	ErrBuyNowUnavailable = errors.New("listing has no buy now price")
)

// BidTooLowError carries the lowest acceptable amount so callers can render
// a precise message. It matches ErrBidTooLow under errors.Is.
type BidTooLowError struct {
	Minimum decimal.Decimal
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("bid is below minimum %s", e.Minimum)
}

// Is makes errors.Is(err, ErrBidTooLow) succeed.
func (e *BidTooLowError) Is(target error) bool { return target == ErrBidTooLow }

// Validate decides whether bidderID may bid amount on the listing at instant
// now. It is a pure function of its inputs: no side effects, no store access.
//
// The engine calls it again under the listing lock with the latest state, so
// a decision made against a stale snapshot is never applied.
func Validate(l *store.Listing, bidderID string, amount decimal.Decimal, now time.Time) error {
	a := l.Auction
	if a == nil || l.Status != store.StatusActive {
		return ErrAuctionNotActive
	}
	if now.Before(a.StartsAt) || a.Ended(now) {
		return ErrAuctionNotActive
	}
	if leader := a.Leader(); leader != nil && leader.BidderID == bidderID {
		return ErrSelfOutbid
	}
	if min := a.MinimumBid(); amount.LessThan(min) {
		return &BidTooLowError{Minimum: min}
	}
	return nil
}
