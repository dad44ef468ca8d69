package event

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Type identifies an event kind.
type Type string

const (
	AuctionOpened    Type = "auction.opened"
	AuctionBidPlaced Type = "auction.bid_placed"
	AuctionBuyNow    Type = "auction.buy_now"
	AuctionSettled   Type = "auction.settled"
)

// Event represents a single domain event.
type Event struct {
	ID          string          `json:"id" db:"id"`
	AggregateID string          `json:"aggregate_id" db:"aggregate_id"`
	Type        Type            `json:"type" db:"type"`
	Data        json.RawMessage `json:"data" db:"data"`
	Version     int             `json:"version" db:"version"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// AuctionOpenedData is the payload for AuctionOpened events.
type AuctionOpenedData struct {
	SellerID     string          `json:"seller_id"`
	StartingBid  decimal.Decimal `json:"starting_bid"`
	BidIncrement decimal.Decimal `json:"bid_increment"`
	EndsAt       time.Time       `json:"ends_at"`
}

// BidPlacedData is the payload for AuctionBidPlaced and AuctionBuyNow events.
type BidPlacedData struct {
	BidderID string          `json:"bidder_id"`
	Amount   decimal.Decimal `json:"amount"`
	// OutbidID is the bidder displaced by this bid, if any.
	OutbidID string `json:"outbid_id,omitempty"`
}

// AuctionSettledData is the payload for AuctionSettled events.
type AuctionSettledData struct {
	Status   string          `json:"status"`
	WinnerID string          `json:"winner_id,omitempty"`
	FinalBid decimal.Decimal `json:"final_bid"`
}
