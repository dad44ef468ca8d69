package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/mkrogh/marketplace-auction/internal/clock"
	"github.com/mkrogh/marketplace-auction/internal/store"
)

// ListingRepo implements store.ListingRepository with sqlx. Auction fields
// are flattened into listing columns; the bid history lives in a JSONB
// column so a listing mutation is always a single-row write.
type ListingRepo struct {
	db               *sqlx.DB
	clock            clock.Clock
	defaultIncrement decimal.Decimal
}

// NewListingRepo returns a new ListingRepo. Listings created with an auction
// but no bid increment get defaultIncrement.
func NewListingRepo(db *sqlx.DB, clk clock.Clock, defaultIncrement decimal.Decimal) *ListingRepo {
	return &ListingRepo{db: db, clock: clk, defaultIncrement: defaultIncrement}
}

// listingRow maps the listings table. Auction columns are nullable because
// the catalog also holds fixed-price listings without an auction.
type listingRow struct {
	ID              string           `db:"id"`
	Title           string           `db:"title"`
	SellerID        string           `db:"seller_id"`
	Status          string           `db:"status"`
	AuctionStartsAt *time.Time       `db:"auction_starts_at"`
	AuctionEndsAt   *time.Time       `db:"auction_ends_at"`
	StartingBid     *decimal.Decimal `db:"starting_bid"`
	CurrentBid      *decimal.Decimal `db:"current_bid"`
	BidIncrement    *decimal.Decimal `db:"bid_increment"`
	ReservePrice    *decimal.Decimal `db:"reserve_price"`
	BuyNowPrice     *decimal.Decimal `db:"buy_now_price"`
	Bids            store.BidList    `db:"bids"`
	WinnerID        *string          `db:"winner_id"`
	Version         int              `db:"version"`
	CreatedAt       time.Time        `db:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at"`
}

func (r listingRow) toDomain() *store.Listing {
	l := &store.Listing{
		ID:        r.ID,
		Title:     r.Title,
		SellerID:  r.SellerID,
		Status:    r.Status,
		Version:   r.Version,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.AuctionStartsAt != nil && r.AuctionEndsAt != nil {
		l.Auction = &store.Auction{
			StartsAt:     *r.AuctionStartsAt,
			EndsAt:       *r.AuctionEndsAt,
			Bids:         r.Bids,
			ReservePrice: r.ReservePrice,
			BuyNowPrice:  r.BuyNowPrice,
			WinnerID:     r.WinnerID,
		}
		if r.StartingBid != nil {
			l.Auction.StartingBid = *r.StartingBid
		}
		if r.CurrentBid != nil {
			l.Auction.CurrentBid = *r.CurrentBid
		}
		if r.BidIncrement != nil {
			l.Auction.BidIncrement = *r.BidIncrement
		}
	}
	return l
}

const listingColumns = `id, title, seller_id, status,
	auction_starts_at, auction_ends_at, starting_bid, current_bid,
	bid_increment, reserve_price, buy_now_price, bids, winner_id,
	version, created_at, updated_at`

func (r *ListingRepo) Create(ctx context.Context, l *store.Listing) error {
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

	query := `INSERT INTO listings (` + listingColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	var startsAt, endsAt *time.Time
	var startingBid, currentBid, increment, reserve, buyNow *decimal.Decimal
	var bids store.BidList
	var winnerID *string
	if a := l.Auction; a != nil {
		startsAt, endsAt = &a.StartsAt, &a.EndsAt
		startingBid, currentBid, increment = &a.StartingBid, &a.CurrentBid, &a.BidIncrement
		reserve, buyNow = a.ReservePrice, a.BuyNowPrice
		bids = a.Bids
		winnerID = a.WinnerID
	}

	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.Title, l.SellerID, l.Status,
		startsAt, endsAt, startingBid, currentBid,
		increment, reserve, buyNow, bids, winnerID,
		l.Version, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating listing: %w", err)
	}
	return nil
}

func (r *ListingRepo) GetByID(ctx context.Context, id string) (*store.Listing, error) {
	var row listingRow
	err := r.db.GetContext(ctx, &row,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting listing: %w", err)
	}
	return row.toDomain(), nil
}

func (r *ListingRepo) ListActiveAuctions(ctx context.Context) ([]store.Listing, error) {
	var rows []listingRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT `+listingColumns+` FROM listings
		 WHERE status = $1 AND auction_ends_at IS NOT NULL
		 ORDER BY auction_ends_at ASC`, store.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("listing active auctions: %w", err)
	}

	listings := make([]store.Listing, 0, len(rows))
	for _, row := range rows {
		listings = append(listings, *row.toDomain())
	}
	return listings, nil
}

func (r *ListingRepo) Update(ctx context.Context, l *store.Listing) error {
	a := l.Auction
	var (
		currentBid *decimal.Decimal
		bids       store.BidList
		winnerID   *string
	)
	if a != nil {
		currentBid = &a.CurrentBid
		bids = a.Bids
		winnerID = a.WinnerID
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE listings
		 SET status = $1, current_bid = $2, bids = $3, winner_id = $4,
		     version = version + 1, updated_at = $5
		 WHERE id = $6 AND version = $7`,
		l.Status, currentBid, bids, winnerID,
		r.clock.Now().UTC(), l.ID, l.Version,
	)
	if err != nil {
		return fmt.Errorf("updating listing: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return store.ErrVersionConflict
	}
	l.Version++
	return nil
}
