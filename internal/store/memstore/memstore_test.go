package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkrogh/marketplace-auction/internal/clock"
	"github.com/mkrogh/marketplace-auction/internal/event"
	"github.com/mkrogh/marketplace-auction/internal/store"
	"github.com/mkrogh/marketplace-auction/internal/store/memstore"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newListing() *store.Listing {
	return &store.Listing{
		Title:    "Vintage road bike",
		SellerID: "seller-1",
		Auction: &store.Auction{
			StartsAt:     testNow,
			EndsAt:       testNow.Add(time.Hour),
			StartingBid:  decimal.NewFromInt(50),
			CurrentBid:   decimal.NewFromInt(50),
			BidIncrement: decimal.NewFromInt(5),
		},
	}
}

func TestListingRepo_CreateAndGet(t *testing.T) {
	repo := memstore.NewListingRepo(clock.NewMock(testNow), decimal.NewFromInt(1))
	l := newListing()

	if err := repo.Create(context.Background(), l); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if l.ID == "" {
		t.Fatal("Create() did not assign an id")
	}
	if l.Status != store.StatusActive || l.Version != 1 {
		t.Errorf("created listing status=%q version=%d, want active/1", l.Status, l.Version)
	}

	got, err := repo.GetByID(context.Background(), l.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != l.Title || !got.CreatedAt.Equal(testNow) {
		t.Errorf("got = %+v, want stored listing", got)
	}
}

func TestListingRepo_Create_DefaultIncrement(t *testing.T) {
	repo := memstore.NewListingRepo(clock.NewMock(testNow), decimal.NewFromInt(2))

	l := newListing()
	l.Auction.BidIncrement = decimal.Decimal{}
	if err := repo.Create(context.Background(), l); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(context.Background(), l.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.Auction.BidIncrement.Equal(decimal.NewFromInt(2)) {
		t.Errorf("bid increment = %s, want repo default 2", got.Auction.BidIncrement)
	}
}

func TestListingRepo_GetByID_NotFound(t *testing.T) {
	repo := memstore.NewListingRepo(clock.NewMock(testNow), decimal.NewFromInt(1))
	if _, err := repo.GetByID(context.Background(), "nope"); !errors.Is(err, store.ErrListingNotFound) {
		t.Errorf("GetByID() error = %v, want ErrListingNotFound", err)
	}
}

func TestListingRepo_ReadsAreCopies(t *testing.T) {
	repo := memstore.NewListingRepo(clock.NewMock(testNow), decimal.NewFromInt(1))
	l := newListing()
	if err := repo.Create(context.Background(), l); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	first, _ := repo.GetByID(context.Background(), l.ID)
	first.Auction.Bids = append(first.Auction.Bids, store.Bid{BidderID: "u1", Amount: decimal.NewFromInt(50)})
	first.Auction.CurrentBid = decimal.NewFromInt(999)

	second, _ := repo.GetByID(context.Background(), l.ID)
	if len(second.Auction.Bids) != 0 {
		t.Error("mutating a returned listing leaked into the store")
	}
	if !second.Auction.CurrentBid.Equal(decimal.NewFromInt(50)) {
		t.Errorf("stored current bid = %s, want 50", second.Auction.CurrentBid)
	}
}

func TestListingRepo_Update_VersionConflict(t *testing.T) {
	repo := memstore.NewListingRepo(clock.NewMock(testNow), decimal.NewFromInt(1))
	l := newListing()
	if err := repo.Create(context.Background(), l); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	a, _ := repo.GetByID(context.Background(), l.ID)
	b, _ := repo.GetByID(context.Background(), l.ID)

	a.Auction.CurrentBid = decimal.NewFromInt(55)
	if err := repo.Update(context.Background(), a); err != nil {
		t.Fatalf("first Update() error = %v", err)
	}
	if a.Version != 2 {
		t.Errorf("version after update = %d, want 2", a.Version)
	}

	b.Auction.CurrentBid = decimal.NewFromInt(60)
	if err := repo.Update(context.Background(), b); !errors.Is(err, store.ErrVersionConflict) {
		t.Errorf("stale Update() error = %v, want ErrVersionConflict", err)
	}

	// The stale write must not have clobbered the first.
	got, _ := repo.GetByID(context.Background(), l.ID)
	if !got.Auction.CurrentBid.Equal(decimal.NewFromInt(55)) {
		t.Errorf("current bid = %s, want 55", got.Auction.CurrentBid)
	}
}

func TestListingRepo_ListActiveAuctions(t *testing.T) {
	repo := memstore.NewListingRepo(clock.NewMock(testNow), decimal.NewFromInt(1))

	active := newListing()
	if err := repo.Create(context.Background(), active); err != nil {
		t.Fatal(err)
	}

	settled := newListing()
	if err := repo.Create(context.Background(), settled); err != nil {
		t.Fatal(err)
	}
	settled.Status = store.StatusExpired
	if err := repo.Update(context.Background(), settled); err != nil {
		t.Fatal(err)
	}

	noAuction := &store.Listing{Title: "Fixed price lamp", SellerID: "seller-2"}
	if err := repo.Create(context.Background(), noAuction); err != nil {
		t.Fatal(err)
	}

	got, err := repo.ListActiveAuctions(context.Background())
	if err != nil {
		t.Fatalf("ListActiveAuctions() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != active.ID {
		t.Errorf("ListActiveAuctions() = %d listings, want only the active auction", len(got))
	}
}

func TestEventStore_AppendAndLoad(t *testing.T) {
	s := memstore.NewEventStore(clock.NewMock(testNow))

	err := s.Append(context.Background(),
		event.Event{Type: event.AuctionBidPlaced, AggregateID: "l1"},
		event.Event{Type: event.AuctionSettled, AggregateID: "l1"},
		event.Event{Type: event.AuctionBidPlaced, AggregateID: "l2"},
	)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	byAggregate, err := s.Load(context.Background(), "l1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(byAggregate) != 2 {
		t.Errorf("Load(l1) = %d events, want 2", len(byAggregate))
	}
	for _, e := range byAggregate {
		if e.ID == "" || !e.CreatedAt.Equal(testNow) {
			t.Errorf("event %+v missing id or timestamp", e)
		}
	}

	byType, err := s.LoadByType(context.Background(), event.AuctionBidPlaced)
	if err != nil {
		t.Fatalf("LoadByType() error = %v", err)
	}
	if len(byType) != 2 {
		t.Errorf("LoadByType(bid placed) = %d events, want 2", len(byType))
	}
}
