// Package memstore provides an in-memory store.Driver used by demo mode and
// tests. It mirrors the semantics of the Postgres driver, including the
// version guard on updates, so engine behavior is identical across drivers.
package memstore

import (
	"context"

	"github.com/mkrogh/marketplace-auction/internal/clock"
	"github.com/mkrogh/marketplace-auction/internal/config"
	"github.com/mkrogh/marketplace-auction/internal/store"
)

func init() {
	store.Register("memory", openMemory)
}

// closerFunc adapts a func() error into an io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openMemory is the store.Driver for the "memory" backend.
func openMemory(_ context.Context, cfg *config.Config, clk clock.Clock) (*store.Repositories, error) {
	return &store.Repositories{
		Listings: NewListingRepo(clk, cfg.Auction.BidIncrementDefault()),
		Events:   NewEventStore(clk),
		Closer:   closerFunc(func() error { return nil }),
		Ping:     func(context.Context) error { return nil },
	}, nil
}
