package store

import (
	"context"
	"fmt"
	"io"

	"github.com/mkrogh/marketplace-auction/internal/clock"
	"github.com/mkrogh/marketplace-auction/internal/config"
	"github.com/mkrogh/marketplace-auction/internal/event"
)

// Repositories groups the repository implementations returned by a store driver.
type Repositories struct {
	Listings ListingRepository
	Events   event.Store
	// Closer is called to release underlying resources (e.g. DB connection).
	Closer io.Closer
	// Ping checks the underlying connection health.
	Ping func(ctx context.Context) error
}

// Driver is a function that opens a connection and returns Repositories.
// Drivers receive the full configuration: the database section selects and
// connects the backend, the auction section supplies creation defaults.
type Driver func(ctx context.Context, cfg *config.Config, clk clock.Clock) (*Repositories, error)

// registry maps driver names to their factory functions.
var registry = map[string]Driver{}

// Register adds a named driver to the global registry.
// It is intended to be called from init() in each driver package.
func Register(name string, d Driver) {
	registry[name] = d
}

// Open selects the driver specified in cfg.Database.Driver and returns
// Repositories.
func Open(ctx context.Context, cfg *config.Config, clk clock.Clock) (*Repositories, error) {
	d, ok := registry[cfg.Database.Driver]
	if !ok {
		return nil, fmt.Errorf("unknown store driver %q (registered: %v)", cfg.Database.Driver, registeredNames())
	}
	return d(ctx, cfg, clk)
}

func registeredNames() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	return names
}
