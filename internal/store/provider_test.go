package store_test

import (
	"context"
	"testing"

	"github.com/mkrogh/marketplace-auction/internal/clock"
	"github.com/mkrogh/marketplace-auction/internal/config"
	"github.com/mkrogh/marketplace-auction/internal/store"

	_ "github.com/mkrogh/marketplace-auction/internal/store/memstore"
)

func driverConfig(driver string) *config.Config {
	cfg := config.Defaults()
	cfg.Database.Driver = driver
	return cfg
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := store.Open(context.Background(), driverConfig("bogus"), clock.Real{})
	if err == nil {
		t.Fatal("Open() with unknown driver succeeded, want error")
	}
}

func TestOpen_Memory(t *testing.T) {
	repos, err := store.Open(context.Background(), driverConfig("memory"), clock.Real{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer repos.Closer.Close()

	if repos.Listings == nil || repos.Events == nil {
		t.Error("memory driver returned nil repositories")
	}
	if err := repos.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}

func TestRegister_CustomDriver(t *testing.T) {
	called := false
	store.Register("test-driver", func(ctx context.Context, cfg *config.Config, clk clock.Clock) (*store.Repositories, error) {
		called = true
		return &store.Repositories{}, nil
	})

	if _, err := store.Open(context.Background(), driverConfig("test-driver"), clock.Real{}); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if !called {
		t.Error("registered driver was not invoked")
	}
}
