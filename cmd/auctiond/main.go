package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mkrogh/marketplace-auction/internal/auction"
	"github.com/mkrogh/marketplace-auction/internal/clock"
	"github.com/mkrogh/marketplace-auction/internal/config"
	"github.com/mkrogh/marketplace-auction/internal/health"
	"github.com/mkrogh/marketplace-auction/internal/leader"
	"github.com/mkrogh/marketplace-auction/internal/notify"
	"github.com/mkrogh/marketplace-auction/internal/store"
	"github.com/mkrogh/marketplace-auction/internal/telemetry"

	// Register store drivers so they are available via store.Open.
	_ "github.com/mkrogh/marketplace-auction/internal/store/memstore"
	_ "github.com/mkrogh/marketplace-auction/internal/store/postgres"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	demo := flag.Bool("demo", false, "seed demo auction listings on startup")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := run(*configPath, *demo); err != nil {
		slog.Error("fatal error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string, demo bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load configuration.
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup telemetry.
	tp, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		slog.Warn("telemetry setup failed, continuing without OTEL export", slog.Any("error", err))
		tp = telemetry.NewNopProvider()
	}
	defer func() {
		if shutdownErr := tp.Shutdown(context.Background()); shutdownErr != nil {
			slog.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	logger := tp.Logger
	clk := clock.Real{}

	// Open the listing store using the configured driver.
	repos, err := store.Open(ctx, cfg, clk)
	if err != nil {
		return fmt.Errorf("opening store (driver=%s): %w", cfg.Database.Driver, err)
	}
	defer repos.Closer.Close()

	logger.InfoContext(ctx, "connected to listing store", slog.String("driver", cfg.Database.Driver))

	notifier := notify.NewLogNotifier(logger)
	engine := auction.NewEngine(repos.Listings, repos.Events, notifier, logger, tp.TracerProvider, clk)

	if cfg.Auction.Simulator.Enabled {
		sim := auction.NewSimulator(engine, repos.Listings, cfg.Auction.Simulator, logger)
		engine.OnBidAccepted(sim.OnBidAccepted)
		defer sim.Close()
		logger.InfoContext(ctx, "competing-bid simulator enabled",
			slog.Duration("min_delay", cfg.Auction.Simulator.MinDelay),
			slog.Duration("max_delay", cfg.Auction.Simulator.MaxDelay),
		)
	}

	if demo {
		if seedErr := seedDemoListings(ctx, engine, clk); seedErr != nil {
			return fmt.Errorf("seeding demo listings: %w", seedErr)
		}
		logger.InfoContext(ctx, "demo listings seeded")
	}

	// Setup health checks.
	healthHandler := health.NewHandler(clk,
		health.Checker{
			Name:  "database",
			Check: repos.Ping,
		},
	)

	// Health endpoints run on all replicas.
	mux := http.NewServeMux()
	healthHandler.Register(mux)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoContext(ctx, "starting health server", slog.Int("port", cfg.Server.Port))
		if listenErr := httpServer.ListenAndServe(); listenErr != nil && listenErr != http.ErrServerClosed {
			logger.ErrorContext(ctx, "health server error", slog.Any("error", listenErr))
		}
	}()

	sweeper := auction.NewSweeper(engine, cfg.Auction.SweepInterval, logger)

	// runSweeper is the core work that only the leader should run.
	runSweeper := func(ctx context.Context) {
		healthHandler.SetReady(true)
		logger.InfoContext(ctx, "auctiond is running", slog.String("version", version))

		sweeper.Run(ctx)

		healthHandler.SetReady(false)
	}

	if cfg.LeaderElection.Enabled {
		logger.InfoContext(ctx, "leader election enabled, waiting for leadership...")

		if leaderErr := leader.Run(ctx, cfg.LeaderElection, logger, runSweeper, func() {
			logger.Info("lost leadership, shutting down...")
			cancel()
		}); leaderErr != nil {
			return fmt.Errorf("leader election: %w", leaderErr)
		}
	} else {
		// No leader election — sweep directly until shutdown.
		runSweeper(ctx)
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", slog.Any("error", err))
	}

	logger.Info("shutdown complete")
	return nil
}

// seedDemoListings creates a few auction listings and opens the bidding so
// the simulator has activity to react to.
func seedDemoListings(ctx context.Context, engine *auction.Engine, clk clock.Clock) error {
	now := clk.Now()
	reserve := decimal.NewFromInt(100)
	buyNow := decimal.NewFromInt(400)

	demos := []*store.Listing{
		{
			Title:    "Vintage road bike",
			SellerID: "demo-seller",
			Auction: &store.Auction{
				StartsAt:     now,
				EndsAt:       now.Add(5 * time.Minute),
				StartingBid:  decimal.NewFromInt(50),
				CurrentBid:   decimal.NewFromInt(50),
				BidIncrement: decimal.NewFromInt(5),
			},
		},
		{
			Title:    "Mid-century armchair",
			SellerID: "demo-seller",
			Auction: &store.Auction{
				StartsAt:     now,
				EndsAt:       now.Add(10 * time.Minute),
				StartingBid:  decimal.NewFromInt(80),
				CurrentBid:   decimal.NewFromInt(80),
				BidIncrement: decimal.NewFromInt(10),
				ReservePrice: &reserve,
				BuyNowPrice:  &buyNow,
			},
		},
	}

	for _, l := range demos {
		if err := engine.OpenAuction(ctx, l); err != nil {
			return err
		}
		// An opening bid from a demo user kicks off the simulator.
		if _, err := engine.PlaceBid(ctx, l.ID, "demo-user", l.Auction.StartingBid); err != nil {
			return err
		}
	}
	return nil
}
