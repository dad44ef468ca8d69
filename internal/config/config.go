package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Database       DatabaseConfig       `yaml:"database"`
	Server         ServerConfig         `yaml:"server"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
	Auction        AuctionConfig        `yaml:"auction"`
}

// DatabaseConfig holds listing store connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Driver   string `yaml:"driver"` // "postgres" or "memory"
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// AuctionConfig holds auction engine settings.
type AuctionConfig struct {
	// SweepInterval is the period of the settlement sweep. It is the upper
	// bound on how long an expired auction can stay unsettled.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// DefaultBidIncrement is used for auctions created without an increment.
	DefaultBidIncrement float64 `yaml:"default_bid_increment"`
	// Simulator configures the demo competing-bid actor.
	Simulator SimulatorConfig `yaml:"simulator"`
}

// BidIncrementDefault returns DefaultBidIncrement as a decimal, falling back
// to 1 when the configuration left it unset.
func (a AuctionConfig) BidIncrementDefault() decimal.Decimal {
	if a.DefaultBidIncrement > 0 {
		return decimal.NewFromFloat(a.DefaultBidIncrement)
	}
	return decimal.NewFromInt(1)
}

// SimulatorConfig holds competing-bid simulator settings. The simulator is
// synthetic market activity for demos and must stay disabled in production.
type SimulatorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
	// Bidders are the synthetic participant ids the simulator bids as.
	Bidders []string `yaml:"bidders"`
}

// Load reads a YAML configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Driver:  "postgres",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "auctiond",
			ServiceVersion: "0.1.0",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "auctiond-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
		Auction: AuctionConfig{
			SweepInterval:       10 * time.Second,
			DefaultBidIncrement: 1,
			Simulator: SimulatorConfig{
				Enabled:  false,
				MinDelay: 5 * time.Second,
				MaxDelay: 15 * time.Second,
				Bidders:  []string{"sim-bidder-1", "sim-bidder-2", "sim-bidder-3"},
			},
		},
	}
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
		// valid
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"postgres\" or \"memory\"", c.Database.Driver)
	}
	if c.Auction.SweepInterval <= 0 {
		return fmt.Errorf("auction.sweep_interval must be positive, got %v", c.Auction.SweepInterval)
	}
	if c.Auction.DefaultBidIncrement <= 0 {
		return fmt.Errorf("auction.default_bid_increment must be positive, got %v", c.Auction.DefaultBidIncrement)
	}
	if sim := c.Auction.Simulator; sim.Enabled {
		if sim.MinDelay <= 0 || sim.MaxDelay < sim.MinDelay {
			return fmt.Errorf("auction.simulator delay range invalid: min=%v max=%v", sim.MinDelay, sim.MaxDelay)
		}
		if len(sim.Bidders) == 0 {
			return fmt.Errorf("auction.simulator.bidders must not be empty when the simulator is enabled")
		}
	}
	return nil
}
