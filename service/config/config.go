package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/rafflebandz/service/algorand"
)

// Defaults for the Bandz collection.
const (
	DefaultIndexerURL = "https://mainnet-idx.algonode.cloud"
	// DefaultIssuerAddress is the Bandz creator wallet, seeded with each asset's supply.
	DefaultIssuerAddress = "7JKOXWOLN4RYBKVVGX6SSMRIQZJZDVCGOTI4LCPPCE2G44DXXXQ4HZM5YM"
	// DefaultExcludedAddresses is the raffle contract, which never holds tickets.
	DefaultExcludedAddresses = "NH3NJYG2NRIXTVCYB2HGBBJT5R3QG5ZMV6EHEZPGEDWW2PKBFQ5ZY7FIGI"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	LogLevel string

	// Indexer configuration
	IndexerURL       string
	IndexerAPIToken  string
	IndexerPageLimit int
	IndexerTimeout   time.Duration

	// Snapshot configuration
	IssuerAddress     string
	ExcludedAddresses []string
	MaxSlots          int64
	AssetConcurrency  int

	// Report configuration
	SnapshotDir  string
	ReportPrefix string

	// Optional sinks; empty disables them
	DatabaseURL    string
	NATSURL        string
	PushgatewayURL string

	// Temporal configuration
	TemporalHost      string
	TemporalNamespace string
	TemporalTaskQueue string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Indexer configuration
	cfg.IndexerURL = getEnvOrDefault("INDEXER_URL", DefaultIndexerURL)
	cfg.IndexerAPIToken = os.Getenv("INDEXER_API_TOKEN")

	pageLimit, err := parseInt("INDEXER_PAGE_LIMIT", 0)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.IndexerPageLimit = pageLimit
	}

	timeout, err := parseDuration("INDEXER_TIMEOUT", "0s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.IndexerTimeout = timeout
	}

	// Snapshot configuration
	cfg.IssuerAddress = getEnvOrDefault("ISSUER_ADDRESS", DefaultIssuerAddress)
	cfg.ExcludedAddresses = splitList(getEnvOrDefault("EXCLUDED_ADDRESSES", DefaultExcludedAddresses))

	maxSlots, err := parseInt("MAX_SLOTS", 10_000_000)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MaxSlots = int64(maxSlots)
	}

	concurrency, err := parseInt("ASSET_CONCURRENCY", 4)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.AssetConcurrency = concurrency
	}

	// Report configuration
	cfg.SnapshotDir = getEnvOrDefault("SNAPSHOT_DIR", "archive/snapshots")
	cfg.ReportPrefix = getEnvOrDefault("REPORT_PREFIX", "rafflebandz")

	// Optional sinks
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.PushgatewayURL = os.Getenv("PUSHGATEWAY_URL")

	// Temporal configuration
	cfg.TemporalHost = getEnvOrDefault("TEMPORAL_HOST", "localhost:7233")
	cfg.TemporalNamespace = getEnvOrDefault("TEMPORAL_NAMESPACE", "default")
	cfg.TemporalTaskQueue = getEnvOrDefault("TEMPORAL_TASK_QUEUE", "rafflebandz-snapshots")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.IndexerURL == "" {
		errs = append(errs, fmt.Errorf("IndexerURL is required"))
	} else if u, err := url.Parse(c.IndexerURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("IndexerURL %q is not an absolute URL", c.IndexerURL))
	}

	if c.IndexerPageLimit < 0 {
		errs = append(errs, fmt.Errorf("IndexerPageLimit cannot be negative"))
	}

	if c.IndexerTimeout < 0 {
		errs = append(errs, fmt.Errorf("IndexerTimeout cannot be negative"))
	}

	if c.IssuerAddress != "" && !algorand.ValidAddress(c.IssuerAddress) {
		errs = append(errs, fmt.Errorf("IssuerAddress %q is not a valid Algorand address", c.IssuerAddress))
	}

	for _, addr := range c.ExcludedAddresses {
		if !algorand.ValidAddress(addr) {
			errs = append(errs, fmt.Errorf("excluded address %q is not a valid Algorand address", addr))
		}
	}

	if c.MaxSlots <= 0 {
		errs = append(errs, fmt.Errorf("MaxSlots must be positive"))
	}

	if c.AssetConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("AssetConcurrency must be positive"))
	}

	if c.SnapshotDir == "" {
		errs = append(errs, fmt.Errorf("SnapshotDir is required"))
	}

	if c.ReportPrefix == "" {
		errs = append(errs, fmt.Errorf("ReportPrefix is required"))
	}

	if c.TemporalHost == "" {
		errs = append(errs, fmt.Errorf("TemporalHost is required"))
	}

	if c.TemporalNamespace == "" {
		errs = append(errs, fmt.Errorf("TemporalNamespace is required"))
	}

	if c.TemporalTaskQueue == "" {
		errs = append(errs, fmt.Errorf("TemporalTaskQueue is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// splitList splits a comma-separated list, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
