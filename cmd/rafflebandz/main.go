package main

import (
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/brojonat/rafflebandz/service/algorand"
	"github.com/brojonat/rafflebandz/service/config"
	"github.com/brojonat/rafflebandz/service/metrics"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "rafflebandz",
		Usage: "Algorand asset holder snapshots and raffle slot allocation",
		Description: `Replays the transfer history of one or more Algorand assets, derives the
current holders and writes raffle slot reports.

Use "snapshot" for a local run, or "temporal start-snapshot" to hand the run to a worker.`,
		Version:        fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		ExitErrHandler: func(c *cli.Context, err error) {},
		Commands: []*cli.Command{
			snapshotCommand(),
			transfersCommand(),
			assetCommand(),
			// Database inspection commands
			{
				Name:  "db",
				Usage: "Snapshot store inspection commands",
				Subcommands: []*cli.Command{
					listSnapshotsCommand(),
					getSnapshotCommand(),
				},
			},
			// Temporal commands
			{
				Name:  "temporal",
				Usage: "Temporal workflow commands",
				Subcommands: []*cli.Command{
					startSnapshotCommand(),
				},
			},
		},
		// Global flags available to all commands. Each overrides the matching
		// environment variable read by config.Load.
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "indexer-url",
				Usage: "Algorand indexer base URL (INDEXER_URL)",
			},
			&cli.StringFlag{
				Name:  "database-url",
				Usage: "Database connection URL (DATABASE_URL)",
			},
			&cli.StringFlag{
				Name:  "nats-url",
				Usage: "NATS server URL (NATS_URL)",
			},
			&cli.StringFlag{
				Name:  "pushgateway-url",
				Usage: "Prometheus Pushgateway URL (PUSHGATEWAY_URL)",
			},
			&cli.StringFlag{
				Name:  "temporal-host",
				Usage: "Temporal server address (TEMPORAL_HOST)",
			},
			&cli.StringFlag{
				Name:  "temporal-namespace",
				Usage: "Temporal namespace (TEMPORAL_NAMESPACE)",
			},
		},
	}
}

// outputFlags are the per-command verbosity and output format flags.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable debug logging",
		},
		&cli.BoolFlag{
			Name:    "json",
			Aliases: []string{"j"},
			Usage:   "Output in JSON format",
		},
	}
}

// loadConfig reads the environment configuration and applies the global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	overrides := map[string]*string{
		"indexer-url":        &cfg.IndexerURL,
		"database-url":       &cfg.DatabaseURL,
		"nats-url":           &cfg.NATSURL,
		"pushgateway-url":    &cfg.PushgatewayURL,
		"temporal-host":      &cfg.TemporalHost,
		"temporal-namespace": &cfg.TemporalNamespace,
	}
	for flag, dst := range overrides {
		if c.IsSet(flag) {
			*dst = c.String(flag)
		}
	}
	if c.Bool("verbose") {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newIndexerClient builds an indexer client from the configuration.
func newIndexerClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *algorand.Client {
	opts := []algorand.ClientOption{algorand.WithMetrics(m)}
	if cfg.IndexerAPIToken != "" {
		opts = append(opts, algorand.WithAPIToken(cfg.IndexerAPIToken))
	}
	if cfg.IndexerPageLimit > 0 {
		opts = append(opts, algorand.WithPageLimit(cfg.IndexerPageLimit))
	}
	if cfg.IndexerTimeout > 0 {
		opts = append(opts, algorand.WithHTTPClient(&http.Client{Timeout: cfg.IndexerTimeout}))
	}
	return algorand.NewClient(cfg.IndexerURL, logger, opts...)
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
