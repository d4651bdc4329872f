package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/brojonat/rafflebandz/service/archive"
	"github.com/brojonat/rafflebandz/service/config"
	"github.com/brojonat/rafflebandz/service/db"
	"github.com/brojonat/rafflebandz/service/metrics"
	natspkg "github.com/brojonat/rafflebandz/service/nats"
	"github.com/brojonat/rafflebandz/service/report"
	"github.com/brojonat/rafflebandz/service/slots"
	"github.com/brojonat/rafflebandz/service/snapshot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Snapshot asset holders and write the raffle reports",
		Description: `With a single asset, writes the holder roster, the sequential slot table and
the shuffled slot table. With several assets, writes the holder totals across all of them.

Exits with status 1 when any asset failed, after writing what succeeded.`,
		Flags: append([]cli.Flag{
			&cli.Uint64SliceFlag{
				Name:     "asset-id",
				Aliases:  []string{"a"},
				Usage:    "Asset to snapshot (repeatable)",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Drop negative balances instead of failing the asset",
			},
			&cli.StringFlag{
				Name:  "seed",
				Usage: "Shuffle seed: 64 hex characters, or any phrase (hashed). Random when unset",
			},
			&cli.StringSliceFlag{
				Name:  "exclude",
				Usage: "Address that never receives slots (repeatable; replaces EXCLUDED_ADDRESSES)",
			},
			&cli.StringFlag{
				Name:  "issuer",
				Usage: "Address seeded with the asset supply (overrides ISSUER_ADDRESS)",
			},
			&cli.BoolFlag{
				Name:  "use-creator",
				Usage: "Seed each asset's supply to its creator instead of a fixed issuer",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Report root directory (overrides SNAPSHOT_DIR)",
			},
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "Report file name prefix (overrides REPORT_PREFIX)",
			},
			&cli.Int64Flag{
				Name:  "max-slots",
				Usage: "Maximum slots per allocation (overrides MAX_SLOTS)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Assets processed at once (overrides ASSET_CONCURRENCY)",
			},
			&cli.BoolFlag{
				Name:  "allow-partial",
				Usage: "Exit 0 even when some assets failed",
			},
		}, outputFlags()...),
		Action: runSnapshot,
	}
}

// applySnapshotFlags overrides cfg with the snapshot command's flags and revalidates it.
func applySnapshotFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("issuer") {
		cfg.IssuerAddress = c.String("issuer")
	}
	if c.Bool("use-creator") {
		cfg.IssuerAddress = ""
	}
	if c.IsSet("exclude") {
		cfg.ExcludedAddresses = nil
		for _, addr := range c.StringSlice("exclude") {
			if addr = strings.TrimSpace(addr); addr != "" {
				cfg.ExcludedAddresses = append(cfg.ExcludedAddresses, addr)
			}
		}
	}
	if c.IsSet("out") {
		cfg.SnapshotDir = c.String("out")
	}
	if c.IsSet("prefix") {
		cfg.ReportPrefix = c.String("prefix")
	}
	if c.IsSet("max-slots") {
		cfg.MaxSlots = c.Int64("max-slots")
	}
	if c.IsSet("concurrency") {
		cfg.AssetConcurrency = c.Int("concurrency")
	}
	return cfg.Validate()
}

// snapshotSeed parses --seed, or draws a fresh seed when it is unset.
func snapshotSeed(c *cli.Context) (slots.Seed, error) {
	if !c.IsSet("seed") {
		return slots.RandomSeed()
	}
	seed, err := slots.ParseSeed(c.String("seed"))
	if err != nil {
		return slots.Seed{}, fmt.Errorf("invalid --seed: %w", err)
	}
	return seed, nil
}

func runSnapshot(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := applySnapshotFlags(c, cfg); err != nil {
		return err
	}

	logger := setupLogger(cfg.LogLevel)
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	assetIDs := c.Uint64Slice("asset-id")
	seed, err := snapshotSeed(c)
	if err != nil {
		return err
	}

	logger.Info("snapshot started",
		"asset_ids", assetIDs,
		"force", c.Bool("force"),
		"issuer", cfg.IssuerAddress,
		"excluded", cfg.ExcludedAddresses,
		"out", cfg.SnapshotDir,
		"prefix", cfg.ReportPrefix,
		"seed", seed.String(),
	)

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	store, publisher, closeSinks, err := openSinks(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer closeSinks()

	svc := snapshot.NewService(newIndexerClient(cfg, logger, m), snapshot.Config{
		Issuer:      cfg.IssuerAddress,
		Excluded:    cfg.ExcludedAddresses,
		Force:       c.Bool("force"),
		Concurrency: cfg.AssetConcurrency,
	}, logger, m)
	summary := svc.RunAssets(ctx, assetIDs)

	writer := report.NewWriter(cfg.SnapshotDir, cfg.ReportPrefix, logger, m)
	archiver := archive.NewArchiver(writer, slots.NewAllocator(cfg.MaxSlots), store, publisher, logger)
	outcome, archiveErr := archiver.Archive(ctx, summary, seed)

	if cfg.PushgatewayURL != "" {
		if err := metrics.Push(ctx, cfg.PushgatewayURL, "rafflebandz_snapshot", registry); err != nil {
			logger.Warn("failed to push metrics", "error", err)
		}
	}

	if c.Bool("json") {
		if err := outputJSON(outcome); err != nil {
			return err
		}
	} else {
		printOutcome(outcome)
	}

	if archiveErr != nil {
		return fmt.Errorf("failed to archive snapshot: %w", archiveErr)
	}

	logger.Info("snapshot completed",
		"succeeded", len(summary.Succeeded()),
		"failed", len(summary.Failed()),
	)

	if err := summary.Err(); err != nil {
		if c.Bool("allow-partial") {
			logger.Warn("snapshot finished with failed assets", "error", err)
			return nil
		}
		return cli.Exit(err.Error(), 1)
	}
	return nil
}

// openSinks connects the optional Postgres store and NATS publisher. Unconfigured
// sinks are returned as nil interfaces.
func openSinks(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) (archive.Store, natspkg.Publisher, func(), error) {
	var (
		store     archive.Store
		publisher natspkg.Publisher
		closers   []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		closers = append(closers, pool.Close)

		if err := pool.Ping(ctx); err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("failed to ping database: %w", err)
		}
		s := db.NewStore(pool, m)
		if err := s.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, nil, err
		}
		store = s
		logger.Info("connected to database")
	}

	if cfg.NATSURL != "" {
		p, err := natspkg.NewPublisher(cfg.NATSURL, logger, m)
		if err != nil {
			closeAll()
			return nil, nil, nil, fmt.Errorf("failed to create NATS publisher: %w", err)
		}
		closers = append(closers, func() {
			if err := p.Close(); err != nil {
				logger.Warn("failed to close NATS publisher", "error", err)
			}
		})
		publisher = p
		logger.Info("connected to NATS", "url", cfg.NATSURL)
	}

	return store, publisher, closeAll, nil
}

func printOutcome(outcome *archive.Outcome) {
	if outcome == nil {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ASSET\tSTATUS\tFILES\tERROR")
	for _, rec := range outcome.Assets {
		files := "-"
		if rec.Files != nil {
			files = rec.Files.Snapshot
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", rec.AssetID, rec.Status, files, rec.Error)
	}
	w.Flush()

	if outcome.HolderTotals != "" {
		fmt.Printf("\nHolder totals: %s\n", outcome.HolderTotals)
	}
	fmt.Fprintf(os.Stderr, "\nSeed: %s\n", outcome.Seed)
}
