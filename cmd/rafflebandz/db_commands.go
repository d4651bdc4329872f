package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brojonat/rafflebandz/service/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func listSnapshotsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-snapshots",
		Usage:   "List stored snapshot runs, newest first",
		Aliases: []string{"ls"},
		Flags: append([]cli.Flag{
			&cli.Uint64Flag{
				Name:    "asset-id",
				Aliases: []string{"a"},
				Usage:   "Only list runs of this asset",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   50,
				Usage:   "Maximum number of runs to list",
			},
		}, outputFlags()...),
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			params := db.ListSnapshotsParams{Limit: int32(c.Int("limit"))}
			if c.IsSet("asset-id") {
				id := c.Uint64("asset-id")
				params.AssetID = &id
			}

			snapshots, err := store.ListSnapshots(context.Background(), params)
			if err != nil {
				return fmt.Errorf("failed to list snapshots: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(snapshots)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tASSET\tUNIT\tHOLDERS\tTOTAL HELD\tISSUER RESIDUAL\tCREATED")
			for _, s := range snapshots {
				fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%d\t%d\t%s\n",
					s.ID,
					s.AssetID,
					s.UnitName,
					s.HolderCount,
					s.TotalHeld,
					s.IssuerResidual,
					s.CreatedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d snapshots\n", len(snapshots))
			return nil
		},
	}
}

func getSnapshotCommand() *cli.Command {
	return &cli.Command{
		Name:      "get-snapshot",
		Usage:     "Show a stored snapshot run and its holders",
		Aliases:   []string{"get"},
		ArgsUsage: "<run-id>",
		Flags:     outputFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: snapshot run ID")
			}
			id, err := uuid.Parse(c.Args().First())
			if err != nil {
				return fmt.Errorf("invalid snapshot run ID %q: %w", c.Args().First(), err)
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			ctx := context.Background()
			snap, err := store.GetSnapshot(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get snapshot: %w", err)
			}
			holders, err := store.GetSnapshotHolders(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to get snapshot holders: %w", err)
			}

			if c.Bool("json") {
				return outputJSON(struct {
					*db.Snapshot
					Holders []db.SnapshotHolder `json:"holders"`
				}{snap, holders})
			}

			fmt.Printf("ID:              %s\n", snap.ID)
			fmt.Printf("Asset:           %d (%s / %s)\n", snap.AssetID, snap.AssetName, snap.UnitName)
			fmt.Printf("Issuer:          %s\n", snap.Issuer)
			fmt.Printf("Supply:          %d\n", snap.Supply)
			fmt.Printf("Transfers:       %d\n", snap.Transfers)
			fmt.Printf("Issuer Residual: %d\n", snap.IssuerResidual)
			if snap.Seed != "" {
				fmt.Printf("Seed:            %s\n", snap.Seed)
			}
			fmt.Printf("Created:         %s\n", snap.CreatedAt.Format(time.RFC3339))
			fmt.Println()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tADDRESS\tBALANCE")
			for _, h := range holders {
				fmt.Fprintf(w, "%d\t%s\t%d\n", h.Position, h.Address, h.Balance)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d holders\n", len(holders))
			return nil
		},
	}
}

func getStore(c *cli.Context) (*db.Store, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db.NewStore(pool, nil), pool.Close, nil
}
