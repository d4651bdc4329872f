package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/brojonat/rafflebandz/service/algorand"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

func transfersCommand() *cli.Command {
	return &cli.Command{
		Name:    "transfers",
		Aliases: []string{"tx"},
		Usage:   "List the classified transfers of an asset",
		Description: `Fetches the asset's full transaction history and prints every record that
moves the asset. Each --must-jq filter runs against the transfer's JSON; a transfer is
printed only when all filters return a truthy value.

Examples:
  rafflebandz transfers -a 1234 --must-jq '.amount > 10'
  rafflebandz transfers -a 1234 --must-jq '.receiver == "ADDR..."' --json`,
		Flags: append([]cli.Flag{
			&cli.Uint64Flag{
				Name:     "asset-id",
				Aliases:  []string{"a"},
				Usage:    "Asset to inspect",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:  "must-jq",
				Usage: "jq filter every printed transfer must satisfy (repeatable)",
			},
		}, outputFlags()...),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			filters, err := compileFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			assetID := c.Uint64("asset-id")
			client := newIndexerClient(cfg, logger, nil)

			info, err := client.GetAssetInfo(c.Context, assetID)
			if err != nil {
				return fmt.Errorf("failed to get asset %d: %w", assetID, err)
			}
			transfers, err := client.Transfers(c.Context, assetID, info.MinRound())
			if err != nil {
				return fmt.Errorf("failed to get transfers of asset %d: %w", assetID, err)
			}

			matched := make([]algorand.Transfer, 0, len(transfers))
			for _, t := range transfers {
				ok, err := matchTransfer(t, filters)
				if err != nil {
					logger.Debug("jq filter error", "txid", t.TxID, "error", err)
					continue
				}
				if ok {
					matched = append(matched, t)
				}
			}

			if c.Bool("json") {
				return outputJSON(matched)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TXID\tSENDER\tRECEIVER\tAMOUNT")
			for _, t := range matched {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", t.TxID, t.Sender, t.Receiver, t.Amount)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d of %d transfers\n", len(matched), len(transfers))
			return nil
		},
	}
}

func assetCommand() *cli.Command {
	return &cli.Command{
		Name:  "asset",
		Usage: "Show an asset's parameters",
		Flags: append([]cli.Flag{
			&cli.Uint64Flag{
				Name:     "asset-id",
				Aliases:  []string{"a"},
				Usage:    "Asset to inspect",
				Required: true,
			},
		}, outputFlags()...),
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)

			assetID := c.Uint64("asset-id")
			info, err := newIndexerClient(cfg, logger, nil).GetAssetInfo(c.Context, assetID)
			if err != nil {
				return fmt.Errorf("failed to get asset %d: %w", assetID, err)
			}

			if c.Bool("json") {
				return outputJSON(info)
			}

			fmt.Printf("Asset ID:      %d\n", info.AssetID)
			fmt.Printf("Name:          %s\n", info.Name)
			fmt.Printf("Unit Name:     %s\n", info.UnitName)
			fmt.Printf("Supply:        %d\n", info.Supply)
			fmt.Printf("Decimals:      %d\n", info.Decimals)
			fmt.Printf("Creator:       %s\n", info.Creator)
			fmt.Printf("Manager:       %s\n", formatOptionalAddress(info.Manager))
			fmt.Printf("Reserve:       %s\n", formatOptionalAddress(info.Reserve))
			fmt.Printf("Freeze:        %s\n", formatOptionalAddress(info.Freeze))
			fmt.Printf("Clawback:      %s\n", formatOptionalAddress(info.Clawback))
			fmt.Printf("Created Round: %d\n", info.CreatedRound)
			fmt.Printf("Deleted:       %t\n", info.Deleted)
			if info.URL != "" {
				fmt.Printf("URL:           %s\n", info.URL)
			}
			return nil
		},
	}
}

func compileFilters(exprs []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, len(exprs))
	for i, expr := range exprs {
		query, err := gojq.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
		}
		codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
		}
	}
	return codes, nil
}

// matchTransfer reports whether every filter returns a truthy first result for t.
func matchTransfer(t algorand.Transfer, filters []*gojq.Code) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}

	// gojq only accepts plain JSON values, so round-trip through encoding/json.
	raw, err := json.Marshal(t)
	if err != nil {
		return false, err
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, err
	}

	for _, code := range filters {
		iter := code.Run(doc)
		v, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, isErr := v.(error); isErr {
			return false, err
		}
		if !isTruthy(v) {
			return false, nil
		}
	}
	return true, nil
}

// isTruthy follows jq semantics: only false and null are falsy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

func formatOptionalAddress(addr *string) string {
	if addr != nil && *addr != "" {
		return *addr
	}
	return "(none)"
}
