// Package snapshot runs the holder pipeline for one or more assets: fetch the asset and
// its transfer history, replay the ledger, and filter it down to eligible holders.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/brojonat/rafflebandz/service/algorand"
	"github.com/brojonat/rafflebandz/service/ledger"
	"github.com/brojonat/rafflebandz/service/metrics"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of assets processed at once when none is configured.
const DefaultConcurrency = 4

// Source is the subset of the indexer client the pipeline needs.
type Source interface {
	GetAssetInfo(ctx context.Context, assetID uint64) (*algorand.AssetInfo, error)
	Transfers(ctx context.Context, assetID, minRound uint64) ([]algorand.Transfer, error)
}

// Config controls how holders are derived.
type Config struct {
	// Issuer is the wallet seeded with the full supply. Empty means the asset's creator.
	Issuer string
	// Excluded addresses never receive slots.
	Excluded []string
	// Force drops negative balances instead of failing the asset.
	Force bool
	// Concurrency bounds how many assets are processed in parallel.
	Concurrency int
}

// Service runs the per-asset pipeline.
type Service struct {
	source  Source
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewService creates a Service. metrics may be nil.
func NewService(source Source, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Service{
		source:  source,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
	}
}

// RunAsset runs the pipeline for a single asset. It never returns nil and never
// panics; failures are reported through the result's Kind and Err.
func (s *Service) RunAsset(ctx context.Context, assetID uint64) (result *AssetResult) {
	start := time.Now()
	result = &AssetResult{AssetID: assetID}
	logger := s.logger.With("asset_id", assetID)

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "asset pipeline panicked", "panic", r, "stack", string(debug.Stack()))
			result.Holders = nil
			result.fail(KindInternal, fmt.Errorf("asset pipeline panicked: %v", r))
		}
		result.Duration = time.Since(start)
		if s.metrics != nil {
			s.metrics.RecordAssetRun(strconv.FormatUint(assetID, 10), result.Kind.String(), result.Duration.Seconds())
		}
		if result.Err != nil {
			logger.ErrorContext(ctx, "asset pipeline failed",
				"kind", result.Kind.String(),
				"error", result.Err,
			)
		}
	}()

	info, err := s.source.GetAssetInfo(ctx, assetID)
	if err != nil {
		result.fail(kindOf(err), fmt.Errorf("failed to get asset info: %w", err))
		return result
	}
	result.Info = info

	issuer := s.cfg.Issuer
	if issuer == "" {
		issuer = info.Creator
	}
	result.Issuer = issuer

	logger.InfoContext(ctx, "processing asset",
		"name", info.Name,
		"unit_name", info.UnitName,
		"supply", info.Supply,
		"created_round", info.CreatedRound,
		"issuer", issuer,
	)

	transfers, err := s.source.Transfers(ctx, assetID, info.MinRound())
	if err != nil {
		result.fail(kindOf(err), fmt.Errorf("failed to get transfers: %w", err))
		return result
	}
	result.Transfers = len(transfers)

	l, replay, err := ledger.Replay(ctx, issuer, info.Supply, transfers, ledger.ReplayOptions{Force: s.cfg.Force}, logger)
	if err != nil {
		var negErr *ledger.NegativeBalanceError
		if s.metrics != nil && errors.As(err, &negErr) {
			s.metrics.RecordNegativeBalances(strconv.FormatUint(assetID, 10), "abort", len(negErr.Entries))
		}
		result.fail(kindOf(err), fmt.Errorf("failed to replay ledger: %w", err))
		return result
	}
	result.Replay = replay
	if s.metrics != nil && len(replay.Dropped) > 0 {
		s.metrics.RecordNegativeBalances(strconv.FormatUint(assetID, 10), "drop", len(replay.Dropped))
	}

	holders, filter := ledger.Filter(ctx, l, issuer, s.cfg.Excluded, logger)
	result.Holders = holders
	result.Filter = filter
	if s.metrics != nil {
		label := strconv.FormatUint(assetID, 10)
		s.metrics.RecordIssuerResidual(label, filter.IssuerResidual)
		s.metrics.RecordHolders(label, holders.Len())
	}

	if holders.Len() == 0 {
		result.Kind = KindEmpty
		logger.WarnContext(ctx, "asset has no eligible holders")
		return result
	}

	result.Kind = KindOK
	logger.InfoContext(ctx, "asset processed",
		"holders", holders.Len(),
		"total", holders.Total(),
		"issuer_residual", filter.IssuerResidual,
	)
	return result
}

// RunAssets runs every asset's pipeline concurrently and returns the results in input
// order. One asset failing does not cancel or affect the others.
func (s *Service) RunAssets(ctx context.Context, assetIDs []uint64) *Summary {
	results := make([]*AssetResult, len(assetIDs))

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, id := range assetIDs {
		g.Go(func() error {
			results[i] = s.RunAsset(ctx, id)
			return nil
		})
	}
	// Workers never return errors; failures live in the results.
	_ = g.Wait()

	summary := NewSummary(results)
	s.logger.InfoContext(ctx, "snapshot run complete",
		"assets", len(assetIDs),
		"succeeded", len(summary.Succeeded()),
		"failed", len(summary.Failed()),
	)
	return summary
}

// WithForce returns a copy of s with the negative balance policy replaced.
func (s *Service) WithForce(force bool) *Service {
	c := *s
	c.cfg.Force = force
	return &c
}
