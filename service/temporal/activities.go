package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/rafflebandz/service/algorand"
	"github.com/brojonat/rafflebandz/service/archive"
	"github.com/brojonat/rafflebandz/service/ledger"
	"github.com/brojonat/rafflebandz/service/metrics"
	"github.com/brojonat/rafflebandz/service/slots"
	"github.com/brojonat/rafflebandz/service/snapshot"
)

// RunAssetInput contains the input parameters for snapshotting one asset.
type RunAssetInput struct {
	AssetID uint64 `json:"asset_id"`
	Force   bool   `json:"force"`
}

// AssetSnapshot is the serializable form of a pipeline result.
type AssetSnapshot struct {
	AssetID   uint64               `json:"asset_id"`
	Kind      snapshot.Kind        `json:"kind"`
	Error     string               `json:"error,omitempty"`
	Info      *algorand.AssetInfo  `json:"info,omitempty"`
	Issuer    string               `json:"issuer,omitempty"`
	Transfers int                  `json:"transfers"`
	Holders   []ledger.Holder      `json:"holders,omitempty"`
	Replay    *ledger.ReplayReport `json:"replay,omitempty"`
	Filter    *ledger.FilterReport `json:"filter,omitempty"`
}

// WriteReportsInput contains parameters for the WriteReports activity.
type WriteReportsInput struct {
	Assets []*AssetSnapshot `json:"assets"`
	// Seed is the hex seed for the shuffled slots.
	Seed string `json:"seed"`
}

// NewAssetSnapshot converts a pipeline result for transport between activities.
func NewAssetSnapshot(res *snapshot.AssetResult) *AssetSnapshot {
	s := &AssetSnapshot{
		AssetID:   res.AssetID,
		Kind:      res.Kind,
		Info:      res.Info,
		Issuer:    res.Issuer,
		Transfers: res.Transfers,
		Replay:    res.Replay,
		Filter:    res.Filter,
	}
	if res.Err != nil {
		s.Error = res.Err.Error()
	}
	if res.Holders != nil {
		s.Holders = res.Holders.Holders()
	}
	return s
}

// Result converts the snapshot back into a pipeline result.
func (s *AssetSnapshot) Result() *snapshot.AssetResult {
	res := &snapshot.AssetResult{
		AssetID:   s.AssetID,
		Kind:      s.Kind,
		Info:      s.Info,
		Issuer:    s.Issuer,
		Transfers: s.Transfers,
		Replay:    s.Replay,
		Filter:    s.Filter,
	}
	if s.Error != "" {
		res.Err = errors.New(s.Error)
	}
	if !s.Kind.Failed() {
		res.Holders = ledger.NewHolderSet(s.Holders)
	}
	return res
}

// Activities holds the dependencies needed by Temporal activities.
type Activities struct {
	service  *snapshot.Service
	archiver *archive.Archiver
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(service *snapshot.Service, archiver *archive.Archiver, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		service:  service,
		archiver: archiver,
		metrics:  m,
		logger:   logger,
	}
}

// RunAssetSnapshot runs the holder pipeline for one asset. Pipeline failures are
// returned inside the snapshot, not as activity errors.
func (a *Activities) RunAssetSnapshot(ctx context.Context, input RunAssetInput) (*AssetSnapshot, error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("RunAssetSnapshot", time.Since(start).Seconds())
		}
	}()

	a.logger.InfoContext(ctx, "running asset snapshot", "asset_id", input.AssetID, "force", input.Force)
	res := a.service.WithForce(input.Force).RunAsset(ctx, input.AssetID)
	return NewAssetSnapshot(res), nil
}

// WriteReports writes the run's reports and forwards every result to the sinks.
// Sink failures are reported in the outcome's Error so the files already written
// still reach the workflow; only an unusable input fails the activity.
func (a *Activities) WriteReports(ctx context.Context, input WriteReportsInput) (*archive.Outcome, error) {
	start := time.Now()
	defer func() {
		if a.metrics != nil {
			a.metrics.RecordActivityDuration("WriteReports", time.Since(start).Seconds())
		}
	}()

	seed, err := slots.ParseSeed(input.Seed)
	if err != nil {
		return nil, fmt.Errorf("invalid seed: %w", err)
	}

	results := make([]*snapshot.AssetResult, 0, len(input.Assets))
	for _, s := range input.Assets {
		results = append(results, s.Result())
	}

	outcome, err := a.archiver.Archive(ctx, snapshot.NewSummary(results), seed)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to archive snapshot", "error", err)
		return outcome, nil
	}

	a.logger.InfoContext(ctx, "snapshot archived",
		"assets", len(outcome.Assets),
		"holder_totals", outcome.HolderTotals,
	)
	return outcome, nil
}
