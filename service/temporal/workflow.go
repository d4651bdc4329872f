package temporal

import (
	"fmt"
	"time"

	"github.com/brojonat/rafflebandz/service/archive"
	"github.com/brojonat/rafflebandz/service/slots"
	"github.com/brojonat/rafflebandz/service/snapshot"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// SnapshotWorkflowInput contains the input parameters for a snapshot run.
type SnapshotWorkflowInput struct {
	AssetIDs []uint64 `json:"asset_ids"`
	Force    bool     `json:"force"`
	// Seed is an optional hex seed; a random one is drawn when empty.
	Seed string `json:"seed,omitempty"`
}

// SnapshotWorkflowResult contains the result of a snapshot run.
type SnapshotWorkflowResult struct {
	Seed      string           `json:"seed"`
	Succeeded []uint64         `json:"succeeded"`
	Failed    []uint64         `json:"failed"`
	Outcome   *archive.Outcome `json:"outcome,omitempty"`
	Error     *string          `json:"error,omitempty"`
}

// SnapshotWorkflow snapshots every requested asset in parallel, one activity per
// asset, then writes the reports of the assets that succeeded.
//
// Indexer fetches are not retried: each asset activity runs at most once and a
// failure is recorded against that asset only.
func SnapshotWorkflow(ctx workflow.Context, input SnapshotWorkflowInput) (*SnapshotWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("SnapshotWorkflow started", "assets", len(input.AssetIDs))

	if len(input.AssetIDs) == 0 {
		return nil, temporalsdk.NewNonRetryableApplicationError("no asset IDs given", "InvalidInput", nil)
	}

	result := &SnapshotWorkflowResult{Seed: input.Seed}
	if result.Seed == "" {
		encoded := workflow.SideEffect(ctx, func(ctx workflow.Context) interface{} {
			seed, err := slots.RandomSeed()
			if err != nil {
				return ""
			}
			return seed.String()
		})
		if err := encoded.Get(&result.Seed); err != nil {
			return nil, fmt.Errorf("failed to draw seed: %w", err)
		}
		if result.Seed == "" {
			return nil, fmt.Errorf("failed to draw seed")
		}
	}
	logger.Info("using shuffle seed", "seed", result.Seed)

	runCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	futures := make([]workflow.Future, len(input.AssetIDs))
	for i, id := range input.AssetIDs {
		futures[i] = workflow.ExecuteActivity(runCtx, a.RunAssetSnapshot, RunAssetInput{AssetID: id, Force: input.Force})
	}

	assets := make([]*AssetSnapshot, len(input.AssetIDs))
	for i, f := range futures {
		var s *AssetSnapshot
		if err := f.Get(ctx, &s); err != nil {
			logger.Error("asset snapshot activity failed", "asset_id", input.AssetIDs[i], "error", err)
			s = &AssetSnapshot{
				AssetID: input.AssetIDs[i],
				Kind:    snapshot.KindInternal,
				Error:   err.Error(),
			}
		}
		assets[i] = s
		if s.Kind.Failed() {
			result.Failed = append(result.Failed, s.AssetID)
		} else {
			result.Succeeded = append(result.Succeeded, s.AssetID)
		}
	}

	writeCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var outcome *archive.Outcome
	err := workflow.ExecuteActivity(writeCtx, a.WriteReports, WriteReportsInput{
		Assets: assets,
		Seed:   result.Seed,
	}).Get(ctx, &outcome)
	if err != nil {
		errMsg := fmt.Sprintf("failed to write reports: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to write reports: %w", err)
	}
	result.Outcome = outcome
	if outcome != nil && outcome.Error != "" {
		errMsg := fmt.Sprintf("failed to archive snapshot: %s", outcome.Error)
		result.Error = &errMsg
		logger.Error("SnapshotWorkflow archived with sink failures", "error", outcome.Error)
		return result, nil
	}

	logger.Info("SnapshotWorkflow completed",
		"succeeded", len(result.Succeeded),
		"failed", len(result.Failed),
	)
	return result, nil
}
