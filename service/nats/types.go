package nats

import (
	"time"

	"github.com/brojonat/rafflebandz/service/snapshot"
)

// SnapshotEvent announces a finished snapshot of one asset.
// It is published to the subject "snapshots.{asset_id}" in JetStream.
type SnapshotEvent struct {
	RunID   string `json:"run_id,omitempty"`
	AssetID uint64 `json:"asset_id"`

	// Asset information
	AssetName string `json:"asset_name,omitempty"`
	UnitName  string `json:"unit_name,omitempty"`
	Supply    int64  `json:"supply"`
	Issuer    string `json:"issuer,omitempty"`

	// Outcome
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
	Holders        int    `json:"holders"`
	TotalHeld      int64  `json:"total_held"`
	IssuerResidual int64  `json:"issuer_residual"`
	Seed           string `json:"seed,omitempty"`

	// Report files written for the asset
	Files []string `json:"files,omitempty"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}

// FromAssetResult converts a pipeline result into an event. runID and files may be empty.
func FromAssetResult(res *snapshot.AssetResult, runID, seed string, files []string) *SnapshotEvent {
	event := &SnapshotEvent{
		RunID:       runID,
		AssetID:     res.AssetID,
		Issuer:      res.Issuer,
		Status:      res.Kind.String(),
		Seed:        seed,
		Files:       files,
		PublishedAt: time.Now().UTC(),
	}

	if res.Info != nil {
		event.AssetName = res.Info.Name
		event.UnitName = res.Info.UnitName
		event.Supply = res.Info.Supply
	}
	if res.Holders != nil {
		event.Holders = res.Holders.Len()
		event.TotalHeld = res.Holders.Total()
	}
	if res.Filter != nil {
		event.IssuerResidual = res.Filter.IssuerResidual
	}
	if res.Err != nil {
		event.Error = res.Err.Error()
	}

	return event
}
