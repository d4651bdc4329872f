// Package archive hands finished snapshot results to every configured sink: the CSV
// archive, the Postgres store and the NATS event stream.
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brojonat/rafflebandz/service/db"
	natspkg "github.com/brojonat/rafflebandz/service/nats"
	"github.com/brojonat/rafflebandz/service/report"
	"github.com/brojonat/rafflebandz/service/slots"
	"github.com/brojonat/rafflebandz/service/snapshot"
)

// Store is the persistence the archiver needs.
type Store interface {
	SaveSnapshot(ctx context.Context, params db.CreateSnapshotParams) (*db.Snapshot, error)
}

// Archiver writes reports and forwards results to the optional sinks.
type Archiver struct {
	writer    *report.Writer
	alloc     *slots.Allocator
	store     Store
	publisher natspkg.Publisher
	logger    *slog.Logger
}

// NewArchiver creates an Archiver. store and publisher may be nil.
func NewArchiver(writer *report.Writer, alloc *slots.Allocator, store Store, publisher natspkg.Publisher, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{
		writer:    writer,
		alloc:     alloc,
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Record is what happened to one asset's result.
type Record struct {
	AssetID uint64             `json:"asset_id"`
	Status  string             `json:"status"`
	RunID   string             `json:"run_id,omitempty"`
	Files   *report.AssetFiles `json:"files,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Outcome is the result of archiving a whole run.
type Outcome struct {
	Seed         string    `json:"seed,omitempty"`
	Assets       []*Record `json:"assets"`
	HolderTotals string    `json:"holder_totals,omitempty"`
	// Error joins the sink failures, if any.
	Error string `json:"error,omitempty"`
}

// Archive writes the reports for summary and forwards every result to the sinks.
// A single asset gets its roster and slot files, shuffled with seed; several assets
// get the cross-asset holder totals. Failed assets produce no files but are still
// announced. The returned error joins every sink failure; the outcome is always
// populated with what did succeed.
func (a *Archiver) Archive(ctx context.Context, summary *snapshot.Summary, seed slots.Seed) (*Outcome, error) {
	out := &Outcome{Seed: seed.String()}
	var errs []error

	single := len(summary.Results) == 1
	for _, res := range summary.Results {
		rec := &Record{AssetID: res.AssetID, Status: res.Kind.String()}
		if res.Err != nil {
			rec.Error = res.Err.Error()
		}
		out.Assets = append(out.Assets, rec)

		if single && !res.Kind.Failed() {
			files, err := a.writer.ExportAsset(ctx, res, a.alloc, slots.NewSource(seed))
			if err != nil {
				errs = append(errs, err)
				rec.Error = err.Error()
			} else {
				rec.Files = files
			}
		}

		if err := a.persist(ctx, res, rec, out.Seed); err != nil {
			errs = append(errs, err)
		}
		if err := a.publish(ctx, res, rec, out.Seed); err != nil {
			errs = append(errs, err)
		}
	}

	if !single && len(summary.Succeeded()) > 0 {
		path, err := a.writer.WriteHolderTotals(ctx, snapshot.Aggregate(summary.Results))
		if err != nil {
			errs = append(errs, err)
		} else {
			out.HolderTotals = path
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		out.Error = err.Error()
	}
	return out, err
}

func (a *Archiver) persist(ctx context.Context, res *snapshot.AssetResult, rec *Record, seed string) error {
	if a.store == nil || res.Kind.Failed() {
		return nil
	}

	params := db.CreateSnapshotParams{
		AssetID:   res.AssetID,
		Issuer:    res.Issuer,
		Transfers: res.Transfers,
	}
	if res.Info != nil {
		params.AssetName = res.Info.Name
		params.UnitName = res.Info.UnitName
		params.Supply = res.Info.Supply
	}
	if res.Filter != nil {
		params.IssuerResidual = res.Filter.IssuerResidual
	}
	if rec.Files != nil {
		params.Seed = seed
	}
	for _, h := range res.Holders.Sorted() {
		params.Holders = append(params.Holders, db.SnapshotHolder{Address: h.Address, Balance: h.Balance})
	}

	snap, err := a.store.SaveSnapshot(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to save snapshot of asset %d: %w", res.AssetID, err)
	}
	rec.RunID = snap.ID.String()
	a.logger.InfoContext(ctx, "snapshot saved", "asset_id", res.AssetID, "run_id", rec.RunID)
	return nil
}

func (a *Archiver) publish(ctx context.Context, res *snapshot.AssetResult, rec *Record, seed string) error {
	if a.publisher == nil {
		return nil
	}

	var files []string
	if rec.Files != nil {
		files = []string{rec.Files.Snapshot, rec.Files.Slots, rec.Files.SlotsRandomized}
	} else {
		seed = ""
	}
	if err := a.publisher.PublishSnapshot(ctx, natspkg.FromAssetResult(res, rec.RunID, seed, files)); err != nil {
		return fmt.Errorf("failed to publish snapshot of asset %d: %w", res.AssetID, err)
	}
	return nil
}
