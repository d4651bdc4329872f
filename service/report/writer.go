package report

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/brojonat/rafflebandz/service/metrics"
	"github.com/brojonat/rafflebandz/service/slots"
	"github.com/brojonat/rafflebandz/service/snapshot"
)

// Default archive settings.
const (
	DefaultRoot   = "archive/snapshots"
	DefaultPrefix = "rafflebandz"
	// HoldersDir is the archive directory used for cross-asset reports.
	HoldersDir = "holders"
	dateLayout = "2006-01-02"
)

// Report names, also used as metric labels.
const (
	ReportSnapshot        = "snapshot"
	ReportSlots           = "slots"
	ReportSlotsRandomized = "slots-randomized"
	ReportHolders         = "holders"
)

// Writer writes reports into {Root}/{asset ID or "holders"}/{yyyy-MM-dd}/.
// Files written on the same day replace earlier ones.
type Writer struct {
	Root   string
	Prefix string
	Now    func() time.Time

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewWriter creates a Writer. Empty root and prefix fall back to the defaults.
func NewWriter(root, prefix string, logger *slog.Logger, m *metrics.Metrics) *Writer {
	if root == "" {
		root = DefaultRoot
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		Root:    root,
		Prefix:  prefix,
		Now:     time.Now,
		logger:  logger,
		metrics: m,
	}
}

// AssetFiles are the paths written for a single asset.
type AssetFiles struct {
	Snapshot        string `json:"snapshot"`
	Slots           string `json:"slots"`
	SlotsRandomized string `json:"slots_randomized"`
}

// WriteAssetReports writes the roster, the sequential slots and the shuffled slots
// of one asset.
func (w *Writer) WriteAssetReports(ctx context.Context, assetID uint64, roster []slots.RosterRow, sequential, shuffled []slots.Slot) (*AssetFiles, error) {
	dir := strconv.FormatUint(assetID, 10)
	date := w.date()

	snapshotPath, err := w.write(ctx, dir, ReportSnapshot, date, RosterTable(roster))
	if err != nil {
		return nil, err
	}
	slotsPath, err := w.write(ctx, dir, ReportSlots, date, SlotsTable(sequential))
	if err != nil {
		return nil, err
	}
	randomPath, err := w.write(ctx, dir, ReportSlotsRandomized, date, SlotsTable(shuffled))
	if err != nil {
		return nil, err
	}

	return &AssetFiles{
		Snapshot:        snapshotPath,
		Slots:           slotsPath,
		SlotsRandomized: randomPath,
	}, nil
}

// WriteHolderTotals writes the cross-asset holder table and returns its path.
func (w *Writer) WriteHolderTotals(ctx context.Context, totals *snapshot.HolderTotals) (string, error) {
	return w.write(ctx, HoldersDir, ReportHolders, w.date(), HolderTotalsTable(totals))
}

// ExportAsset allocates slots for a successful result and writes its three reports.
// Holders are listed by descending balance.
func (w *Writer) ExportAsset(ctx context.Context, res *snapshot.AssetResult, alloc *slots.Allocator, src slots.Source) (*AssetFiles, error) {
	if res.Kind.Failed() || res.Holders == nil {
		return nil, fmt.Errorf("asset %d has no holders to export: %s", res.AssetID, res.Kind)
	}

	holders := res.Holders.Sorted()
	sequential, err := alloc.Sequential(holders)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate slots for asset %d: %w", res.AssetID, err)
	}
	shuffled, err := alloc.Shuffled(holders, src)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate shuffled slots for asset %d: %w", res.AssetID, err)
	}
	if w.metrics != nil {
		label := strconv.FormatUint(res.AssetID, 10)
		w.metrics.RecordSlotsAllocated(label, "sequential", len(sequential))
		w.metrics.RecordSlotsAllocated(label, "shuffled", len(shuffled))
	}

	return w.WriteAssetReports(ctx, res.AssetID, slots.Roster(holders), sequential, shuffled)
}

func (w *Writer) date() string {
	return w.Now().Format(dateLayout)
}

// Path returns where a report of the given name is written for dir and date.
func (w *Writer) Path(dir, report, date string) string {
	name := fmt.Sprintf("%s-%s-%s.csv", w.Prefix, report, date)
	return filepath.Join(w.Root, dir, date, name)
}

func (w *Writer) write(ctx context.Context, dir, report, date string, t Table) (string, error) {
	path := w.Path(dir, report, date)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, t); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s report: %w", report, err)
	}

	if w.metrics != nil {
		w.metrics.RecordReportWritten(report)
	}
	w.logger.InfoContext(ctx, "report written",
		"report", report,
		"path", path,
		"rows", len(t.Rows),
	)
	return path, nil
}
