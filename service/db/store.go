package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/brojonat/rafflebandz/service/metrics"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// Store provides database operations for snapshot runs.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// metrics may be nil.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// Snapshot is one persisted snapshot run of a single asset.
type Snapshot struct {
	ID             uuid.UUID `json:"id"`
	AssetID        uint64    `json:"asset_id"`
	AssetName      string    `json:"asset_name"`
	UnitName       string    `json:"unit_name"`
	Issuer         string    `json:"issuer"`
	Supply         int64     `json:"supply"`
	Transfers      int       `json:"transfers"`
	HolderCount    int       `json:"holder_count"`
	TotalHeld      int64     `json:"total_held"`
	IssuerResidual int64     `json:"issuer_residual"`
	Seed           string    `json:"seed,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// SnapshotHolder is one eligible holder within a snapshot run.
type SnapshotHolder struct {
	Position int    `json:"position"`
	Address  string `json:"address"`
	Balance  int64  `json:"balance"`
}

// CreateSnapshotParams contains the parameters for saving a snapshot run.
type CreateSnapshotParams struct {
	AssetID        uint64
	AssetName      string
	UnitName       string
	Issuer         string
	Supply         int64
	Transfers      int
	IssuerResidual int64
	Seed           string
	// Holders are stored in the given order; Position is assigned from it.
	Holders []SnapshotHolder
}

// ListSnapshotsParams contains filtering and pagination parameters.
type ListSnapshotsParams struct {
	// AssetID restricts the list to one asset when non-nil.
	AssetID *uint64
	Limit   int32
}

// EnsureSchema creates the snapshot tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// SaveSnapshot stores a run and its holders in a single transaction.
func (s *Store) SaveSnapshot(ctx context.Context, params CreateSnapshotParams) (_ *Snapshot, err error) {
	start := time.Now()
	defer func() { s.record("save", "snapshot_runs", start, err) }()

	var total int64
	for _, h := range params.Holders {
		total += h.Balance
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	snap := &Snapshot{
		ID:             uuid.New(),
		AssetID:        params.AssetID,
		AssetName:      params.AssetName,
		UnitName:       params.UnitName,
		Issuer:         params.Issuer,
		Supply:         params.Supply,
		Transfers:      params.Transfers,
		HolderCount:    len(params.Holders),
		TotalHeld:      total,
		IssuerResidual: params.IssuerResidual,
		Seed:           params.Seed,
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO snapshot_runs (
			id, asset_id, asset_name, unit_name, issuer, supply, transfers,
			holder_count, total_held, issuer_residual, seed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`,
		snap.ID, int64(snap.AssetID), snap.AssetName, snap.UnitName, snap.Issuer, snap.Supply,
		snap.Transfers, snap.HolderCount, snap.TotalHeld, snap.IssuerResidual, snap.Seed,
	).Scan(&snap.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert snapshot run: %w", err)
	}

	rows := make([][]any, 0, len(params.Holders))
	for i, h := range params.Holders {
		rows = append(rows, []any{snap.ID, i + 1, h.Address, h.Balance})
	}
	if _, err = tx.CopyFrom(ctx,
		pgx.Identifier{"snapshot_holders"},
		[]string{"run_id", "position", "address", "balance"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return nil, fmt.Errorf("failed to insert snapshot holders: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return snap, nil
}

const snapshotColumns = `id, asset_id, asset_name, unit_name, issuer, supply, transfers,
	holder_count, total_held, issuer_residual, seed, created_at`

// GetSnapshot retrieves a snapshot run by ID. A missing run returns an error
// wrapping pgx.ErrNoRows.
func (s *Store) GetSnapshot(ctx context.Context, id uuid.UUID) (_ *Snapshot, err error) {
	start := time.Now()
	defer func() { s.record("get", "snapshot_runs", start, err) }()

	row := s.pool.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM snapshot_runs WHERE id = $1`, id)
	snap, err := scanSnapshot(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s: %w", id, err)
	}
	return snap, nil
}

// ListSnapshots returns snapshot runs, most recent first.
func (s *Store) ListSnapshots(ctx context.Context, params ListSnapshotsParams) (_ []*Snapshot, err error) {
	start := time.Now()
	defer func() { s.record("list", "snapshot_runs", start, err) }()

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}

	var rows pgx.Rows
	if params.AssetID != nil {
		rows, err = s.pool.Query(ctx, `SELECT `+snapshotColumns+` FROM snapshot_runs
			WHERE asset_id = $1 ORDER BY created_at DESC LIMIT $2`, int64(*params.AssetID), limit)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT `+snapshotColumns+` FROM snapshot_runs
			ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		out = append(out, snap)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return out, nil
}

// GetSnapshotHolders returns the holders of a run in their stored order.
func (s *Store) GetSnapshotHolders(ctx context.Context, id uuid.UUID) (_ []SnapshotHolder, err error) {
	start := time.Now()
	defer func() { s.record("list", "snapshot_holders", start, err) }()

	rows, err := s.pool.Query(ctx, `SELECT position, address, balance FROM snapshot_holders
		WHERE run_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot holders: %w", err)
	}
	holders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SnapshotHolder, error) {
		var h SnapshotHolder
		err := row.Scan(&h.Position, &h.Address, &h.Balance)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot holders: %w", err)
	}
	return holders, nil
}

func scanSnapshot(row pgx.Row) (*Snapshot, error) {
	var (
		snap    Snapshot
		assetID int64
	)
	err := row.Scan(
		&snap.ID, &assetID, &snap.AssetName, &snap.UnitName, &snap.Issuer, &snap.Supply,
		&snap.Transfers, &snap.HolderCount, &snap.TotalHeld, &snap.IssuerResidual,
		&snap.Seed, &snap.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	snap.AssetID = uint64(assetID)
	return &snap, nil
}

func (s *Store) record(operation, table string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(operation, table, time.Since(start).Seconds(), err)
	}
}
