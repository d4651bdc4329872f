package report

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brojonat/rafflebandz/service/algorand"
	"github.com/brojonat/rafflebandz/service/ledger"
	"github.com/brojonat/rafflebandz/service/slots"
	"github.com/brojonat/rafflebandz/service/snapshot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	w := NewWriter(t.TempDir(), "", slog.New(slog.NewJSONHandler(io.Discard, nil)), nil)
	w.Now = func() time.Time { return time.Date(2024, 3, 9, 15, 4, 5, 0, time.Local) }
	return w
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		table Table
		want  string
	}{
		{
			name:  "header only",
			table: Table{Header: []any{"Wallet", "Balance"}},
			want:  "Wallet,Balance",
		},
		{
			name: "rows without trailing newline",
			table: Table{
				Header: []any{"Wallet", "Balance"},
				Rows:   [][]any{{"X", int64(30)}, {"Y", 10}},
			},
			want: "Wallet,Balance\nX,30\nY,10",
		},
		{
			name: "comma cells are quoted",
			table: Table{
				Header: []any{"Wallet", "Tickets, Held"},
				Rows:   [][]any{{"A,B", uint64(1)}},
			},
			want: "Wallet,\"Tickets, Held\"\n\"A,B\",1",
		},
		{
			name: "quotes are not escaped",
			table: Table{
				Header: []any{"Name"},
				Rows:   [][]any{{`say "hi"`}, {nil}},
			},
			want: "Name\nsay \"hi\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, tt.table))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriteAssetReports_ConcreteScenario(t *testing.T) {
	w := newTestWriter(t)
	holders := []ledger.Holder{{Address: "X", Balance: 30}, {Address: "Y", Balance: 10}}
	alloc := slots.NewAllocator(0)

	sequential, err := alloc.Sequential(holders)
	require.NoError(t, err)
	shuffled, err := alloc.Shuffled(holders, slots.NewSource(slots.Seed{7}))
	require.NoError(t, err)

	files, err := w.WriteAssetReports(context.Background(), 12345, slots.Roster(holders), sequential, shuffled)
	require.NoError(t, err)

	dir := filepath.Join(w.Root, "12345", "2024-03-09")
	assert.Equal(t, filepath.Join(dir, "rafflebandz-snapshot-2024-03-09.csv"), files.Snapshot)
	assert.Equal(t, filepath.Join(dir, "rafflebandz-slots-2024-03-09.csv"), files.Slots)
	assert.Equal(t, filepath.Join(dir, "rafflebandz-slots-randomized-2024-03-09.csv"), files.SlotsRandomized)

	assert.Equal(t, "Wallet,Balance\nX,30\nY,10", readFile(t, files.Snapshot))

	lines := strings.Split(readFile(t, files.Slots), "\n")
	require.Len(t, lines, 41)
	assert.Equal(t, "Wallet,Tickets Held,Slot", lines[0])
	assert.Equal(t, "X,30,1", lines[1])
	assert.Equal(t, "X,30,30", lines[30])
	assert.Equal(t, "Y,10,31", lines[31])
	assert.Equal(t, "Y,10,40", lines[40])

	random := strings.Split(readFile(t, files.SlotsRandomized), "\n")
	require.Len(t, random, 41)
	assert.Equal(t, "Wallet,Tickets Held,Slot", random[0])
	x := 0
	for _, line := range random[1:] {
		if strings.HasPrefix(line, "X,30,") {
			x++
		}
	}
	assert.Equal(t, 30, x)
}

func TestWriteAssetReports_OverwritesSameDay(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	_, err := w.WriteAssetReports(ctx, 1, []slots.RosterRow{{Address: "A", Balance: 1}}, nil, nil)
	require.NoError(t, err)
	files, err := w.WriteAssetReports(ctx, 1, []slots.RosterRow{{Address: "B", Balance: 2}}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, "Wallet,Balance\nB,2", readFile(t, files.Snapshot))
	assert.Equal(t, "Wallet,Tickets Held,Slot", readFile(t, files.Slots))
}

func TestWriteHolderTotals(t *testing.T) {
	w := newTestWriter(t)
	w.Prefix = "bandz"

	path, err := w.WriteHolderTotals(context.Background(), &snapshot.HolderTotals{
		Columns: []string{"BNDZ1", "BNDZ3"},
		Holders: []snapshot.HolderTotal{
			{Address: "B", Balances: []int64{2, 4}, Total: 6},
			{Address: "A", Balances: []int64{5, 0}, Total: 5},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(w.Root, "holders", "2024-03-09", "bandz-holders-2024-03-09.csv"), path)
	assert.Equal(t, "Wallet,BNDZ1,BNDZ3,Total Held\nB,2,4,6\nA,5,0,5", readFile(t, path))
}

func TestExportAsset(t *testing.T) {
	w := newTestWriter(t)
	res := &snapshot.AssetResult{
		AssetID: 7,
		Info:    &algorand.AssetInfo{AssetID: 7, UnitName: "BNDZ"},
		Holders: ledger.NewHolderSet([]ledger.Holder{{Address: "Y", Balance: 1}, {Address: "X", Balance: 2}}),
		Kind:    snapshot.KindOK,
	}

	files, err := w.ExportAsset(context.Background(), res, slots.NewAllocator(0), slots.NewSource(slots.Seed{}))
	require.NoError(t, err)
	assert.Equal(t, "Wallet,Balance\nX,2\nY,1", readFile(t, files.Snapshot))
	assert.Equal(t, "Wallet,Tickets Held,Slot\nX,2,1\nX,2,2\nY,1,3", readFile(t, files.Slots))

	_, err = w.ExportAsset(context.Background(), &snapshot.AssetResult{AssetID: 8, Kind: snapshot.KindSourceUnavailable}, slots.NewAllocator(0), nil)
	assert.Error(t, err)

	_, err = w.ExportAsset(context.Background(), res, slots.NewAllocator(2), slots.NewSource(slots.Seed{}))
	assert.ErrorIs(t, err, slots.ErrTooManySlots)
}
