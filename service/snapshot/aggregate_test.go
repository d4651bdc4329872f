package snapshot

import (
	"testing"

	"github.com/brojonat/rafflebandz/service/algorand"
	"github.com/brojonat/rafflebandz/service/ledger"
	"github.com/stretchr/testify/assert"
)

func okResult(id uint64, unit string, holders ...ledger.Holder) *AssetResult {
	return &AssetResult{
		AssetID: id,
		Info:    &algorand.AssetInfo{AssetID: id, UnitName: unit},
		Holders: ledger.NewHolderSet(holders),
		Kind:    KindOK,
	}
}

func TestAggregate(t *testing.T) {
	results := []*AssetResult{
		okResult(1, "BNDZ1", ledger.Holder{Address: "A", Balance: 5}, ledger.Holder{Address: "B", Balance: 2}),
		{AssetID: 2, Kind: KindSourceUnavailable},
		okResult(3, "BNDZ3", ledger.Holder{Address: "B", Balance: 4}, ledger.Holder{Address: "C", Balance: 5}),
	}

	totals := Aggregate(results)

	assert.Equal(t, []string{"BNDZ1", "BNDZ3"}, totals.Columns)
	assert.Equal(t, []HolderTotal{
		{Address: "B", Balances: []int64{2, 4}, Total: 6},
		{Address: "A", Balances: []int64{5, 0}, Total: 5},
		{Address: "C", Balances: []int64{0, 5}, Total: 5},
	}, totals.Holders)
}

func TestAggregate_SharedUnitNameAddsUp(t *testing.T) {
	totals := Aggregate([]*AssetResult{
		okResult(1, "BNDZ", ledger.Holder{Address: "A", Balance: 1}),
		okResult(2, "BNDZ", ledger.Holder{Address: "A", Balance: 2}),
	})

	assert.Equal(t, []string{"BNDZ"}, totals.Columns)
	assert.Equal(t, []HolderTotal{{Address: "A", Balances: []int64{3}, Total: 3}}, totals.Holders)
}

func TestAggregate_NoSuccessfulAssets(t *testing.T) {
	totals := Aggregate([]*AssetResult{{AssetID: 1, Kind: KindLedgerInvariant}})
	assert.Empty(t, totals.Columns)
	assert.Empty(t, totals.Holders)
}
