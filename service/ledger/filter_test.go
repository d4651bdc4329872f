package ledger

import (
	"context"
	"testing"

	"github.com/brojonat/rafflebandz/service/algorand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_ConcreteScenario(t *testing.T) {
	ctx := context.Background()
	l, _, err := Replay(ctx, issuer, 100, []algorand.Transfer{
		transfer(issuer, "X", 40),
		transfer("X", "Y", 10),
	}, ReplayOptions{}, nil)
	require.NoError(t, err)

	hs, report := Filter(ctx, l, issuer, nil, nil)

	assert.Equal(t, []Holder{
		{Address: "X", Balance: 30},
		{Address: "Y", Balance: 10},
	}, hs.Holders())
	assert.Equal(t, int64(40), hs.Total())
	assert.Equal(t, int64(60), report.IssuerResidual)
}

func TestFilter_DropsZeroAndExcluded(t *testing.T) {
	ctx := context.Background()
	l, _, err := Replay(ctx, issuer, 100, []algorand.Transfer{
		transfer(issuer, "A", 10),
		transfer(issuer, "RAFFLE", 50),
		transfer(issuer, "B", 40),
		transfer("A", "C", 10),
	}, ReplayOptions{}, nil)
	require.NoError(t, err)

	hs, report := Filter(ctx, l, issuer, []string{"RAFFLE", ""}, nil)

	assert.Equal(t, []Holder{
		{Address: "B", Balance: 40},
		{Address: "C", Balance: 10},
	}, hs.Holders())
	assert.Equal(t, int64(0), report.IssuerResidual)
	assert.Equal(t, []string{"A"}, report.ZeroBalances)
	assert.Equal(t, []string{"RAFFLE"}, report.Excluded)

	for _, h := range hs.Holders() {
		assert.Greater(t, h.Balance, int64(0))
		assert.NotEqual(t, issuer, h.Address)
	}
}

func TestHolderSet_SortedIsStable(t *testing.T) {
	hs := NewHolderSet([]Holder{
		{Address: "A", Balance: 5},
		{Address: "B", Balance: 10},
		{Address: "C", Balance: 5},
		{Address: "D", Balance: 10},
	})

	assert.Equal(t, []Holder{
		{Address: "B", Balance: 10},
		{Address: "D", Balance: 10},
		{Address: "A", Balance: 5},
		{Address: "C", Balance: 5},
	}, hs.Sorted())

	// Sorting does not reorder the set itself.
	assert.Equal(t, "A", hs.Holders()[0].Address)
}

func TestNewHolderSet_DropsInvalid(t *testing.T) {
	hs := NewHolderSet([]Holder{
		{Address: "A", Balance: 5},
		{Address: "B", Balance: 0},
		{Address: "C", Balance: -3},
		{Address: "A", Balance: 7},
	})

	assert.Equal(t, 1, hs.Len())
	assert.Equal(t, int64(5), hs.Balance("A"))
	assert.Equal(t, int64(0), hs.Balance("B"))
}
