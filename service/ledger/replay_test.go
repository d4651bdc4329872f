package ledger

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/brojonat/rafflebandz/service/algorand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const issuer = "ISSUER"

func transfer(sender, receiver string, amount uint64) algorand.Transfer {
	return algorand.Transfer{Sender: sender, Receiver: receiver, Amount: amount}
}

func TestReplay_ConcreteScenario(t *testing.T) {
	ctx := context.Background()
	transfers := []algorand.Transfer{
		transfer(issuer, "X", 40),
		transfer("X", "Y", 10),
	}

	l, report, err := Replay(ctx, issuer, 100, transfers, ReplayOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Address: issuer, Balance: 60},
		{Address: "X", Balance: 30},
		{Address: "Y", Balance: 10},
	}, l.Entries())
	assert.Equal(t, int64(100), l.Sum())
	assert.True(t, report.Conserved())
	assert.Equal(t, 2, report.Transfers)
	assert.Empty(t, report.Dropped)
}

func TestReplay_EmptyHistory(t *testing.T) {
	l, report, err := Replay(context.Background(), issuer, 100, nil, ReplayOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, l.Len())
	bal, ok := l.Balance(issuer)
	assert.True(t, ok)
	assert.Equal(t, int64(100), bal)
	assert.True(t, report.Conserved())
}

func TestReplay_NegativeBalanceFailsByDefault(t *testing.T) {
	transfers := []algorand.Transfer{transfer(issuer, "X", 150)}

	l, report, err := Replay(context.Background(), issuer, 100, transfers, ReplayOptions{}, nil)
	require.Error(t, err)
	assert.Nil(t, l)
	assert.Nil(t, report)
	assert.True(t, errors.Is(err, ErrLedgerInvariant))

	var negErr *NegativeBalanceError
	require.True(t, errors.As(err, &negErr))
	assert.Equal(t, []Entry{{Address: issuer, Balance: -50}}, negErr.Entries)
	assert.Contains(t, err.Error(), "ISSUER=-50")
}

func TestReplay_NegativeBalanceDroppedUnderForce(t *testing.T) {
	transfers := []algorand.Transfer{transfer(issuer, "X", 150)}

	l, report, err := Replay(context.Background(), issuer, 100, transfers, ReplayOptions{Force: true}, nil)
	require.NoError(t, err)

	_, ok := l.Balance(issuer)
	assert.False(t, ok, "negative issuer entry should be dropped")
	bal, ok := l.Balance("X")
	assert.True(t, ok)
	assert.Equal(t, int64(150), bal)

	// Dropping is not rebalancing: the remaining ledger no longer adds up to supply.
	assert.Equal(t, []Entry{{Address: issuer, Balance: -50}}, report.Dropped)
	assert.Equal(t, int64(100), report.SumBeforeDrops)
	assert.Equal(t, int64(150), report.SumAfterDrops)
	assert.False(t, report.Conserved())
	assert.Error(t, CheckConservation(l, 100))
	assert.True(t, errors.Is(CheckConservation(l, 100), ErrConservation))
}

func TestReplay_NegativeNonIssuerDroppedUnderForce(t *testing.T) {
	// X sends before ever receiving; the sum stays at supply until X is dropped.
	transfers := []algorand.Transfer{
		transfer("X", "Y", 5),
		transfer(issuer, "Z", 20),
	}

	l, report, err := Replay(context.Background(), issuer, 100, transfers, ReplayOptions{Force: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{issuer, "Y", "Z"}, l.Addresses())
	assert.Equal(t, int64(105), l.Sum())
	assert.Equal(t, report.SumAfterDrops, l.Sum())
	assert.Equal(t, []Entry{{Address: "X", Balance: -5}}, report.Dropped)
}

func TestReplay_AmountOutOfRange(t *testing.T) {
	transfers := []algorand.Transfer{transfer(issuer, "X", math.MaxUint64)}
	_, _, err := Replay(context.Background(), issuer, 100, transfers, ReplayOptions{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestReplay_Conservation(t *testing.T) {
	// Random transfer sequences between a handful of addresses never change the sum.
	addrs := []string{issuer, "A", "B", "C", "D", "E"}
	rng := rand.New(rand.NewPCG(1, 2))

	for run := 0; run < 50; run++ {
		var transfers []algorand.Transfer
		n := rng.IntN(40)
		for i := 0; i < n; i++ {
			transfers = append(transfers, transfer(
				addrs[rng.IntN(len(addrs))],
				addrs[rng.IntN(len(addrs))],
				uint64(rng.IntN(30)),
			))
		}

		l, report, err := Replay(context.Background(), issuer, 1000, transfers, ReplayOptions{Force: true}, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1000), report.SumBeforeDrops)

		var dropped int64
		for _, e := range report.Dropped {
			dropped += e.Balance
		}
		assert.Equal(t, int64(1000)-dropped, l.Sum(), "run %d", run)
		assert.Equal(t, len(report.Dropped) == 0, report.Conserved(), "run %d", run)
	}
}

func TestReplay_SelfTransfer(t *testing.T) {
	transfers := []algorand.Transfer{
		transfer(issuer, "X", 10),
		transfer("X", "X", 10),
	}
	l, _, err := Replay(context.Background(), issuer, 100, transfers, ReplayOptions{}, nil)
	require.NoError(t, err)

	bal, _ := l.Balance("X")
	assert.Equal(t, int64(10), bal)
}

func TestLedger_AccessorsReturnCopies(t *testing.T) {
	l, _, err := Replay(context.Background(), issuer, 100, []algorand.Transfer{transfer(issuer, "X", 1)}, ReplayOptions{}, nil)
	require.NoError(t, err)

	addrs := l.Addresses()
	addrs[0] = "MUTATED"
	assert.Equal(t, []string{issuer, "X"}, l.Addresses())

	entries := l.Entries()
	entries[0].Balance = 0
	bal, _ := l.Balance(issuer)
	assert.Equal(t, int64(99), bal)
}
