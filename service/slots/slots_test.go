package slots

import (
	"errors"
	"math"
	"testing"

	"github.com/brojonat/rafflebandz/service/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSource always picks the same index, capped to the allowed range.
type fixedSource struct{ pick int }

func (f fixedSource) IntN(n int) int {
	if f.pick >= n {
		return n - 1
	}
	return f.pick
}

var testSeed = Seed{1, 2, 3, 4, 5, 6, 7, 8}

func TestRoster(t *testing.T) {
	rows := Roster([]ledger.Holder{{Address: "A", Balance: 3}, {Address: "B", Balance: 1}})
	assert.Equal(t, []RosterRow{{Address: "A", Balance: 3}, {Address: "B", Balance: 1}}, rows)
}

func TestSequential_ConcreteScenario(t *testing.T) {
	a := NewAllocator(0)
	out, err := a.Sequential([]ledger.Holder{
		{Address: "X", Balance: 30},
		{Address: "Y", Balance: 10},
	})
	require.NoError(t, err)
	require.Len(t, out, 40)

	assert.Equal(t, Slot{Address: "X", Balance: 30, Number: 1, Ticket: 1}, out[0])
	assert.Equal(t, Slot{Address: "X", Balance: 30, Number: 30, Ticket: 30}, out[29])
	assert.Equal(t, Slot{Address: "Y", Balance: 10, Number: 31, Ticket: 1}, out[30])
	assert.Equal(t, Slot{Address: "Y", Balance: 10, Number: 40, Ticket: 10}, out[39])
}

func TestSequential_Contiguous(t *testing.T) {
	holders := []ledger.Holder{
		{Address: "A", Balance: 7},
		{Address: "B", Balance: 1},
		{Address: "C", Balance: 12},
		{Address: "D", Balance: 3},
	}
	out, err := NewAllocator(0).Sequential(holders)
	require.NoError(t, err)
	require.Len(t, out, 23)

	for i, s := range out {
		assert.Equal(t, int64(i+1), s.Number)
	}

	// Each holder occupies one unbroken run of length equal to its balance.
	start := 0
	for _, h := range holders {
		run := out[start : start+int(h.Balance)]
		for k, s := range run {
			assert.Equal(t, h.Address, s.Address)
			assert.Equal(t, int64(k+1), s.Ticket)
		}
		start += int(h.Balance)
	}
}

func TestSequential_Empty(t *testing.T) {
	out, err := NewAllocator(0).Sequential(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAllocator_RejectsInvalidBalance(t *testing.T) {
	_, err := NewAllocator(0).Sequential([]ledger.Holder{{Address: "A", Balance: 0}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidBalance))

	_, err = NewAllocator(0).Shuffled([]ledger.Holder{{Address: "A", Balance: -1}}, NewSource(testSeed))
	assert.True(t, errors.Is(err, ErrInvalidBalance))
}

func TestAllocator_RejectsTooManySlots(t *testing.T) {
	a := NewAllocator(10)
	_, err := a.Sequential([]ledger.Holder{{Address: "A", Balance: 6}, {Address: "B", Balance: 5}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooManySlots))

	out, err := a.Sequential([]ledger.Holder{{Address: "A", Balance: 5}, {Address: "B", Balance: 5}})
	require.NoError(t, err)
	assert.Len(t, out, 10)

	// Huge balances are rejected before anything is allocated.
	_, err = NewAllocator(0).Sequential([]ledger.Holder{{Address: "A", Balance: math.MaxInt64}})
	assert.True(t, errors.Is(err, ErrTooManySlots))
}

func TestShuffled_ConcreteScenario(t *testing.T) {
	out, err := NewAllocator(0).Shuffled([]ledger.Holder{
		{Address: "X", Balance: 30},
		{Address: "Y", Balance: 10},
	}, NewSource(testSeed))
	require.NoError(t, err)
	require.Len(t, out, 40)

	counts := map[string]int{}
	for i, s := range out {
		assert.Equal(t, int64(i+1), s.Number)
		counts[s.Address]++
	}
	assert.Equal(t, map[string]int{"X": 30, "Y": 10}, counts)
}

func TestShuffled_NilSource(t *testing.T) {
	out, err := NewAllocator(0).Shuffled([]ledger.Holder{{Address: "X", Balance: 2}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNilSource))
	assert.Nil(t, out)
}

func TestShuffled_IsPermutationOfSequential(t *testing.T) {
	holders := []ledger.Holder{
		{Address: "A", Balance: 5},
		{Address: "B", Balance: 9},
		{Address: "C", Balance: 2},
	}
	a := NewAllocator(0)
	seq, err := a.Sequential(holders)
	require.NoError(t, err)
	shuf, err := a.Shuffled(holders, NewSource(testSeed))
	require.NoError(t, err)

	type unit struct {
		addr   string
		ticket int64
	}
	want := map[unit]int{}
	for _, s := range seq {
		want[unit{s.Address, s.Ticket}]++
	}
	got := map[unit]int{}
	for _, s := range shuf {
		got[unit{s.Address, s.Ticket}]++
	}
	assert.Equal(t, want, got)
}

func TestShuffled_DeterministicForSeed(t *testing.T) {
	holders := []ledger.Holder{{Address: "A", Balance: 20}, {Address: "B", Balance: 20}}
	a := NewAllocator(0)

	first, err := a.Shuffled(holders, NewSource(testSeed))
	require.NoError(t, err)
	second, err := a.Shuffled(holders, NewSource(testSeed))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := a.Shuffled(holders, NewSource(Seed{9}))
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestShuffle_UsesFisherYatesBounds(t *testing.T) {
	// With a source that always answers 0, each step swaps position i with 0.
	s := []int{1, 2, 3, 4}
	Shuffle(s, fixedSource{pick: 0})
	assert.Equal(t, []int{2, 3, 4, 1}, s)

	// Picking the top of the range every time swaps each element with itself.
	s = []int{1, 2, 3, 4}
	Shuffle(s, fixedSource{pick: math.MaxInt})
	assert.Equal(t, []int{1, 2, 3, 4}, s)
}

func TestShuffle_Uniform(t *testing.T) {
	// Every permutation of 3 elements should appear close to 1/6 of the time.
	const trials = 60000
	src := NewSource(testSeed)
	counts := map[[3]int]int{}
	for i := 0; i < trials; i++ {
		p := []int{0, 1, 2}
		Shuffle(p, src)
		counts[[3]int{p[0], p[1], p[2]}]++
	}

	require.Len(t, counts, 6)
	expected := float64(trials) / 6
	var chi2 float64
	for _, c := range counts {
		d := float64(c) - expected
		chi2 += d * d / expected
	}
	// 5 degrees of freedom; 20.5 is the 0.999 quantile.
	assert.Less(t, chi2, 20.5)
}

func TestParseSeed(t *testing.T) {
	s, err := ParseSeed(testSeed.String())
	require.NoError(t, err)
	assert.Equal(t, testSeed, s)

	phrase, err := ParseSeed("bandz raffle october")
	require.NoError(t, err)
	again, err := ParseSeed("bandz raffle october")
	require.NoError(t, err)
	assert.Equal(t, phrase, again)
	assert.NotEqual(t, Seed{}, phrase)

	_, err = ParseSeed("")
	assert.Error(t, err)
}

func TestRandomSeed(t *testing.T) {
	a, err := RandomSeed()
	require.NoError(t, err)
	b, err := RandomSeed()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.Len(t, a.String(), 64)
}
