// Package slots expands holder balances into individually numbered raffle slots.
//
// Every unit of a holder's balance becomes one slot. Slots are numbered from 1 and
// the numbering is contiguous across all holders. Sequential allocation numbers slots
// in holder order; shuffled allocation numbers them after a uniform Fisher–Yates
// permutation of all units.
package slots

import (
	"errors"
	"fmt"

	"github.com/brojonat/rafflebandz/service/ledger"
)

// DefaultMaxSlots bounds the number of slots a single allocation may produce.
const DefaultMaxSlots = 10_000_000

var (
	// ErrInvalidBalance is returned for holders whose balance is not positive.
	ErrInvalidBalance = errors.New("holder balance must be positive")

	// ErrTooManySlots is returned when the combined balance exceeds the slot limit.
	ErrTooManySlots = errors.New("too many slots")

	// ErrNilSource is returned by Shuffled when no random source is given.
	ErrNilSource = errors.New("random source is required")
)

// RosterRow is one holder and its balance, without expansion.
type RosterRow struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

// Slot is one unit of a holder's balance.
type Slot struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
	// Number is the 1-based position of the slot across all holders.
	Number int64 `json:"number"`
	// Ticket is the 1-based index of this unit within its holder's balance.
	Ticket int64 `json:"ticket"`
}

// Allocator expands holders into slots.
type Allocator struct {
	MaxSlots int64
}

// NewAllocator returns an Allocator with the given slot limit.
// A non-positive limit falls back to DefaultMaxSlots.
func NewAllocator(maxSlots int64) *Allocator {
	if maxSlots <= 0 {
		maxSlots = DefaultMaxSlots
	}
	return &Allocator{MaxSlots: maxSlots}
}

// Roster returns one row per holder, in the given order.
func Roster(holders []ledger.Holder) []RosterRow {
	rows := make([]RosterRow, 0, len(holders))
	for _, h := range holders {
		rows = append(rows, RosterRow{Address: h.Address, Balance: h.Balance})
	}
	return rows
}

// Sequential gives each holder a contiguous run of slot numbers, in holder order.
// A holder with balance N occupies N consecutive numbers.
func (a *Allocator) Sequential(holders []ledger.Holder) ([]Slot, error) {
	out, err := a.expand(holders)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Number = int64(i) + 1
	}
	return out, nil
}

// Shuffled expands holders in order, permutes all units with src, then numbers the
// slots by their final position. src must not be nil.
func (a *Allocator) Shuffled(holders []ledger.Holder, src Source) ([]Slot, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	out, err := a.expand(holders)
	if err != nil {
		return nil, err
	}
	Shuffle(out, src)
	for i := range out {
		out[i].Number = int64(i) + 1
	}
	return out, nil
}

// expand produces one slot per unit with placeholder number 0.
func (a *Allocator) expand(holders []ledger.Holder) ([]Slot, error) {
	var total int64
	for _, h := range holders {
		if h.Balance <= 0 {
			return nil, fmt.Errorf("%w: %s has %d", ErrInvalidBalance, h.Address, h.Balance)
		}
		total += h.Balance
		if total > a.MaxSlots {
			return nil, fmt.Errorf("%w: more than %d", ErrTooManySlots, a.MaxSlots)
		}
	}

	out := make([]Slot, 0, total)
	for _, h := range holders {
		for ticket := int64(1); ticket <= h.Balance; ticket++ {
			out = append(out, Slot{Address: h.Address, Balance: h.Balance, Ticket: ticket})
		}
	}
	return out, nil
}
