package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/brojonat/rafflebandz/service/algorand"
)

// ReplayOptions controls how invariant violations are handled.
type ReplayOptions struct {
	// Force drops negative entries with a warning instead of failing the replay.
	Force bool
}

// ReplayReport describes what happened during a replay.
type ReplayReport struct {
	Supply         int64   `json:"supply"`
	Transfers      int     `json:"transfers"`
	SumBeforeDrops int64   `json:"sum_before_drops"`
	SumAfterDrops  int64   `json:"sum_after_drops"`
	Dropped        []Entry `json:"dropped,omitempty"`
}

// Conserved reports whether the returned ledger still adds up to the supply.
// It is false only when negative entries were dropped under Force.
func (r *ReplayReport) Conserved() bool {
	return r.SumAfterDrops == r.Supply
}

// Replay folds transfers, in order, into a ledger that starts with issuer holding the
// whole supply. Every transfer debits its sender and credits its receiver, so the sum
// of balances always equals supply.
//
// Entries left negative are an accounting invariant violation: Replay returns a
// *NegativeBalanceError unless opts.Force is set, in which case the entries are
// logged and removed without rebalancing anything else.
func Replay(ctx context.Context, issuer string, supply int64, transfers []algorand.Transfer, opts ReplayOptions, logger *slog.Logger) (*Ledger, *ReplayReport, error) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if supply < 0 {
		return nil, nil, fmt.Errorf("%w: negative supply %d", ErrLedgerInvariant, supply)
	}

	l := newLedger()
	l.ensure(issuer)
	l.balances[issuer] = supply

	for i, t := range transfers {
		if t.Amount > math.MaxInt64 {
			return nil, nil, fmt.Errorf("transfer %d (%s): amount %d out of range", i, t.TxID, t.Amount)
		}
		amount := int64(t.Amount)

		l.ensure(t.Sender)
		l.ensure(t.Receiver)

		if l.balances[t.Sender] < math.MinInt64+amount {
			return nil, nil, fmt.Errorf("transfer %d (%s): balance of %s underflows", i, t.TxID, t.Sender)
		}
		l.balances[t.Sender] -= amount
		if l.balances[t.Receiver] > math.MaxInt64-amount {
			return nil, nil, fmt.Errorf("transfer %d (%s): balance of %s overflows", i, t.TxID, t.Receiver)
		}
		l.balances[t.Receiver] += amount
	}

	report := &ReplayReport{
		Supply:         supply,
		Transfers:      len(transfers),
		SumBeforeDrops: l.Sum(),
	}
	if err := CheckConservation(l, supply); err != nil {
		return nil, nil, err
	}

	var negative []Entry
	for _, e := range l.Entries() {
		if e.Balance < 0 {
			negative = append(negative, e)
		}
	}

	if len(negative) > 0 && !opts.Force {
		for _, e := range negative {
			logger.ErrorContext(ctx, "address was incorrectly processed",
				"address", e.Address,
				"balance", e.Balance,
			)
		}
		return nil, nil, &NegativeBalanceError{Entries: negative}
	}

	for _, e := range negative {
		logger.WarnContext(ctx, "removing holder with invalid balance",
			"address", e.Address,
			"balance", e.Balance,
		)
		l.remove(e.Address)
	}
	report.Dropped = negative
	report.SumAfterDrops = l.Sum()

	if !report.Conserved() {
		logger.WarnContext(ctx, "ledger no longer conserves supply after dropping invalid balances",
			"supply", supply,
			"sum", report.SumAfterDrops,
			"dropped", len(negative),
		)
	}

	return l, report, nil
}
