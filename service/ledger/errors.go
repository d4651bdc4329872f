package ledger

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrLedgerInvariant is wrapped by every accounting invariant violation.
	ErrLedgerInvariant = errors.New("ledger invariant violated")

	// ErrConservation means the replayed balances no longer add up to the supply.
	ErrConservation = errors.New("ledger does not conserve supply")
)

// NegativeBalanceError lists the entries left negative after replay.
type NegativeBalanceError struct {
	Entries []Entry
}

func (e *NegativeBalanceError) Error() string {
	parts := make([]string, 0, len(e.Entries))
	for _, entry := range e.Entries {
		parts = append(parts, fmt.Sprintf("%s=%d", entry.Address, entry.Balance))
	}
	return fmt.Sprintf("negative balance after replay: %s", strings.Join(parts, ", "))
}

func (e *NegativeBalanceError) Unwrap() error {
	return ErrLedgerInvariant
}

// CheckConservation verifies that the ledger's balances add up to supply.
func CheckConservation(l *Ledger, supply int64) error {
	if sum := l.Sum(); sum != supply {
		return fmt.Errorf("%w: sum %d, supply %d", ErrConservation, sum, supply)
	}
	return nil
}
