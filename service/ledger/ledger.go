// Package ledger replays classified transfers into per-address balances and filters
// the result down to the holders eligible for a draw.
package ledger

// Entry is one address and its balance.
type Entry struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

// Ledger maps addresses to balances, iterating in the order addresses were first seen.
// A Ledger returned by Replay is never modified afterwards.
type Ledger struct {
	order    []string
	balances map[string]int64
}

func newLedger() *Ledger {
	return &Ledger{balances: make(map[string]int64)}
}

// ensure initialises addr to zero if it has not been seen yet.
func (l *Ledger) ensure(addr string) {
	if _, ok := l.balances[addr]; !ok {
		l.balances[addr] = 0
		l.order = append(l.order, addr)
	}
}

// remove deletes addr, keeping the order of the remaining entries.
func (l *Ledger) remove(addr string) {
	if _, ok := l.balances[addr]; !ok {
		return
	}
	delete(l.balances, addr)
	for i, a := range l.order {
		if a == addr {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// Balance returns the balance of addr and whether it is present.
func (l *Ledger) Balance(addr string) (int64, bool) {
	b, ok := l.balances[addr]
	return b, ok
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.order)
}

// Addresses returns the addresses in first-seen order.
func (l *Ledger) Addresses() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Entries returns all entries in first-seen order.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.order))
	for _, addr := range l.order {
		out = append(out, Entry{Address: addr, Balance: l.balances[addr]})
	}
	return out
}

// Sum returns the total of all balances.
func (l *Ledger) Sum() int64 {
	var sum int64
	for _, b := range l.balances {
		sum += b
	}
	return sum
}
