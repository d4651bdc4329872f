package ledger

import (
	"context"
	"io"
	"log/slog"
	"sort"
)

// Holder is an address eligible for slot allocation, with a positive balance.
type Holder struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
}

// HolderSet is a filtered ledger: only positive balances, no issuer, no excluded
// addresses. Holders keep the ledger's first-seen order.
type HolderSet struct {
	holders []Holder
	index   map[string]int
}

// NewHolderSet builds a HolderSet from holders, dropping non-positive balances and
// keeping the first occurrence of a repeated address.
func NewHolderSet(holders []Holder) *HolderSet {
	hs := &HolderSet{index: make(map[string]int, len(holders))}
	for _, h := range holders {
		if h.Balance <= 0 {
			continue
		}
		if _, dup := hs.index[h.Address]; dup {
			continue
		}
		hs.index[h.Address] = len(hs.holders)
		hs.holders = append(hs.holders, h)
	}
	return hs
}

// Len returns the number of holders.
func (hs *HolderSet) Len() int {
	return len(hs.holders)
}

// Holders returns the holders in ledger order.
func (hs *HolderSet) Holders() []Holder {
	out := make([]Holder, len(hs.holders))
	copy(out, hs.holders)
	return out
}

// Balance returns the balance of addr, or zero when it is not a holder.
func (hs *HolderSet) Balance(addr string) int64 {
	if i, ok := hs.index[addr]; ok {
		return hs.holders[i].Balance
	}
	return 0
}

// Total returns the sum of all balances.
func (hs *HolderSet) Total() int64 {
	var total int64
	for _, h := range hs.holders {
		total += h.Balance
	}
	return total
}

// Sorted returns the holders by descending balance. Equal balances keep ledger order.
func (hs *HolderSet) Sorted() []Holder {
	out := hs.Holders()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Balance > out[j].Balance
	})
	return out
}

// FilterReport describes what Filter removed.
type FilterReport struct {
	IssuerResidual int64    `json:"issuer_residual"`
	ZeroBalances   []string `json:"zero_balances,omitempty"`
	Excluded       []string `json:"excluded,omitempty"`
}

// Filter removes the issuer, zero balances and excluded addresses from l.
// A positive issuer balance is logged as a warning: it is supply that never left
// the issuer.
func Filter(ctx context.Context, l *Ledger, issuer string, excluded []string, logger *slog.Logger) (*HolderSet, *FilterReport) {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	skip := make(map[string]struct{}, len(excluded))
	for _, addr := range excluded {
		skip[addr] = struct{}{}
	}

	report := &FilterReport{}
	holders := make([]Holder, 0, l.Len())
	for _, e := range l.Entries() {
		if e.Address == issuer {
			if e.Balance > 0 {
				report.IssuerResidual = e.Balance
				logger.WarnContext(ctx, "issuer wallet is not empty",
					"address", e.Address,
					"balance", e.Balance,
				)
			}
			continue
		}

		if e.Balance == 0 {
			logger.DebugContext(ctx, "removing holder with zero balance", "address", e.Address)
			report.ZeroBalances = append(report.ZeroBalances, e.Address)
			continue
		}

		if _, ok := skip[e.Address]; ok {
			logger.InfoContext(ctx, "removing excluded holder",
				"address", e.Address,
				"balance", e.Balance,
			)
			report.Excluded = append(report.Excluded, e.Address)
			continue
		}

		holders = append(holders, Holder{Address: e.Address, Balance: e.Balance})
	}

	hs := NewHolderSet(holders)
	logger.InfoContext(ctx, "filtered holders", "holders", hs.Len(), "total", hs.Total())
	return hs, report
}
