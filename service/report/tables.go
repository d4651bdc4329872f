package report

import (
	"github.com/brojonat/rafflebandz/service/slots"
	"github.com/brojonat/rafflebandz/service/snapshot"
)

// RosterTable lists each holder once with its balance.
func RosterTable(rows []slots.RosterRow) Table {
	t := Table{Header: []any{"Wallet", "Balance"}, Rows: make([][]any, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, []any{r.Address, r.Balance})
	}
	return t
}

// SlotsTable lists one row per slot.
func SlotsTable(ss []slots.Slot) Table {
	t := Table{Header: []any{"Wallet", "Tickets Held", "Slot"}, Rows: make([][]any, 0, len(ss))}
	for _, s := range ss {
		t.Rows = append(t.Rows, []any{s.Address, s.Balance, s.Number})
	}
	return t
}

// HolderTotalsTable lists each wallet with one column per unit name and a total.
func HolderTotalsTable(totals *snapshot.HolderTotals) Table {
	header := make([]any, 0, len(totals.Columns)+2)
	header = append(header, "Wallet")
	for _, c := range totals.Columns {
		header = append(header, c)
	}
	header = append(header, "Total Held")

	t := Table{Header: header, Rows: make([][]any, 0, len(totals.Holders))}
	for _, h := range totals.Holders {
		row := make([]any, 0, len(h.Balances)+2)
		row = append(row, h.Address)
		for _, b := range h.Balances {
			row = append(row, b)
		}
		row = append(row, h.Total)
		t.Rows = append(t.Rows, row)
	}
	return t
}
