package snapshot

import "sort"

// HolderTotal is one wallet's balances across several assets.
type HolderTotal struct {
	Address string `json:"address"`
	// Balances has one entry per column of the HolderTotals it belongs to.
	Balances []int64 `json:"balances"`
	Total    int64   `json:"total"`
}

// HolderTotals is the cross-asset holder table.
type HolderTotals struct {
	// Columns are unit names in the order the assets were requested.
	Columns []string      `json:"columns"`
	Holders []HolderTotal `json:"holders"`
}

// Aggregate combines the holders of every successful result. Assets sharing a unit
// name share a column. Holders are sorted by total descending; ties keep the order in
// which holders were first seen.
func Aggregate(results []*AssetResult) *HolderTotals {
	out := &HolderTotals{}
	column := map[string]int{}
	var ok []*AssetResult
	for _, r := range results {
		if r.Kind.Failed() || r.Holders == nil {
			continue
		}
		ok = append(ok, r)
		name := r.UnitName()
		if _, seen := column[name]; !seen {
			column[name] = len(out.Columns)
			out.Columns = append(out.Columns, name)
		}
	}

	index := map[string]int{}
	for _, r := range ok {
		col := column[r.UnitName()]
		for _, h := range r.Holders.Holders() {
			i, seen := index[h.Address]
			if !seen {
				i = len(out.Holders)
				index[h.Address] = i
				out.Holders = append(out.Holders, HolderTotal{
					Address:  h.Address,
					Balances: make([]int64, len(out.Columns)),
				})
			}
			out.Holders[i].Balances[col] += h.Balance
			out.Holders[i].Total += h.Balance
		}
	}

	sort.SliceStable(out.Holders, func(i, j int) bool {
		return out.Holders[i].Total > out.Holders[j].Total
	})
	return out
}
