// Package scenario turns a baseline network plus a scenario's stored overrides
// into the effective dataset a solve runs against.
package scenario

import (
	"sort"
	"strings"

	"optiguide/internal/model"
)

// Dataset is the effective network for one solve. Skipped lists overrides that
// referenced nothing in the network.
type Dataset struct {
	model.Network
	Skipped []UnknownReference `json:"skipped,omitempty"`
}

type groupKey struct {
	table  string
	row    int64
	column string
}

// Materialize applies overrides on top of a copy of baseline. Overrides are
// taken in insertion order; for each (table, row, column) only the last one is
// applied. baseline is never modified.
func Materialize(baseline model.Network, overrides []model.Override) (Dataset, error) {
	ds := Dataset{Network: baseline.Clone()}
	if len(overrides) == 0 {
		return ds, nil
	}

	winners := map[groupKey]int{}
	for i, o := range overrides {
		table, ok := CanonicalTable(o.TableName)
		if !ok {
			ds.Skipped = append(ds.Skipped, UnknownReference{Override: o, Reason: UnknownTable})
			continue
		}
		winners[groupKey{table: table, row: o.RowID, column: strings.ToLower(strings.TrimSpace(o.ColumnName))}] = i
	}

	// Apply in insertion order of the winning rows so errors are reported deterministically.
	type win struct {
		key groupKey
		idx int
	}
	ordered := make([]win, 0, len(winners))
	for k, i := range winners {
		ordered = append(ordered, win{key: k, idx: i})
	}
	sort.Slice(ordered, func(a, b int) bool { return ordered[a].idx < ordered[b].idx })

	supplyIdx := indexSupply(ds.Supply)
	demandIdx := indexDemand(ds.Demand)
	routeIdx := indexRoutes(ds.Routes)

	for _, w := range ordered {
		o := overrides[w.idx]
		var (
			err    error
			reason string
		)
		switch w.key.table {
		case TableSupply:
			set, ok := supplyColumns[w.key.column]
			pos, found := supplyIdx[w.key.row]
			switch {
			case !ok:
				reason = UnknownColumn
			case !found:
				reason = UnknownRow
			default:
				err = set(&ds.Supply[pos], o.Value)
			}
		case TableDemand:
			set, ok := demandColumns[w.key.column]
			pos, found := demandIdx[w.key.row]
			switch {
			case !ok:
				reason = UnknownColumn
			case !found:
				reason = UnknownRow
			default:
				err = set(&ds.Demand[pos], o.Value)
			}
		case TableRoutes:
			set, ok := routeColumns[w.key.column]
			pos, found := routeIdx[w.key.row]
			switch {
			case !ok:
				reason = UnknownColumn
			case !found:
				reason = UnknownRow
			default:
				err = set(&ds.Routes[pos], o.Value)
			}
		}
		if reason != "" {
			ds.Skipped = append(ds.Skipped, UnknownReference{Override: o, Reason: reason})
			continue
		}
		if err != nil {
			return Dataset{}, &MalformedOverrideError{Override: o, Err: err}
		}
	}
	return ds, nil
}

func indexSupply(nodes []model.SupplyNode) map[int64]int {
	m := make(map[int64]int, len(nodes))
	for i, n := range nodes {
		m[n.ID] = i
	}
	return m
}

func indexDemand(nodes []model.DemandNode) map[int64]int {
	m := make(map[int64]int, len(nodes))
	for i, n := range nodes {
		m[n.ID] = i
	}
	return m
}

func indexRoutes(routes []model.Route) map[int64]int {
	m := make(map[int64]int, len(routes))
	for i, r := range routes {
		m[r.ID] = i
	}
	return m
}
