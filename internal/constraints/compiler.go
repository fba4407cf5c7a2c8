// Package constraints compiles typed constraint facts into the filtered model
// the assignment optimizer solves.
package constraints

import (
	"math"
	"strings"

	"optiguide/internal/model"
	"optiguide/internal/scenario"
)

// Model is the filtered input to the optimizer.
type Model struct {
	Supply []model.SupplyNode
	Demand []model.DemandNode
	// Edges are the routes that survived exclusion and cost bounds.
	Edges []model.Route
	// LowerBounds maps demand id to the minimum number of selected incoming
	// edges. Only demand nodes with positive demand appear.
	LowerBounds map[int64]int
	// Excluded holds supply ids removed by ExcludeSupply or MinInventory.
	Excluded map[int64]bool
	// MaxCost is the tightest route cost bound, or +Inf.
	MaxCost float64
	// Metadata carries facts that do not shape the model.
	Metadata map[string]any
	// Ignored counts facts of unrecognized kinds.
	Ignored int
}

// Compile applies facts to ds. It never fails: unmatched names and unknown
// fact kinds are inert.
func Compile(ds scenario.Dataset, facts []model.Fact) Model {
	m := Model{
		Supply:      ds.Supply,
		Demand:      ds.Demand,
		LowerBounds: map[int64]int{},
		Excluded:    map[int64]bool{},
		MaxCost:     math.Inf(1),
	}
	meta := newMetadata()

	for _, f := range facts {
		switch f.Kind {
		case model.FactExcludeSupply:
			for _, s := range ds.Supply {
				if strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(f.Name)) {
					m.Excluded[s.ID] = true
				}
			}
		case model.FactMaxRouteCost, model.FactMaxBudget:
			if f.Value < m.MaxCost {
				m.MaxCost = f.Value
			}
		case model.FactMinInventory:
			for _, s := range ds.Supply {
				if f.Name != "" && !strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(f.Name)) {
					continue
				}
				if s.Inventory != nil && *s.Inventory < f.Value {
					m.Excluded[s.ID] = true
				}
			}
		default:
			if !f.Known() {
				m.Ignored++
				continue
			}
			meta.add(f)
		}
	}

	known := make(map[int64]bool, len(ds.Supply))
	for _, sn := range ds.Supply {
		known[sn.ID] = true
	}
	for _, r := range ds.Routes {
		if !known[r.SupplyID] || m.Excluded[r.SupplyID] || r.Cost > m.MaxCost {
			continue
		}
		m.Edges = append(m.Edges, r)
	}
	for _, d := range ds.Demand {
		if d.Demand > 0 {
			m.LowerBounds[d.ID] = 1
		}
	}
	m.Metadata = meta.export()
	return m
}

// EdgesInto returns the retained edges ending at demand id.
func (m Model) EdgesInto(demandID int64) []model.Route {
	var out []model.Route
	for _, e := range m.Edges {
		if e.DemandID == demandID {
			out = append(out, e)
		}
	}
	return out
}

// metadata resolves include/exclude pairs on the same label last-applicable-wins
// and keeps the last value for scalar targets.
type metadata struct {
	channels map[string]bool
	skus     map[string]bool
	order    map[string][]string
	scalars  map[string]any
}

func newMetadata() *metadata {
	return &metadata{channels: map[string]bool{}, skus: map[string]bool{}, order: map[string][]string{}, scalars: map[string]any{}}
}

func (md *metadata) add(f model.Fact) {
	switch f.Kind {
	case model.FactChannelInclude, model.FactChannelExclude:
		md.mark("channels", md.channels, f.Label, f.Kind == model.FactChannelInclude)
	case model.FactSkuFocus, model.FactSkuExclude:
		md.mark("skus", md.skus, f.Label, f.Kind == model.FactSkuFocus)
	case model.FactPromoDuration:
		md.scalars["promo_duration"] = f.Text
	case model.FactMinROI:
		md.scalars["min_roi"] = f.Value
	case model.FactMinLift:
		md.scalars["min_lift"] = f.Value
	case model.FactDiscountLimit:
		md.scalars["discount_limit"] = f.Value
	}
}

func (md *metadata) mark(group string, set map[string]bool, label string, include bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	if key == "" {
		return
	}
	if _, seen := set[key]; !seen {
		md.order[group] = append(md.order[group], label)
	}
	set[key] = include
}

func (md *metadata) export() map[string]any {
	out := map[string]any{}
	for k, v := range md.scalars {
		out[k] = v
	}
	split := func(group string, set map[string]bool, inKey, outKey string) {
		var in, ex []string
		for _, label := range md.order[group] {
			if set[strings.ToLower(strings.TrimSpace(label))] {
				in = append(in, label)
			} else {
				ex = append(ex, label)
			}
		}
		if len(in) > 0 {
			out[inKey] = in
		}
		if len(ex) > 0 {
			out[outKey] = ex
		}
	}
	split("channels", md.channels, "channel_include", "channel_exclude")
	split("skus", md.skus, "sku_focus", "sku_exclude")
	if len(out) == 0 {
		return nil
	}
	return out
}
