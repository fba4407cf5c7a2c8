package scenario

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"optiguide/internal/model"
)

// Canonical override table names. Aliases map the node vocabulary onto them.
const (
	TableSupply = "warehouses"
	TableDemand = "retailers"
	TableRoutes = "routes"
)

var tableAliases = map[string]string{
	"warehouses":   TableSupply,
	"warehouse":    TableSupply,
	"supply_nodes": TableSupply,
	"retailers":    TableDemand,
	"retailer":     TableDemand,
	"demand_nodes": TableDemand,
	"routes":       TableRoutes,
	"route":        TableRoutes,
}

// CanonicalTable resolves a table name or alias. ok is false for unknown tables.
func CanonicalTable(name string) (string, bool) {
	t, ok := tableAliases[strings.ToLower(strings.TrimSpace(name))]
	return t, ok
}

type supplySetter func(n *model.SupplyNode, raw string) error
type demandSetter func(n *model.DemandNode, raw string) error
type routeSetter func(r *model.Route, raw string) error

var supplyColumns = map[string]supplySetter{
	"name": func(n *model.SupplyNode, raw string) error { n.Name = raw; return nil },
	"lat": func(n *model.SupplyNode, raw string) error {
		v, err := parseNumber(raw, false)
		n.Location.Lat = v
		return err
	},
	"lon": func(n *model.SupplyNode, raw string) error {
		v, err := parseNumber(raw, false)
		n.Location.Lon = v
		return err
	},
	"inventory": func(n *model.SupplyNode, raw string) error {
		v, err := parseNumber(raw, true)
		if err != nil {
			return err
		}
		n.Inventory = &v
		return nil
	},
}

var demandColumns = map[string]demandSetter{
	"name": func(n *model.DemandNode, raw string) error { n.Name = raw; return nil },
	"demand": func(n *model.DemandNode, raw string) error {
		v, err := parseNumber(raw, true)
		n.Demand = v
		return err
	},
	"lat": func(n *model.DemandNode, raw string) error {
		v, err := parseNumber(raw, false)
		n.Location.Lat = v
		return err
	},
	"lon": func(n *model.DemandNode, raw string) error {
		v, err := parseNumber(raw, false)
		n.Location.Lon = v
		return err
	},
}

var routeColumns = map[string]routeSetter{
	"cost": func(r *model.Route, raw string) error {
		v, err := parseNumber(raw, true)
		r.Cost = v
		return err
	},
}

// Columns lists the patchable columns of a canonical table.
func Columns(table string) []string {
	var out []string
	switch table {
	case TableSupply:
		for k := range supplyColumns {
			out = append(out, k)
		}
	case TableDemand:
		for k := range demandColumns {
			out = append(out, k)
		}
	case TableRoutes:
		for k := range routeColumns {
			out = append(out, k)
		}
	}
	return out
}

// CheckValue reports whether raw would parse for table.column, using the same
// setters Materialize applies. table may be an alias.
func CheckValue(table, column, raw string) error {
	canon, ok := CanonicalTable(table)
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	column = strings.ToLower(strings.TrimSpace(column))
	var err error
	switch canon {
	case TableSupply:
		set, ok := supplyColumns[column]
		if !ok {
			return fmt.Errorf("unknown column %s.%s", canon, column)
		}
		err = set(&model.SupplyNode{}, raw)
	case TableDemand:
		set, ok := demandColumns[column]
		if !ok {
			return fmt.Errorf("unknown column %s.%s", canon, column)
		}
		err = set(&model.DemandNode{}, raw)
	case TableRoutes:
		set, ok := routeColumns[column]
		if !ok {
			return fmt.Errorf("unknown column %s.%s", canon, column)
		}
		err = set(&model.Route{}, raw)
	}
	if err != nil {
		return fmt.Errorf("%s.%s: %w", canon, column, err)
	}
	return nil
}

func parseNumber(raw string, nonNegative bool) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("not a finite number: %q", raw)
	}
	if nonNegative && v < 0 {
		return 0, fmt.Errorf("must be >= 0: %q", raw)
	}
	return v, nil
}
