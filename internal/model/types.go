package model

import "time"

// Core domain types for the supply network and its scenarios.

type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// SupplyNode is a warehouse. Inventory is nil when the network does not track it.
type SupplyNode struct {
	ID        int64    `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Location  GeoPoint `json:"location" yaml:"location"`
	Inventory *float64 `json:"inventory,omitempty" yaml:"inventory,omitempty"`
}

// DemandNode is a retailer.
type DemandNode struct {
	ID       int64    `json:"id" yaml:"id"`
	Name     string   `json:"name" yaml:"name"`
	Demand   float64  `json:"demand" yaml:"demand"`
	Location GeoPoint `json:"location" yaml:"location"`
}

// Route is the edge between a warehouse and a retailer.
type Route struct {
	ID       int64   `json:"id" yaml:"id"`
	SupplyID int64   `json:"supply_id" yaml:"supply_id"`
	DemandID int64   `json:"demand_id" yaml:"demand_id"`
	Cost     float64 `json:"cost" yaml:"cost"`
}

// Network is a full set of supply nodes, demand nodes and routes. The baseline
// and every materialized scenario share this shape.
type Network struct {
	Supply []SupplyNode `json:"warehouses" yaml:"warehouses"`
	Demand []DemandNode `json:"retailers" yaml:"retailers"`
	Routes []Route      `json:"routes" yaml:"routes"`
}

// Clone returns a deep copy; inventory pointers are not shared.
func (n Network) Clone() Network {
	out := Network{
		Supply: make([]SupplyNode, len(n.Supply)),
		Demand: make([]DemandNode, len(n.Demand)),
		Routes: make([]Route, len(n.Routes)),
	}
	copy(out.Supply, n.Supply)
	copy(out.Demand, n.Demand)
	copy(out.Routes, n.Routes)
	for i := range out.Supply {
		if inv := out.Supply[i].Inventory; inv != nil {
			v := *inv
			out.Supply[i].Inventory = &v
		}
	}
	return out
}

// Scenario types.
const (
	ScenarioSupply  = "supply"
	ScenarioTPO     = "tpo"
	ScenarioFinance = "finance"
)

type Scenario struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
}

// Override patches one column of one row for one scenario. Value is stored as
// text and parsed when the scenario is materialized.
type Override struct {
	ID         int64  `json:"id"`
	ScenarioID int64  `json:"scenario_id"`
	TableName  string `json:"table_name"`
	RowID      int64  `json:"row_id"`
	ColumnName string `json:"column_name"`
	Value      string `json:"override_value"`
}

// Change is an unsaved override accumulated in a session buffer.
type Change struct {
	Table    string `json:"table"`
	RowID    int64  `json:"row_id"`
	Column   string `json:"column"`
	NewValue string `json:"new_value"`
}

// AsOverride converts a buffered change into an override row for scenarioID.
func (c Change) AsOverride(scenarioID int64) Override {
	return Override{ScenarioID: scenarioID, TableName: c.Table, RowID: c.RowID, ColumnName: c.Column, Value: c.NewValue}
}

// ChangeFromOverride is the inverse of AsOverride, used to re-hydrate a buffer.
func ChangeFromOverride(o Override) Change {
	return Change{Table: o.TableName, RowID: o.RowID, Column: o.ColumnName, NewValue: o.Value}
}

type Assignment struct {
	SupplyID int64   `json:"warehouse_id"`
	DemandID int64   `json:"retailer_id"`
	Cost     float64 `json:"cost"`
}

type SolveStatus string

const (
	StatusOptimal    SolveStatus = "Optimal"
	StatusInfeasible SolveStatus = "Infeasible"
	StatusUnbounded  SolveStatus = "Unbounded"
	StatusError      SolveStatus = "Error"
)

// SolveResult is handed to narrative generation. Assignments is never nil.
type SolveResult struct {
	Status      SolveStatus    `json:"status"`
	Assignments []Assignment   `json:"assignments"`
	TotalCost   float64        `json:"total_cost"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// ErrorResult builds an Error-status result carrying msg.
func ErrorResult(msg string) SolveResult {
	return SolveResult{Status: StatusError, Assignments: []Assignment{}, Message: msg}
}
