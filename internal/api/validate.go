package api

import (
	"fmt"
	"strings"

	"optiguide/internal/model"
	"optiguide/internal/scenario"
)

func validateScenarioType(t string) error {
	switch t {
	case "", model.ScenarioSupply, model.ScenarioTPO, model.ScenarioFinance:
		return nil
	}
	return fmt.Errorf("invalid scenario type: %s (allowed: supply,tpo,finance)", t)
}

// validateChanges checks table and column names up front so a typo is
// reported instead of silently skipped at solve time. Values must parse for
// their column, otherwise every later read of the session would fail.
func validateChanges(changes []model.Change) ([]model.Change, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("changes must not be empty")
	}
	out := make([]model.Change, 0, len(changes))
	for i, c := range changes {
		table, ok := scenario.CanonicalTable(c.Table)
		if !ok {
			return nil, fmt.Errorf("changes[%d]: unknown table %q", i, c.Table)
		}
		col := strings.ToLower(strings.TrimSpace(c.Column))
		known := false
		for _, k := range scenario.Columns(table) {
			if k == col {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("changes[%d]: unknown column %q for %s", i, c.Column, table)
		}
		if c.RowID <= 0 {
			return nil, fmt.Errorf("changes[%d]: row_id must be > 0", i)
		}
		if err := scenario.CheckValue(table, col, c.NewValue); err != nil {
			return nil, fmt.Errorf("changes[%d]: %w", i, err)
		}
		c.Table, c.Column = table, col
		out = append(out, c)
	}
	return out, nil
}
