package store

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "strings"
    "time"

    "optiguide/internal/model"
)

func (d *DB) ListSupplyNodes(ctx context.Context) ([]model.SupplyNode, error) {
    rows, err := d.db.QueryContext(ctx, `SELECT id, name, lat, lon, inventory FROM warehouses ORDER BY id`)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.SupplyNode{}
    for rows.Next() {
        var n model.SupplyNode
        var inv sql.NullFloat64
        if err := rows.Scan(&n.ID, &n.Name, &n.Location.Lat, &n.Location.Lon, &inv); err != nil { return nil, err }
        if inv.Valid {
            v := inv.Float64
            n.Inventory = &v
        }
        out = append(out, n)
    }
    return out, rows.Err()
}

func (d *DB) ListDemandNodes(ctx context.Context) ([]model.DemandNode, error) {
    rows, err := d.db.QueryContext(ctx, `SELECT id, name, demand, lat, lon FROM retailers ORDER BY id`)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.DemandNode{}
    for rows.Next() {
        var n model.DemandNode
        if err := rows.Scan(&n.ID, &n.Name, &n.Demand, &n.Location.Lat, &n.Location.Lon); err != nil { return nil, err }
        out = append(out, n)
    }
    return out, rows.Err()
}

func (d *DB) ListRoutes(ctx context.Context) ([]model.Route, error) {
    rows, err := d.db.QueryContext(ctx, `SELECT id, warehouse_id, retailer_id, cost FROM routes ORDER BY id`)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Route{}
    for rows.Next() {
        var r model.Route
        if err := rows.Scan(&r.ID, &r.SupplyID, &r.DemandID, &r.Cost); err != nil { return nil, err }
        out = append(out, r)
    }
    return out, rows.Err()
}

// SeedNetwork replaces the baseline tables with n in one transaction.
func (d *DB) SeedNetwork(ctx context.Context, n model.Network) error {
    tx, err := d.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()

    for _, stmt := range []string{`DELETE FROM routes`, `DELETE FROM retailers`, `DELETE FROM warehouses`} {
        if _, err := tx.ExecContext(ctx, stmt); err != nil { return err }
    }
    for _, w := range n.Supply {
        var inv any
        if w.Inventory != nil { inv = *w.Inventory }
        if _, err := tx.ExecContext(ctx, d.q(`INSERT INTO warehouses (id, name, lat, lon, inventory) VALUES (?,?,?,?,?)`),
            w.ID, w.Name, w.Location.Lat, w.Location.Lon, inv); err != nil {
            return fmt.Errorf("warehouse %d: %w", w.ID, err)
        }
    }
    for _, r := range n.Demand {
        if _, err := tx.ExecContext(ctx, d.q(`INSERT INTO retailers (id, name, demand, lat, lon) VALUES (?,?,?,?,?)`),
            r.ID, r.Name, r.Demand, r.Location.Lat, r.Location.Lon); err != nil {
            return fmt.Errorf("retailer %d: %w", r.ID, err)
        }
    }
    for _, e := range n.Routes {
        if _, err := tx.ExecContext(ctx, d.q(`INSERT INTO routes (id, warehouse_id, retailer_id, cost) VALUES (?,?,?,?)`),
            e.ID, e.SupplyID, e.DemandID, e.Cost); err != nil {
            return fmt.Errorf("route %d: %w", e.ID, err)
        }
    }
    return tx.Commit()
}

func (d *DB) ListOverrides(ctx context.Context, scenarioID int64) ([]model.Override, error) {
    rows, err := d.db.QueryContext(ctx, d.q(`SELECT id, scenario_id, table_name, row_id, column_name, override_value
        FROM scenario_override WHERE scenario_id = ? ORDER BY id`), scenarioID)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Override{}
    for rows.Next() {
        var o model.Override
        if err := rows.Scan(&o.ID, &o.ScenarioID, &o.TableName, &o.RowID, &o.ColumnName, &o.Value); err != nil { return nil, err }
        out = append(out, o)
    }
    return out, rows.Err()
}

func (d *DB) ReplaceOverrides(ctx context.Context, scenarioID int64, overrides []model.Override) error {
    tx, err := d.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    if _, err := d.scenarioTx(ctx, tx, scenarioID); err != nil { return err }
    if err := d.replaceTx(ctx, tx, scenarioID, overrides); err != nil { return err }
    return tx.Commit()
}

func (d *DB) replaceTx(ctx context.Context, tx *sql.Tx, scenarioID int64, overrides []model.Override) error {
    if _, err := tx.ExecContext(ctx, d.q(`DELETE FROM scenario_override WHERE scenario_id = ?`), scenarioID); err != nil {
        return err
    }
    // one row at a time keeps id order equal to slice order
    for _, o := range overrides {
        if _, err := tx.ExecContext(ctx, d.q(`INSERT INTO scenario_override (scenario_id, table_name, row_id, column_name, override_value)
            VALUES (?,?,?,?,?)`), scenarioID, o.TableName, o.RowID, o.ColumnName, o.Value); err != nil {
            return err
        }
    }
    return nil
}

func (d *DB) DeleteScenario(ctx context.Context, scenarioID int64) error {
    tx, err := d.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    if _, err := tx.ExecContext(ctx, d.q(`DELETE FROM scenario_override WHERE scenario_id = ?`), scenarioID); err != nil { return err }
    res, err := tx.ExecContext(ctx, d.q(`DELETE FROM scenario WHERE scenario_id = ?`), scenarioID)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return tx.Commit()
}

func (d *DB) CreateScenario(ctx context.Context, s model.Scenario) (model.Scenario, error) {
    if strings.TrimSpace(s.Name) == "" { return model.Scenario{}, fmt.Errorf("%w: scenario name required", ErrInvalid) }
    tx, err := d.db.BeginTx(ctx, nil)
    if err != nil { return model.Scenario{}, err }
    defer func(){ _ = tx.Rollback() }()
    out, err := d.createTx(ctx, tx, s)
    if err != nil { return model.Scenario{}, err }
    return out, tx.Commit()
}

func (d *DB) createTx(ctx context.Context, tx *sql.Tx, s model.Scenario) (model.Scenario, error) {
    s.Type = scenarioType(s.Type)
    if s.CreatedAt.IsZero() { s.CreatedAt = time.Now().UTC() }
    err := tx.QueryRowContext(ctx, d.q(`INSERT INTO scenario (name, description, type, created_at) VALUES (?,?,?,?) RETURNING scenario_id`),
        s.Name, s.Description, s.Type, d.timeArg(s.CreatedAt)).Scan(&s.ID)
    if err != nil { return model.Scenario{}, err }
    return s, nil
}

// timeArg stores timestamps as RFC3339 text for SQLite.
func (d *DB) timeArg(t time.Time) any {
    if d.driver == "sqlite" { return t.UTC().Format(time.RFC3339Nano) }
    return t
}

func (d *DB) GetScenario(ctx context.Context, id int64) (model.Scenario, error) {
    return d.scenarioRow(d.db.QueryRowContext(ctx, d.q(`SELECT scenario_id, name, description, type, created_at FROM scenario WHERE scenario_id = ?`), id))
}

func (d *DB) scenarioTx(ctx context.Context, tx *sql.Tx, id int64) (model.Scenario, error) {
    return d.scenarioRow(tx.QueryRowContext(ctx, d.q(`SELECT scenario_id, name, description, type, created_at FROM scenario WHERE scenario_id = ?`), id))
}

func (d *DB) scenarioRow(row *sql.Row) (model.Scenario, error) {
    var s model.Scenario
    var created any
    if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Type, &created); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.Scenario{}, ErrNotFound }
        return model.Scenario{}, err
    }
    s.CreatedAt = parseTime(created)
    return s, nil
}

func (d *DB) ListScenarios(ctx context.Context) ([]model.Scenario, error) {
    rows, err := d.db.QueryContext(ctx, `SELECT scenario_id, name, description, type, created_at FROM scenario ORDER BY scenario_id`)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Scenario{}
    for rows.Next() {
        var s model.Scenario
        var created any
        if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Type, &created); err != nil { return nil, err }
        s.CreatedAt = parseTime(created)
        out = append(out, s)
    }
    return out, rows.Err()
}

// SaveScenario resolves or creates the scenario and replaces its overrides in
// a single transaction.
func (d *DB) SaveScenario(ctx context.Context, req SaveRequest) (model.Scenario, error) {
    tx, err := d.db.BeginTx(ctx, nil)
    if err != nil { return model.Scenario{}, err }
    defer func(){ _ = tx.Rollback() }()

    var s model.Scenario
    if req.ScenarioID == 0 {
        if strings.TrimSpace(req.Name) == "" { return model.Scenario{}, fmt.Errorf("%w: scenario name required", ErrInvalid) }
        typ := scenarioType(req.Type)
        var id int64
        err = tx.QueryRowContext(ctx, d.q(`SELECT scenario_id FROM scenario WHERE name = ? AND type = ? ORDER BY scenario_id LIMIT 1`), req.Name, typ).Scan(&id)
        switch {
        case err == nil:
            if s, err = d.scenarioTx(ctx, tx, id); err != nil { return model.Scenario{}, err }
        case errors.Is(err, sql.ErrNoRows):
            if s, err = d.createTx(ctx, tx, model.Scenario{Name: req.Name, Type: typ, Description: req.Description}); err != nil {
                return model.Scenario{}, err
            }
        default:
            return model.Scenario{}, err
        }
    } else {
        if s, err = d.scenarioTx(ctx, tx, req.ScenarioID); err != nil { return model.Scenario{}, err }
        if req.Name != "" && req.Name != s.Name {
            if _, err := tx.ExecContext(ctx, d.q(`UPDATE scenario SET name = ? WHERE scenario_id = ?`), req.Name, s.ID); err != nil {
                return model.Scenario{}, err
            }
            s.Name = req.Name
        }
    }
    if err := d.replaceTx(ctx, tx, s.ID, req.Overrides); err != nil { return model.Scenario{}, err }
    if err := tx.Commit(); err != nil { return model.Scenario{}, err }
    return s, nil
}
