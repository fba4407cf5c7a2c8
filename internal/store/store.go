package store

import (
    "context"
    "errors"

    "optiguide/internal/model"
)

// NetworkRepository serves the baseline network by full scan.
type NetworkRepository interface {
    ListSupplyNodes(ctx context.Context) ([]model.SupplyNode, error)
    ListDemandNodes(ctx context.Context) ([]model.DemandNode, error)
    ListRoutes(ctx context.Context) ([]model.Route, error)
}

// OverrideStore persists scenario overrides. ListOverrides returns rows in
// insertion order; ReplaceOverrides deletes and inserts atomically.
type OverrideStore interface {
    ListOverrides(ctx context.Context, scenarioID int64) ([]model.Override, error)
    ReplaceOverrides(ctx context.Context, scenarioID int64, overrides []model.Override) error
    DeleteScenario(ctx context.Context, scenarioID int64) error
}

// Store is the persistence interface used by the API server.
type Store interface {
    NetworkRepository
    OverrideStore

    // Scenarios
    CreateScenario(ctx context.Context, s model.Scenario) (model.Scenario, error)
    GetScenario(ctx context.Context, id int64) (model.Scenario, error)
    ListScenarios(ctx context.Context) ([]model.Scenario, error)
    SaveScenario(ctx context.Context, req SaveRequest) (model.Scenario, error)

    // Baseline
    SeedNetwork(ctx context.Context, n model.Network) error

    Ping(ctx context.Context) error
    Close() error
}

// SaveRequest persists a scenario's full override set. With ScenarioID == 0 a
// scenario is looked up by (Name, Type) and created when absent; otherwise the
// scenario must exist and is renamed when Name is set. Overrides always
// replace what was stored.
type SaveRequest struct {
    ScenarioID  int64
    Name        string
    Type        string
    Description string
    Overrides   []model.Override
}

var (
    ErrNotFound = errors.New("not found")
    ErrInvalid  = errors.New("invalid request")
)

// LoadNetwork reads the full baseline through repo.
func LoadNetwork(ctx context.Context, repo NetworkRepository) (model.Network, error) {
    var n model.Network
    var err error
    if n.Supply, err = repo.ListSupplyNodes(ctx); err != nil {
        return n, err
    }
    if n.Demand, err = repo.ListDemandNodes(ctx); err != nil {
        return n, err
    }
    if n.Routes, err = repo.ListRoutes(ctx); err != nil {
        return n, err
    }
    return n, nil
}

func scenarioType(t string) string {
    if t == "" {
        return model.ScenarioSupply
    }
    return t
}
