package store

import (
    "context"
    "fmt"
    "sort"
    "strings"
    "sync"
    "time"

    "optiguide/internal/model"
)

// Memory is a simple in-memory store used when no database is configured.
type Memory struct {
    mu        sync.Mutex
    network   model.Network
    scenarios map[int64]model.Scenario
    overrides map[int64][]model.Override // scenario id -> rows in insertion order
    nextScenarioID int64
    nextOverrideID int64
}

func NewMemory() *Memory {
    return &Memory{
        scenarios: map[int64]model.Scenario{},
        overrides: map[int64][]model.Override{},
        nextScenarioID: 1,
        nextOverrideID: 1,
    }
}

func (m *Memory) ListSupplyNodes(ctx context.Context) ([]model.SupplyNode, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    return m.network.Clone().Supply, nil
}

func (m *Memory) ListDemandNodes(ctx context.Context) ([]model.DemandNode, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    return m.network.Clone().Demand, nil
}

func (m *Memory) ListRoutes(ctx context.Context) ([]model.Route, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    return m.network.Clone().Routes, nil
}

func (m *Memory) SeedNetwork(ctx context.Context, n model.Network) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.network = n.Clone()
    return nil
}

func (m *Memory) ListOverrides(ctx context.Context, scenarioID int64) ([]model.Override, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    rows := m.overrides[scenarioID]
    out := make([]model.Override, len(rows))
    copy(out, rows)
    return out, nil
}

func (m *Memory) ReplaceOverrides(ctx context.Context, scenarioID int64, overrides []model.Override) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, ok := m.scenarios[scenarioID]; !ok { return ErrNotFound }
    m.replaceLocked(scenarioID, overrides)
    return nil
}

func (m *Memory) replaceLocked(scenarioID int64, overrides []model.Override) {
    rows := make([]model.Override, 0, len(overrides))
    for _, o := range overrides {
        o.ID = m.nextOverrideID
        m.nextOverrideID++
        o.ScenarioID = scenarioID
        rows = append(rows, o)
    }
    m.overrides[scenarioID] = rows
}

func (m *Memory) DeleteScenario(ctx context.Context, scenarioID int64) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if _, ok := m.scenarios[scenarioID]; !ok { return ErrNotFound }
    delete(m.scenarios, scenarioID)
    delete(m.overrides, scenarioID)
    return nil
}

func (m *Memory) CreateScenario(ctx context.Context, s model.Scenario) (model.Scenario, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if strings.TrimSpace(s.Name) == "" { return model.Scenario{}, fmt.Errorf("%w: scenario name required", ErrInvalid) }
    return m.createLocked(s), nil
}

func (m *Memory) createLocked(s model.Scenario) model.Scenario {
    s.ID = m.nextScenarioID
    m.nextScenarioID++
    s.Type = scenarioType(s.Type)
    if s.CreatedAt.IsZero() { s.CreatedAt = time.Now().UTC() }
    m.scenarios[s.ID] = s
    return s
}

func (m *Memory) GetScenario(ctx context.Context, id int64) (model.Scenario, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s, ok := m.scenarios[id]
    if !ok { return model.Scenario{}, ErrNotFound }
    return s, nil
}

func (m *Memory) ListScenarios(ctx context.Context) ([]model.Scenario, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := make([]model.Scenario, 0, len(m.scenarios))
    for _, s := range m.scenarios { out = append(out, s) }
    sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
    return out, nil
}

// SaveScenario holds the lock for the whole lookup/create/replace so a
// concurrent solve never sees a half-replaced override set.
func (m *Memory) SaveScenario(ctx context.Context, req SaveRequest) (model.Scenario, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var s model.Scenario
    if req.ScenarioID == 0 {
        if strings.TrimSpace(req.Name) == "" { return model.Scenario{}, fmt.Errorf("%w: scenario name required", ErrInvalid) }
        typ := scenarioType(req.Type)
        found := false
        for _, existing := range m.scenarios {
            if existing.Name == req.Name && existing.Type == typ && (!found || existing.ID < s.ID) {
                s, found = existing, true
            }
        }
        if !found {
            s = m.createLocked(model.Scenario{Name: req.Name, Type: typ, Description: req.Description})
        }
    } else {
        var ok bool
        s, ok = m.scenarios[req.ScenarioID]
        if !ok { return model.Scenario{}, ErrNotFound }
        if req.Name != "" {
            s.Name = req.Name
            m.scenarios[s.ID] = s
        }
    }
    m.replaceLocked(s.ID, req.Overrides)
    return s, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
func (m *Memory) Close() error                  { return nil }
