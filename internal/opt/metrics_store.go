package opt

import (
    "sort"
    "sync"
    "time"
)

// SolveRecord is the last solve seen for one scenario (0 = baseline).
type SolveRecord struct {
    ScenarioID int64     `json:"scenario_id"`
    Status     string    `json:"status"`
    TotalCost  float64   `json:"total_cost"`
    Stats      Stats     `json:"stats"`
    SolvedAt   time.Time `json:"solved_at"`
}

// StatsStore keeps the most recent solve per scenario in memory.
type StatsStore struct {
    mu   sync.Mutex
    last map[int64]SolveRecord
}

func NewStatsStore() *StatsStore {
    return &StatsStore{last: map[int64]SolveRecord{}}
}

func (s *StatsStore) Record(rec SolveRecord) {
    if rec.SolvedAt.IsZero() { rec.SolvedAt = time.Now().UTC() }
    s.mu.Lock()
    s.last[rec.ScenarioID] = rec
    s.mu.Unlock()
}

func (s *StatsStore) Get(scenarioID int64) (SolveRecord, bool) {
    s.mu.Lock()
    defer s.mu.Unlock()
    rec, ok := s.last[scenarioID]
    return rec, ok
}

// List returns every record ordered by scenario id.
func (s *StatsStore) List() []SolveRecord {
    s.mu.Lock()
    out := make([]SolveRecord, 0, len(s.last))
    for _, v := range s.last {
        out = append(out, v)
    }
    s.mu.Unlock()
    sort.Slice(out, func(i, j int) bool { return out[i].ScenarioID < out[j].ScenarioID })
    return out
}

// Forget drops the record for a deleted scenario.
func (s *StatsStore) Forget(scenarioID int64) {
    s.mu.Lock()
    delete(s.last, scenarioID)
    s.mu.Unlock()
}
