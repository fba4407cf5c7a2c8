package opt

import "testing"

func TestStatsStoreKeepsLatestPerScenario(t *testing.T) {
    s := NewStatsStore()
    s.Record(SolveRecord{ScenarioID: 3, Status: "Infeasible"})
    s.Record(SolveRecord{ScenarioID: 0, Status: "Optimal", TotalCost: 8})
    s.Record(SolveRecord{ScenarioID: 3, Status: "Optimal", TotalCost: 12})

    rec, ok := s.Get(3)
    if !ok || rec.Status != "Optimal" || rec.TotalCost != 12 { t.Fatalf("get: %+v %v", rec, ok) }
    if rec.SolvedAt.IsZero() { t.Fatalf("solved_at not stamped") }

    list := s.List()
    if len(list) != 2 || list[0].ScenarioID != 0 || list[1].ScenarioID != 3 { t.Fatalf("list: %+v", list) }

    s.Forget(3)
    if _, ok := s.Get(3); ok { t.Fatalf("forgotten record still present") }
}
