package metrics

import "testing"

func TestRegisterDefaultIsIdempotent(t *testing.T) {
    RegisterDefault()
    RegisterDefault()
    SolveOutcomes.WithLabelValues("Optimal").Inc()
    mfs, err := Registry.Gather()
    if err != nil { t.Fatalf("gather: %v", err) }
    for _, mf := range mfs {
        if mf.GetName() == "whatif_solves_total" {
            if v := mf.GetMetric()[0].GetCounter().GetValue(); v < 1 { t.Fatalf("solve counter: %v", v) }
            return
        }
    }
    t.Fatalf("whatif_solves_total not registered")
}
