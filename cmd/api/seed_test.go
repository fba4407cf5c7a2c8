package main

import (
    "context"
    "os"
    "path/filepath"
    "testing"

    "optiguide/internal/logging"
    "optiguide/internal/store"
)

func TestSeedExampleNetwork(t *testing.T) {
    logger = logging.Discard()
    f, err := readSeed(filepath.Join("..", "..", "configs", "network.yaml"))
    if err != nil { t.Fatalf("readSeed: %v", err) }
    if len(f.Supply) != 3 || len(f.Demand) != 3 || len(f.Routes) != 6 { t.Fatalf("network: %+v", f.Network) }
    if f.Supply[2].Inventory != nil { t.Fatalf("WH_PHL inventory should be untracked") }
    if f.Supply[0].Location.Lat != 40.7128 { t.Fatalf("location: %+v", f.Supply[0].Location) }

    st := store.NewMemory()
    ctx := context.Background()
    if err := applySeed(ctx, st, f); err != nil { t.Fatalf("applySeed: %v", err) }
    // reseeding updates scenarios by name instead of duplicating them
    if err := applySeed(ctx, st, f); err != nil { t.Fatalf("reseed: %v", err) }
    list, err := st.ListScenarios(ctx)
    if err != nil { t.Fatalf("list: %v", err) }
    if len(list) != 2 { t.Fatalf("scenarios: %+v", list) }
    ovs, err := st.ListOverrides(ctx, list[0].ID)
    if err != nil { t.Fatalf("overrides: %v", err) }
    if len(ovs) != 2 { t.Fatalf("overrides: %+v", ovs) }
}

func TestSeedRejectsUnnamedScenario(t *testing.T) {
    path := filepath.Join(t.TempDir(), "bad.yaml")
    if err := os.WriteFile(path, []byte("warehouses: []\nscenarios:\n  - type: supply\n"), 0o644); err != nil { t.Fatal(err) }
    f, err := readSeed(path)
    if err != nil { t.Fatalf("readSeed: %v", err) }
    if err := applySeed(context.Background(), store.NewMemory(), f); err == nil { t.Fatalf("expected error") }
}
