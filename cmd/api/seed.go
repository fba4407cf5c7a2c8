package main

import (
    "context"
    "fmt"
    "os"

    "github.com/spf13/cobra"
    "gopkg.in/yaml.v3"

    "optiguide/internal/model"
    "optiguide/internal/store"
)

// seedFile is a baseline network plus optional named scenarios.
type seedFile struct {
    model.Network `yaml:",inline"`
    Scenarios     []seedScenario `yaml:"scenarios"`
}

type seedScenario struct {
    Name        string         `yaml:"name"`
    Type        string         `yaml:"type"`
    Description string         `yaml:"description"`
    Overrides   []seedOverride `yaml:"overrides"`
}

type seedOverride struct {
    Table  string `yaml:"table"`
    RowID  int64  `yaml:"row_id"`
    Column string `yaml:"column"`
    Value  string `yaml:"value"`
}

var seedCmd = &cobra.Command{
    Use:   "seed FILE",
    Short: "Replace the baseline network and load scenarios from a YAML file",
    Args:  cobra.ExactArgs(1),
    RunE: func(cmd *cobra.Command, args []string) error {
        st, err := store.New(cfg.Database)
        if err != nil { return fmt.Errorf("open store: %w", err) }
        defer st.Close()
        return seedFromFile(cmd.Context(), st, args[0])
    },
}

func readSeed(path string) (seedFile, error) {
    var f seedFile
    data, err := os.ReadFile(path)
    if err != nil { return f, err }
    if err := yaml.Unmarshal(data, &f); err != nil { return f, fmt.Errorf("parse %s: %w", path, err) }
    return f, nil
}

func seedFromFile(ctx context.Context, st store.Store, path string) error {
    f, err := readSeed(path)
    if err != nil { return err }
    if err := applySeed(ctx, st, f); err != nil { return err }
    logger.Info("seeded", "file", path,
        "warehouses", len(f.Supply), "retailers", len(f.Demand), "routes", len(f.Routes), "scenarios", len(f.Scenarios))
    return nil
}

// applySeed replaces the baseline and saves each scenario by (name, type), so
// reseeding updates scenarios in place.
func applySeed(ctx context.Context, st store.Store, f seedFile) error {
    if err := st.SeedNetwork(ctx, f.Network); err != nil { return fmt.Errorf("seed network: %w", err) }
    for _, sc := range f.Scenarios {
        if sc.Name == "" { return fmt.Errorf("seed scenario without a name") }
        req := store.SaveRequest{Name: sc.Name, Type: sc.Type, Description: sc.Description}
        for _, o := range sc.Overrides {
            req.Overrides = append(req.Overrides, model.Override{TableName: o.Table, RowID: o.RowID, ColumnName: o.Column, Value: o.Value})
        }
        if _, err := st.SaveScenario(ctx, req); err != nil { return fmt.Errorf("seed scenario %q: %w", sc.Name, err) }
    }
    return nil
}
