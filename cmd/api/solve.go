package main

import (
    "encoding/json"
    "fmt"

    "github.com/spf13/cobra"

    "optiguide/internal/intent"
    "optiguide/internal/opt"
    "optiguide/internal/store"
    "optiguide/internal/whatif"
)

var (
    solveScenario int64
    solveQuery    string
    solveSeed     string
)

var solveCmd = &cobra.Command{
    Use:   "solve",
    Short: "Run one what-if solve and print the result as JSON",
    RunE: func(cmd *cobra.Command, args []string) error {
        st, err := store.New(cfg.Database)
        if err != nil { return fmt.Errorf("open store: %w", err) }
        defer st.Close()
        if solveSeed != "" {
            if err := seedFromFile(cmd.Context(), st, solveSeed); err != nil { return err }
        }

        req := whatif.Request{ScenarioID: solveScenario}
        if solveQuery != "" {
            req.Facts = intent.ExtractFacts(solveQuery)
        }
        svc := whatif.NewService(st, opt.NewOptimizer(cfg.Optimizer.SolveTimeout, cfg.Optimizer.MaxConcurrent), nil, nil, logger)
        res, err := svc.Solve(cmd.Context(), req)
        if err != nil { return err }
        enc := json.NewEncoder(cmd.OutOrStdout())
        enc.SetIndent("", "  ")
        return enc.Encode(res)
    },
}

func init() {
    solveCmd.Flags().Int64Var(&solveScenario, "scenario", 0, "scenario id (0 solves the baseline)")
    solveCmd.Flags().StringVar(&solveSeed, "seed", "", "YAML network file loaded first (needed with the memory driver)")
    solveCmd.Flags().StringVarP(&solveQuery, "query", "q", "", "natural language constraints, e.g. \"exclude warehouse B\"")
}
