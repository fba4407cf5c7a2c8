package main

import (
    "context"
    "fmt"
    "log/slog"
    "os"

    "github.com/spf13/cobra"

    "optiguide/internal/buildinfo"
    "optiguide/internal/config"
    "optiguide/internal/logging"
)

var (
    configPath string
    cfg        *config.Config
    logger     *slog.Logger
)

var rootCmd = &cobra.Command{
    Use:           "optiguide",
    Short:         "What-if supply chain optimizer",
    SilenceUsage:  true,
    SilenceErrors: true,
    PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
        c, err := config.Load(configPath)
        if err != nil { return fmt.Errorf("load config: %w", err) }
        cfg = c
        logger = logging.New(cfg.Log, os.Stderr)
        slog.SetDefault(logger)
        return nil
    },
    RunE: func(cmd *cobra.Command, args []string) error {
        return serveCmd.RunE(cmd, args)
    },
}

var versionCmd = &cobra.Command{
    Use:   "version",
    Short: "Print build information",
    PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
    Run: func(cmd *cobra.Command, args []string) {
        fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
    },
}

func init() {
    rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
    rootCmd.AddCommand(serveCmd, seedCmd, solveCmd, versionCmd)
}

func main() {
    ctx := context.Background()
    if err := rootCmd.ExecuteContext(ctx); err != nil {
        fmt.Fprintln(os.Stderr, "error:", err)
        os.Exit(1)
    }
}
