package main

import (
    "context"
    "errors"
    "fmt"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/spf13/cobra"

    "optiguide/internal/api"
    "optiguide/internal/events"
    "optiguide/internal/opt"
    "optiguide/internal/session"
    "optiguide/internal/store"
    "optiguide/internal/tracing"
    "optiguide/internal/whatif"
)

var serveSeed string

var serveCmd = &cobra.Command{
    Use:   "serve",
    Short: "Run the HTTP API",
    RunE: func(cmd *cobra.Command, args []string) error {
        ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
        defer stop()

        shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, os.Stdout, logger)
        if err != nil { return err }
        defer tracing.ShutdownWithTimeout(shutdownTracing, logger)

        st, err := store.New(cfg.Database)
        if err != nil { return fmt.Errorf("open store: %w", err) }
        defer st.Close()
        if serveSeed != "" {
            if err := seedFromFile(ctx, st, serveSeed); err != nil { return err }
        }

        bus, closeBus, err := newBus()
        if err != nil { return err }
        defer closeBus()

        backend, err := newSessionBackend()
        if err != nil { return err }

        svc := whatif.NewService(st, opt.NewOptimizer(cfg.Optimizer.SolveTimeout, cfg.Optimizer.MaxConcurrent), opt.NewStatsStore(), bus, logger)
        asst := whatif.NewAssistant(svc, nil, cfg.Optimizer.NearbyRadiusKm)
        mgr := session.NewManager(backend, cfg.Session.TTL)
        s := api.NewServer(cfg, svc, asst, mgr, bus, logger)

        srv := &http.Server{
            Addr:              cfg.Server.Addr(),
            Handler:           s.Router(),
            ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
        }
        errCh := make(chan error, 1)
        go func() {
            logger.Info("API listening", "addr", srv.Addr, "database", cfg.Database.Driver, "sessions", cfg.Session.Backend)
            if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
                errCh <- err
            }
            close(errCh)
        }()

        select {
        case err := <-errCh:
            return err
        case <-ctx.Done():
        }
        logger.Info("shutting down")
        sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
        defer cancel()
        return srv.Shutdown(sctx)
    },
}

func init() {
    serveCmd.Flags().StringVar(&serveSeed, "seed", "", "YAML network file loaded before serving")
}

// newBus uses Redis pub/sub when a Redis URL is configured so several API
// replicas share scenario events.
func newBus() (events.Bus, func(), error) {
    if cfg.Redis.URL == "" {
        return events.NewBroker(), func() {}, nil
    }
    rb, err := events.NewRedisBroker(cfg.Redis.URL, logger)
    if err != nil { return nil, nil, fmt.Errorf("redis broker: %w", err) }
    return rb, func() { _ = rb.Close() }, nil
}

func newSessionBackend() (session.Backend, error) {
    if cfg.Session.Backend != "redis" {
        return session.NewMemoryBackend(), nil
    }
    rb, err := session.NewRedisBackend(cfg.Redis.URL)
    if err != nil { return nil, fmt.Errorf("redis sessions: %w", err) }
    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    if err := rb.Ping(ctx); err != nil { return nil, fmt.Errorf("redis sessions: %w", err) }
    return rb, nil
}
