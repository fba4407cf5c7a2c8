package api

import (
    "encoding/json"
    "net/http"
    "time"

    "optiguide/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    cfg := s.Config
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "port": cfg.Server.Port,
            "database_driver": cfg.Database.Driver,
            "session_backend": cfg.Session.Backend,
            "solve_timeout": cfg.Optimizer.SolveTimeout.String(),
            "max_concurrent_solves": cfg.Optimizer.MaxConcurrent,
            "nearby_radius_km": cfg.Optimizer.NearbyRadiusKm,
            "rate_rps": cfg.Rate.RPS,
            "rate_burst": cfg.Rate.Burst,
            "has_redis_url": cfg.Redis.URL != "",
            "trace_stdout": cfg.Tracing.Stdout,
        },
    }
    w.Header().Set("Content-Type", "application/json")
    _ = json.NewEncoder(w).Encode(info)
}
