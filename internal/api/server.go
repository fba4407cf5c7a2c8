package api

import (
    "log/slog"
    "net/http"

    "github.com/go-chi/chi/v5"
    "github.com/go-chi/chi/v5/middleware"
    "github.com/gorilla/sessions"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "optiguide/internal/config"
    "optiguide/internal/events"
    "optiguide/internal/metrics"
    "optiguide/internal/session"
    "optiguide/internal/whatif"
)

type Server struct {
    Config    *config.Config
    Service   *whatif.Service
    Assistant *whatif.Assistant
    Sessions  *session.Manager
    Broker    events.Bus
    Log       *slog.Logger

    cookies *sessions.CookieStore
    limiter *ipLimiter
}

// NewServer wires the HTTP layer over already-built services.
func NewServer(cfg *config.Config, svc *whatif.Service, asst *whatif.Assistant, mgr *session.Manager, bus events.Bus, log *slog.Logger) *Server {
    metrics.RegisterDefault()
    if mgr.OnTransition == nil {
        mgr.OnTransition = func(_ *session.Session, from, to session.State) {
            metrics.SessionTransitions.WithLabelValues(string(from), string(to)).Inc()
        }
    }
    return &Server{
        Config:    cfg,
        Service:   svc,
        Assistant: asst,
        Sessions:  mgr,
        Broker:    bus,
        Log:       log,
        cookies:   newCookieStore(cfg.Session),
        limiter:   newIPLimiter(cfg.Rate),
    }
}

// Router builds the full route table.
func (s *Server) Router() http.Handler {
    r := chi.NewRouter()
    r.Use(middleware.RequestID)
    r.Use(middleware.RealIP)
    r.Use(middleware.Recoverer)
    r.Use(s.logMiddleware)

    r.Get("/healthz", s.HealthHandler)
    r.Get("/readyz", s.ReadyHandler)
    r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
    r.Get("/debug/info", s.DebugJSON)

    r.Route("/api", func(r chi.Router) {
        r.Use(s.rateLimit)
        r.Post("/chat", s.ChatHandler)
        r.Get("/session", s.SessionHandler)
        r.Route("/scenario", func(r chi.Router) {
            r.Post("/start", s.StartScenarioHandler)
            r.Post("/edit", s.EditScenarioHandler)
            r.Post("/load", s.LoadScenarioHandler)
            r.Post("/changes", s.ChangesHandler)
            r.Post("/save", s.SaveScenarioHandler)
            r.Post("/close", s.CloseScenarioHandler)
            r.Get("/list", s.ListScenariosHandler)
            r.Get("/{id}", s.GetScenarioHandler)
            r.Delete("/{id}", s.DeleteScenarioHandler)
        })
    })

    r.Route("/v1", func(r chi.Router) {
        r.Use(s.rateLimit)
        r.Post("/solve", s.SolveHandler)
        r.Get("/network", s.NetworkHandler)
        r.Get("/scenarios/{id}/events", s.ScenarioEventsHandler)
        r.Get("/admin/solve-stats", s.SolveStatsHandler)
    })
    return r
}
