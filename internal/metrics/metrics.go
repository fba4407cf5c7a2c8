package metrics

import (
    "sync"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the API
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, route pattern, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )
    // RateLimited counts requests rejected by the limiter
    RateLimited = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "http_rate_limited_total", Help: "Requests rejected with 429."},
    )

    // SolveOutcomes counts solves by final status
    SolveOutcomes = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "whatif_solves_total", Help: "What-if solves by status."},
        []string{"status"},
    )
    // SolveDuration covers materialize, compile and solve
    SolveDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "whatif_solve_duration_seconds", Help: "What-if solve duration in seconds.", Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 2, 5, 10}},
        []string{"status"},
    )
    // SkippedOverrides counts overrides that referenced a missing table, row or column
    SkippedOverrides = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "scenario_overrides_skipped_total", Help: "Overrides skipped during materialization."},
        []string{"reason"},
    )
    // ChatIntents counts classified chat messages
    ChatIntents = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "chat_intents_total", Help: "Chat messages by classified intent."},
        []string{"intent"},
    )
    // SessionTransitions counts scenario session state changes
    SessionTransitions = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "session_transitions_total", Help: "Scenario session state transitions."},
        []string{"from", "to"},
    )
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests)
        Registry.MustRegister(HTTPDuration)
        Registry.MustRegister(RateLimited)
        Registry.MustRegister(SolveOutcomes)
        Registry.MustRegister(SolveDuration)
        Registry.MustRegister(SkippedOverrides)
        Registry.MustRegister(ChatIntents)
        Registry.MustRegister(SessionTransitions)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
