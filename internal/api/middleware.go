package api

import (
    "net"
    "net/http"
    "strconv"
    "sync"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/go-chi/chi/v5/middleware"
    "golang.org/x/time/rate"

    "optiguide/internal/config"
    "optiguide/internal/logging"
    "optiguide/internal/metrics"
)

// logMiddleware attaches a request logger and records the access log line and
// HTTP metrics once the handler returns.
func (s *Server) logMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        ctx, log := logging.WithRequest(r.Context(), s.Log, middleware.GetReqID(r.Context()))
        ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
        next.ServeHTTP(ww, r.WithContext(ctx))

        status := ww.Status()
        if status == 0 { status = http.StatusOK }
        path := r.URL.Path
        if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
            path = rc.RoutePattern()
        }
        dur := time.Since(start)
        labels := []string{r.Method, path, strconv.Itoa(status)}
        metrics.HTTPRequests.WithLabelValues(labels...).Inc()
        metrics.HTTPDuration.WithLabelValues(labels...).Observe(dur.Seconds())
        log.Info("http request", "method", r.Method, "path", r.URL.Path, "status", status, "duration", dur, "remote", r.RemoteAddr)
    })
}

// ipLimiter hands out one token bucket per client address. Buckets idle for
// longer than idle are dropped; by then they have refilled, so a returning
// client sees the same limit as a new one.
type ipLimiter struct {
    mu        sync.Mutex
    rps       rate.Limit
    burst     int
    idle      time.Duration
    clients   map[string]*limiterEntry
    lastSweep time.Time
    now       func() time.Time
}

type limiterEntry struct {
    lim  *rate.Limiter
    seen time.Time
}

const limiterIdle = 3 * time.Minute

func newIPLimiter(cfg config.RateConfig) *ipLimiter {
    if cfg.RPS <= 0 { return nil }
    burst := cfg.Burst
    if burst <= 0 { burst = int(cfg.RPS) + 1 }
    idle := limiterIdle
    if refill := time.Duration(float64(burst) / cfg.RPS * float64(time.Second)); refill > idle {
        idle = refill
    }
    return &ipLimiter{rps: rate.Limit(cfg.RPS), burst: burst, idle: idle, clients: map[string]*limiterEntry{}, now: time.Now}
}

func (l *ipLimiter) allow(key string) bool {
    l.mu.Lock()
    now := l.now()
    if now.Sub(l.lastSweep) >= l.idle {
        l.sweep(now)
    }
    e, ok := l.clients[key]
    if !ok {
        e = &limiterEntry{lim: rate.NewLimiter(l.rps, l.burst)}
        l.clients[key] = e
    }
    e.seen = now
    l.mu.Unlock()
    return e.lim.AllowN(now, 1)
}

// sweep drops idle buckets. Caller holds mu.
func (l *ipLimiter) sweep(now time.Time) {
    for k, e := range l.clients {
        if now.Sub(e.seen) >= l.idle {
            delete(l.clients, k)
        }
    }
    l.lastSweep = now
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
    if s.limiter == nil { return next }
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        host, _, err := net.SplitHostPort(r.RemoteAddr)
        if err != nil { host = r.RemoteAddr }
        if !s.limiter.allow(host) {
            metrics.RateLimited.Inc()
            w.Header().Set("Retry-After", "1")
            writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "rate limit exceeded", r.URL.Path)
            return
        }
        next.ServeHTTP(w, r)
    })
}
