package api

import (
    "fmt"
    "testing"
    "time"

    "optiguide/internal/config"
)

func TestIPLimiterEvictsIdleClients(t *testing.T) {
    l := newIPLimiter(config.RateConfig{RPS: 10, Burst: 2})
    clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
    l.now = func() time.Time { return clock }

    for i := 0; i < 100; i++ {
        if !l.allow(fmt.Sprintf("10.0.0.%d", i)) { t.Fatalf("first request from client %d refused", i) }
    }
    if len(l.clients) != 100 { t.Fatalf("clients: %d", len(l.clients)) }

    clock = clock.Add(l.idle / 2)
    l.allow("10.0.0.1")
    if len(l.clients) != 100 { t.Fatalf("swept too early: %d", len(l.clients)) }

    clock = clock.Add(l.idle)
    l.allow("10.0.1.1")
    if len(l.clients) != 1 { t.Fatalf("after sweep: %d clients left", len(l.clients)) }
    if _, ok := l.clients["10.0.1.1"]; !ok { t.Fatalf("active client evicted") }
}

func TestIPLimiterStillLimitsActiveClient(t *testing.T) {
    l := newIPLimiter(config.RateConfig{RPS: 1, Burst: 1})
    clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
    l.now = func() time.Time { return clock }

    if !l.allow("a") { t.Fatalf("first request refused") }
    if l.allow("a") { t.Fatalf("second request in the same instant allowed") }
    clock = clock.Add(time.Second)
    if !l.allow("a") { t.Fatalf("request after refill refused") }
}
