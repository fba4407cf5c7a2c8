package api

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "net/http/cookiejar"
    "net/http/httptest"
    "sync"
    "testing"
    "time"

    "optiguide/internal/config"
    "optiguide/internal/events"
    "optiguide/internal/logging"
    "optiguide/internal/model"
    "optiguide/internal/opt"
    "optiguide/internal/session"
    "optiguide/internal/store"
    "optiguide/internal/whatif"
)

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *Server {
    t.Helper()
    cfg := config.Defaults()
    cfg.Rate.RPS = 0
    for _, m := range mutate { m(cfg) }

    st := store.NewMemory()
    err := st.SeedNetwork(context.Background(), model.Network{
        Supply: []model.SupplyNode{
            {ID: 1, Name: "A", Location: model.GeoPoint{Lat: 40.7128, Lon: -74.0060}},
            {ID: 2, Name: "B", Location: model.GeoPoint{Lat: 42.3601, Lon: -71.0589}},
        },
        Demand: []model.DemandNode{
            {ID: 1, Name: "X", Demand: 10, Location: model.GeoPoint{Lat: 40.7357, Lon: -74.1724}},
        },
        Routes: []model.Route{
            {ID: 1, SupplyID: 1, DemandID: 1, Cost: 12},
            {ID: 2, SupplyID: 2, DemandID: 1, Cost: 8},
        },
    })
    if err != nil { t.Fatalf("seed: %v", err) }

    log := logging.Discard()
    bus := events.NewBroker()
    svc := whatif.NewService(st, opt.NewOptimizer(5*time.Second, 2), nil, bus, log)
    asst := whatif.NewAssistant(svc, nil, cfg.Optimizer.NearbyRadiusKm)
    mgr := session.NewManager(session.NewMemoryBackend(), cfg.Session.TTL)
    return NewServer(cfg, svc, asst, mgr, bus, log)
}

// client keeps cookies between calls so requests share one session.
type client struct {
    t    *testing.T
    base string
    http *http.Client
}

func newClient(t *testing.T, s *Server) *client {
    t.Helper()
    ts := httptest.NewServer(s.Router())
    t.Cleanup(ts.Close)
    jar, err := cookiejar.New(nil)
    if err != nil { t.Fatalf("cookiejar: %v", err) }
    return &client{t: t, base: ts.URL, http: &http.Client{Jar: jar, Timeout: 5 * time.Second}}
}

func (c *client) do(method, path string, body any, out any) int {
    c.t.Helper()
    var rdr *bytes.Reader
    if body != nil {
        b, err := json.Marshal(body)
        if err != nil { c.t.Fatalf("marshal: %v", err) }
        rdr = bytes.NewReader(b)
    } else {
        rdr = bytes.NewReader(nil)
    }
    req, err := http.NewRequest(method, c.base+path, rdr)
    if err != nil { c.t.Fatalf("new request: %v", err) }
    req.Header.Set("Content-Type", "application/json")
    resp, err := c.http.Do(req)
    if err != nil { c.t.Fatalf("%s %s: %v", method, path, err) }
    defer resp.Body.Close()
    if out != nil && resp.StatusCode != http.StatusNoContent {
        if err := json.NewDecoder(resp.Body).Decode(out); err != nil { c.t.Fatalf("decode %s %s: %v", method, path, err) }
    }
    return resp.StatusCode
}

func TestHealthReady(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
}

func TestDebugAndMetrics(t *testing.T) {
    c := newClient(t, newTestServer(t))
    var info map[string]any
    if code := c.do(http.MethodGet, "/debug/info", nil, &info); code != 200 { t.Fatalf("debug: %d", code) }
    if _, ok := info["build"]; !ok { t.Fatalf("debug info missing build: %v", info) }

    resp, err := c.http.Get(c.base + "/metrics")
    if err != nil { t.Fatalf("metrics: %v", err) }
    resp.Body.Close()
    if resp.StatusCode != 200 { t.Fatalf("metrics: %d", resp.StatusCode) }
}

func TestChat(t *testing.T) {
    c := newClient(t, newTestServer(t))
    var reply struct {
        Intent string `json:"intent"`
        NLG    string `json:"nlg"`
    }
    if code := c.do(http.MethodPost, "/api/chat", map[string]string{"query": "list warehouses"}, &reply); code != 200 {
        t.Fatalf("chat: %d", code)
    }
    if reply.Intent != "list_warehouses" || reply.NLG != "Warehouses: A, B." { t.Fatalf("chat reply: %+v", reply) }

    var prob Problem
    if code := c.do(http.MethodPost, "/api/chat", map[string]string{"query": "  "}, &prob); code != 400 {
        t.Fatalf("empty query: %d", code)
    }
    if prob.Title != "No query provided" { t.Fatalf("problem: %+v", prob) }
}

func TestScenarioLifecycle(t *testing.T) {
    c := newClient(t, newTestServer(t))

    var sess session.Session
    if code := c.do(http.MethodPost, "/api/scenario/start", map[string]string{"name": "cheap A"}, &sess); code != 200 {
        t.Fatalf("start: %d", code)
    }
    if sess.State != session.EditingNew { t.Fatalf("start state: %s", sess.State) }

    changes := map[string]any{"changes": []map[string]any{{"table": "route", "row_id": 1, "column": "cost", "new_value": "3"}}}
    if code := c.do(http.MethodPost, "/api/scenario/changes", changes, nil); code != 200 { t.Fatalf("changes: %d", code) }

    // chat sees the unsaved edit
    var reply struct{ NLG string `json:"nlg"` }
    if code := c.do(http.MethodPost, "/api/chat", map[string]string{"query": "what if we run the plan"}, &reply); code != 200 {
        t.Fatalf("chat: %d", code)
    }
    if !bytes.Contains([]byte(reply.NLG), []byte("WH_1 -> RT_1 (cost $3)")) { t.Fatalf("chat nlg: %q", reply.NLG) }

    if code := c.do(http.MethodGet, "/api/session", nil, &sess); code != 200 { t.Fatalf("session: %d", code) }
    if len(sess.Changes) != 1 || sess.Changes[0].Table != "routes" { t.Fatalf("buffer: %+v", sess.Changes) }

    var saved struct {
        Status     string `json:"status"`
        ScenarioID int64  `json:"scenario_id"`
        Overrides  int    `json:"overrides"`
    }
    if code := c.do(http.MethodPost, "/api/scenario/save", map[string]string{}, &saved); code != 200 { t.Fatalf("save: %d", code) }
    if saved.Status != "saved" || saved.ScenarioID == 0 || saved.Overrides != 1 { t.Fatalf("saved: %+v", saved) }

    if code := c.do(http.MethodGet, "/api/session", nil, &sess); code != 200 { t.Fatalf("session: %d", code) }
    if sess.State != session.NoScenario { t.Fatalf("after save: %s", sess.State) }
    if code := c.do(http.MethodPost, "/api/scenario/save", map[string]string{}, nil); code != http.StatusConflict {
        t.Fatalf("second save: %d", code)
    }

    var loaded struct{ Overrides []model.Override `json:"overrides"` }
    if code := c.do(http.MethodPost, "/api/scenario/load", map[string]any{"scenario_id": saved.ScenarioID}, &loaded); code != 200 {
        t.Fatalf("load: %d", code)
    }
    if len(loaded.Overrides) != 1 || loaded.Overrides[0].Value != "3" { t.Fatalf("overrides: %+v", loaded.Overrides) }
    if code := c.do(http.MethodPost, "/api/scenario/changes", changes, nil); code != http.StatusConflict {
        t.Fatalf("changes while viewing: %d", code)
    }

    var list struct{ Scenarios []model.Scenario `json:"scenarios"` }
    if code := c.do(http.MethodGet, "/api/scenario/list", nil, &list); code != 200 || len(list.Scenarios) != 1 {
        t.Fatalf("list: %d %+v", code, list)
    }

    var res model.SolveResult
    if code := c.do(http.MethodPost, "/v1/solve", map[string]any{"scenario_id": saved.ScenarioID}, &res); code != 200 {
        t.Fatalf("solve: %d", code)
    }
    if res.Status != model.StatusOptimal || len(res.Assignments) != 1 || res.Assignments[0].Cost != 3 { t.Fatalf("solve: %+v", res) }

    path := fmt.Sprintf("/api/scenario/%d", saved.ScenarioID)
    if code := c.do(http.MethodDelete, path, nil, nil); code != http.StatusNoContent { t.Fatalf("delete: %d", code) }
    if code := c.do(http.MethodGet, path, nil, nil); code != http.StatusNotFound { t.Fatalf("get deleted: %d", code) }
    if code := c.do(http.MethodGet, "/api/session", nil, &sess); code != 200 || sess.State != session.NoScenario {
        t.Fatalf("session after delete: %d %s", code, sess.State)
    }
}

func TestEditRehydratesBuffer(t *testing.T) {
    s := newTestServer(t)
    sc, err := s.Service.SaveScenario(context.Background(), store.SaveRequest{Name: "spike", Overrides: []model.Override{
        {TableName: "retailers", RowID: 1, ColumnName: "demand", Value: "120"},
    }})
    if err != nil { t.Fatalf("save: %v", err) }
    c := newClient(t, s)

    var sess session.Session
    if code := c.do(http.MethodPost, "/api/scenario/edit", map[string]any{"scenario_id": sc.ID}, &sess); code != 200 {
        t.Fatalf("edit: %d", code)
    }
    if sess.State != session.EditingExisting || len(sess.Changes) != 1 { t.Fatalf("edit session: %+v", sess) }
    if code := c.do(http.MethodPost, "/api/scenario/edit", map[string]any{"scenario_id": 999}, nil); code != 404 {
        t.Fatalf("edit unknown: %d", code)
    }
    if code := c.do(http.MethodPost, "/api/scenario/load", map[string]any{}, nil); code != 400 {
        t.Fatalf("load without id: %d", code)
    }
}

func TestScenarioValidation(t *testing.T) {
    c := newClient(t, newTestServer(t))
    if code := c.do(http.MethodPost, "/api/scenario/start", map[string]string{"type": "marketing"}, nil); code != 400 {
        t.Fatalf("bad type: %d", code)
    }
    if code := c.do(http.MethodPost, "/api/scenario/start", map[string]string{}, nil); code != 200 { t.Fatalf("start: %d", code) }
    bad := map[string]any{"changes": []map[string]any{{"table": "stores", "row_id": 1, "column": "cost", "new_value": "3"}}}
    if code := c.do(http.MethodPost, "/api/scenario/changes", bad, nil); code != 400 { t.Fatalf("bad table: %d", code) }
    bad = map[string]any{"changes": []map[string]any{{"table": "routes", "row_id": 1, "column": "speed", "new_value": "3"}}}
    if code := c.do(http.MethodPost, "/api/scenario/changes", bad, nil); code != 400 { t.Fatalf("bad column: %d", code) }
    bad = map[string]any{"changes": []map[string]any{{"table": "retailers", "row_id": 1, "column": "demand", "new_value": "lots"}}}
    if code := c.do(http.MethodPost, "/api/scenario/changes", bad, nil); code != 400 { t.Fatalf("bad value: %d", code) }

    var prob Problem
    if code := c.do(http.MethodPost, "/api/scenario/save", map[string]string{}, &prob); code != 400 {
        t.Fatalf("save without name: %d", code)
    }
    var sess session.Session
    c.do(http.MethodGet, "/api/session", nil, &sess)
    if sess.State != session.EditingNew { t.Fatalf("failed save must keep editing: %s", sess.State) }

    if code := c.do(http.MethodPost, "/api/scenario/close", nil, &sess); code != 200 { t.Fatalf("close: %d", code) }
    if sess.State != session.NoScenario || len(sess.Changes) != 0 { t.Fatalf("close: %+v", sess) }
}

func TestChatEditWithBadValueKeepsSessionUsable(t *testing.T) {
    c := newClient(t, newTestServer(t))
    c.do(http.MethodPost, "/api/scenario/start", map[string]string{"name": "typo"}, nil)

    var reply struct {
        Applied []model.Change `json:"applied_changes"`
    }
    if code := c.do(http.MethodPost, "/api/chat", map[string]string{"query": "set demand of retailer 1 to lots"}, &reply); code != 200 {
        t.Fatalf("chat edit: %d", code)
    }
    if len(reply.Applied) != 0 { t.Fatalf("bad value applied: %+v", reply.Applied) }

    var sess session.Session
    c.do(http.MethodGet, "/api/session", nil, &sess)
    if len(sess.Changes) != 0 { t.Fatalf("buffer: %+v", sess.Changes) }

    if code := c.do(http.MethodPost, "/api/chat", map[string]string{"query": "list warehouses"}, nil); code != 200 {
        t.Fatalf("lookup after bad edit: %d", code)
    }
    var res model.SolveResult
    if code := c.do(http.MethodPost, "/v1/solve", map[string]any{"use_session": true}, &res); code != 200 { t.Fatalf("solve: %d", code) }
    if res.Status != model.StatusOptimal { t.Fatalf("solve after bad edit: %+v", res) }
}

func TestSolveEndpoint(t *testing.T) {
    c := newClient(t, newTestServer(t))
    var res model.SolveResult
    if code := c.do(http.MethodPost, "/v1/solve", map[string]any{}, &res); code != 200 { t.Fatalf("baseline: %d", code) }
    if len(res.Assignments) != 1 || res.Assignments[0].SupplyID != 2 { t.Fatalf("baseline: %+v", res) }

    body := map[string]any{"constraints": []map[string]any{{"type": "exclude_warehouse", "warehouse": "B"}}}
    if code := c.do(http.MethodPost, "/v1/solve", body, &res); code != 200 { t.Fatalf("exclude: %d", code) }
    if len(res.Assignments) != 1 || res.Assignments[0].SupplyID != 1 || res.TotalCost != 12 { t.Fatalf("exclude: %+v", res) }

    if code := c.do(http.MethodPost, "/v1/solve", map[string]any{"scenario_id": 42}, nil); code != 404 { t.Fatalf("unknown: %d", code) }

    var stats struct{ Items []opt.SolveRecord `json:"items"` }
    if code := c.do(http.MethodGet, "/v1/admin/solve-stats", nil, &stats); code != 200 || len(stats.Items) != 1 {
        t.Fatalf("stats: %d %+v", code, stats)
    }
}

func TestSolveUsesSession(t *testing.T) {
    c := newClient(t, newTestServer(t))
    c.do(http.MethodPost, "/api/scenario/start", map[string]string{"name": "p"}, nil)
    changes := map[string]any{"changes": []map[string]any{{"table": "warehouse", "row_id": 1, "column": "inventory", "new_value": "0"}}}
    c.do(http.MethodPost, "/api/scenario/changes", changes, nil)

    var res model.SolveResult
    body := map[string]any{"use_session": true, "constraints": []map[string]any{{"type": "exclude_warehouse", "warehouse": "B"}, {"type": "min_inventory", "value": 5}}}
    if code := c.do(http.MethodPost, "/v1/solve", body, &res); code != 200 { t.Fatalf("solve: %d", code) }
    if res.Status != model.StatusInfeasible { t.Fatalf("expected infeasible, got %+v", res) }
}

func TestStartExistingSolvesWhatSaveWrites(t *testing.T) {
    c := newClient(t, newTestServer(t))
    c.do(http.MethodPost, "/api/scenario/start", map[string]string{"name": "pricey B"}, nil)
    costB := map[string]any{"changes": []map[string]any{{"table": "routes", "row_id": 2, "column": "cost", "new_value": "100"}}}
    if code := c.do(http.MethodPost, "/api/scenario/changes", costB, nil); code != 200 { t.Fatalf("changes: %d", code) }
    var saved struct{ ScenarioID int64 `json:"scenario_id"` }
    if code := c.do(http.MethodPost, "/api/scenario/save", map[string]string{}, &saved); code != 200 { t.Fatalf("save: %d", code) }

    // restart the stored scenario from an empty buffer and edit something else
    if code := c.do(http.MethodPost, "/api/scenario/start", map[string]any{"scenario_id": saved.ScenarioID}, nil); code != 200 {
        t.Fatalf("start existing: %d", code)
    }
    demand := map[string]any{"changes": []map[string]any{{"table": "retailers", "row_id": 1, "column": "demand", "new_value": "20"}}}
    if code := c.do(http.MethodPost, "/api/scenario/changes", demand, nil); code != 200 { t.Fatalf("changes: %d", code) }

    var before model.SolveResult
    if code := c.do(http.MethodPost, "/v1/solve", map[string]any{"use_session": true}, &before); code != 200 { t.Fatalf("session solve: %d", code) }
    if code := c.do(http.MethodPost, "/api/scenario/save", map[string]string{}, nil); code != 200 { t.Fatalf("resave: %d", code) }
    var after model.SolveResult
    if code := c.do(http.MethodPost, "/v1/solve", map[string]any{"scenario_id": saved.ScenarioID}, &after); code != 200 { t.Fatalf("stored solve: %d", code) }

    if before.Status != model.StatusOptimal || after.Status != model.StatusOptimal { t.Fatalf("status: %s / %s", before.Status, after.Status) }
    if fmt.Sprint(before.Assignments) != fmt.Sprint(after.Assignments) {
        t.Fatalf("session solve %+v differs from saved solve %+v", before.Assignments, after.Assignments)
    }
    if len(after.Assignments) != 1 || after.Assignments[0].SupplyID != 2 || after.Assignments[0].Cost != 8 {
        t.Fatalf("assignments: %+v", after.Assignments)
    }
}

func TestNetworkEndpoint(t *testing.T) {
    c := newClient(t, newTestServer(t))
    var n struct {
        Warehouses []model.SupplyNode `json:"warehouses"`
        Routes     []model.Route      `json:"routes"`
    }
    if code := c.do(http.MethodGet, "/v1/network", nil, &n); code != 200 { t.Fatalf("network: %d", code) }
    if len(n.Warehouses) != 2 || len(n.Routes) != 2 { t.Fatalf("network: %+v", n) }
    if code := c.do(http.MethodGet, "/v1/network?scenario_id=abc", nil, nil); code != 400 { t.Fatalf("bad id: %d", code) }
    if code := c.do(http.MethodGet, "/v1/network?scenario_id=7", nil, nil); code != 404 { t.Fatalf("unknown id: %d", code) }
}

func TestRateLimit(t *testing.T) {
    c := newClient(t, newTestServer(t, func(cfg *config.Config) { cfg.Rate.RPS = 0.001; cfg.Rate.Burst = 1 }))
    if code := c.do(http.MethodGet, "/api/scenario/list", nil, nil); code != 200 { t.Fatalf("first: %d", code) }
    resp, err := c.http.Get(c.base + "/api/scenario/list")
    if err != nil { t.Fatalf("second: %v", err) }
    resp.Body.Close()
    if resp.StatusCode != http.StatusTooManyRequests { t.Fatalf("second: %d", resp.StatusCode) }
    if resp.Header.Get("Retry-After") == "" { t.Fatalf("missing Retry-After") }
    // health stays outside the limiter
    if code := c.do(http.MethodGet, "/healthz", nil, nil); code != 200 { t.Fatalf("health: %d", code) }
}

// sseRecorder is a minimal ResponseWriter that implements http.Flusher
// and captures writes for SSE tests.
type sseRecorder struct {
    mu   sync.Mutex
    hdr  http.Header
    buf  bytes.Buffer
    code int
}

func (r *sseRecorder) Header() http.Header { if r.hdr == nil { r.hdr = http.Header{} }; return r.hdr }
func (r *sseRecorder) WriteHeader(c int) { r.code = c }
func (r *sseRecorder) Write(p []byte) (int, error) { r.mu.Lock(); defer r.mu.Unlock(); return r.buf.Write(p) }
func (r *sseRecorder) Flush() {}
func (r *sseRecorder) contains(s string) bool { r.mu.Lock(); defer r.mu.Unlock(); return bytes.Contains(r.buf.Bytes(), []byte(s)) }

func TestScenarioEventsSSE(t *testing.T) {
    s := newTestServer(t)
    router := s.Router()

    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    req := httptest.NewRequest(http.MethodGet, "/v1/scenarios/0/events", nil).WithContext(ctx)
    rec := &sseRecorder{}
    done := make(chan struct{})
    go func() {
        router.ServeHTTP(rec, req)
        close(done)
    }()

    // Give handler time to subscribe and send heartbeat
    deadline := time.Now().Add(500 * time.Millisecond)
    for time.Now().Before(deadline) && !rec.contains("event: heartbeat") {
        time.Sleep(10 * time.Millisecond)
    }
    if _, err := s.Service.Solve(context.Background(), whatif.Request{}); err != nil { t.Fatalf("solve: %v", err) }

    deadline = time.Now().Add(500 * time.Millisecond)
    for time.Now().Before(deadline) && !rec.contains("event: "+events.SolveCompleted) {
        time.Sleep(10 * time.Millisecond)
    }
    if !rec.contains("event: " + events.SolveCompleted) {
        rec.mu.Lock()
        defer rec.mu.Unlock()
        t.Fatalf("SSE did not contain expected event. Body: %s", rec.buf.String())
    }
    cancel()
    select {
    case <-done:
    case <-time.After(200 * time.Millisecond):
        t.Fatal("handler did not exit after cancel")
    }

    rr := httptest.NewRecorder()
    router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/scenarios/9/events", nil))
    if rr.Code != 404 { t.Fatalf("unknown scenario events: %d", rr.Code) }
}
