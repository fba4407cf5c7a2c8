package api

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/go-chi/chi/v5"

    "optiguide/internal/events"
    "optiguide/internal/logging"
    "optiguide/internal/model"
    "optiguide/internal/session"
    "optiguide/internal/whatif"
)

// ChatHandler handles POST /api/chat
func (s *Server) ChatHandler(w http.ResponseWriter, r *http.Request) {
    var req struct {
        Query string `json:"query"`
    }
    if err := decodeJSON(r, &req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if strings.TrimSpace(req.Query) == "" {
        writeProblem(w, http.StatusBadRequest, "No query provided", "", r.URL.Path)
        return
    }
    sc, err := s.openSession(r)
    if err != nil { writeProblem(w, http.StatusInternalServerError, "Session unavailable", err.Error(), r.URL.Path); return }

    reply, err := s.Assistant.Handle(r.Context(), sc.state, req.Query)
    if err != nil {
        writeError(w, r, "Chat failed", err)
        return
    }
    if err := s.closeSession(w, r, sc); err != nil {
        writeProblem(w, http.StatusInternalServerError, "Session unavailable", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, reply)
}

// SessionHandler handles GET /api/session
func (s *Server) SessionHandler(w http.ResponseWriter, r *http.Request) {
    sc, err := s.openSession(r)
    if err != nil { writeProblem(w, http.StatusInternalServerError, "Session unavailable", err.Error(), r.URL.Path); return }
    if err := s.closeSession(w, r, sc); err != nil {
        writeProblem(w, http.StatusInternalServerError, "Session unavailable", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, sc.state)
}

type scenarioRequest struct {
    ScenarioID int64  `json:"scenario_id"`
    Name       string `json:"name"`
    Type       string `json:"type"`
}

// StartScenarioHandler handles POST /api/scenario/start. With a scenario_id
// the stored scenario is edited from an empty buffer; otherwise a new one is
// started and created on save.
func (s *Server) StartScenarioHandler(w http.ResponseWriter, r *http.Request) {
    var req scenarioRequest
    if err := decodeJSON(r, &req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateScenarioType(req.Type); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid scenario", err.Error(), r.URL.Path)
        return
    }
    var existing *model.Scenario
    if req.ScenarioID != 0 {
        sc, err := s.Service.Store().GetScenario(r.Context(), req.ScenarioID)
        if err != nil { writeError(w, r, "Start scenario failed", err); return }
        existing = &sc
    }
    s.withSession(w, r, func(sess *session.Session) (any, error) {
        if existing != nil {
            sess.StartExisting(*existing)
        } else {
            sess.Start(req.Name, req.Type)
        }
        return sess, nil
    })
}

// EditScenarioHandler handles POST /api/scenario/edit
func (s *Server) EditScenarioHandler(w http.ResponseWriter, r *http.Request) {
    var req scenarioRequest
    if err := decodeJSON(r, &req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if req.ScenarioID <= 0 {
        writeProblem(w, http.StatusBadRequest, "Missing scenario_id", "", r.URL.Path)
        return
    }
    ctx := r.Context()
    sc, err := s.Service.Store().GetScenario(ctx, req.ScenarioID)
    if err != nil { writeError(w, r, "Edit scenario failed", err); return }
    stored, err := s.Service.Store().ListOverrides(ctx, sc.ID)
    if err != nil { writeError(w, r, "Edit scenario failed", err); return }
    s.withSession(w, r, func(sess *session.Session) (any, error) {
        sess.Edit(sc, stored)
        return sess, nil
    })
}

// LoadScenarioHandler handles POST /api/scenario/load
func (s *Server) LoadScenarioHandler(w http.ResponseWriter, r *http.Request) {
    var req scenarioRequest
    if err := decodeJSON(r, &req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if req.ScenarioID <= 0 {
        writeProblem(w, http.StatusBadRequest, "Missing scenario_id", "", r.URL.Path)
        return
    }
    ctx := r.Context()
    sc, err := s.Service.Store().GetScenario(ctx, req.ScenarioID)
    if err != nil { writeError(w, r, "Load scenario failed", err); return }
    overrides, err := s.Service.Store().ListOverrides(ctx, sc.ID)
    if err != nil { writeError(w, r, "Load scenario failed", err); return }
    s.withSession(w, r, func(sess *session.Session) (any, error) {
        sess.Load(sc)
        return map[string]any{"scenario": sc, "overrides": overrides, "session": sess}, nil
    })
}

// ChangesHandler handles POST /api/scenario/changes
func (s *Server) ChangesHandler(w http.ResponseWriter, r *http.Request) {
    var req struct {
        Changes []model.Change `json:"changes"`
    }
    if err := decodeJSON(r, &req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    changes, err := validateChanges(req.Changes)
    if err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid changes", err.Error(), r.URL.Path)
        return
    }
    s.withSession(w, r, func(sess *session.Session) (any, error) {
        if !sess.Apply(changes...) {
            return nil, session.ErrNotEditing
        }
        return map[string]any{"changes": sess.Changes}, nil
    })
}

// SaveScenarioHandler handles POST /api/scenario/save
func (s *Server) SaveScenarioHandler(w http.ResponseWriter, r *http.Request) {
    var req struct {
        Name string `json:"scenario_name"`
        Type string `json:"scenario_type"`
    }
    if err := decodeJSON(r, &req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if err := validateScenarioType(req.Type); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid scenario", err.Error(), r.URL.Path)
        return
    }
    s.withSession(w, r, func(sess *session.Session) (any, error) {
        pending := len(sess.Changes)
        sc, err := sess.Save(r.Context(), s.Service, req.Name, req.Type)
        if err != nil {
            return nil, err
        }
        return map[string]any{
            "status":        "saved",
            "scenario_id":   sc.ID,
            "scenario_name": sc.Name,
            "scenario_type": sc.Type,
            "overrides":     pending,
        }, nil
    })
}

// CloseScenarioHandler handles POST /api/scenario/close. Unsaved edits are
// dropped.
func (s *Server) CloseScenarioHandler(w http.ResponseWriter, r *http.Request) {
    s.withSession(w, r, func(sess *session.Session) (any, error) {
        sess.Reset()
        return sess, nil
    })
}

// ListScenariosHandler handles GET /api/scenario/list
func (s *Server) ListScenariosHandler(w http.ResponseWriter, r *http.Request) {
    items, err := s.Service.Store().ListScenarios(r.Context())
    if err != nil { writeError(w, r, "List scenarios failed", err); return }
    writeJSON(w, http.StatusOK, map[string]any{"scenarios": items})
}

// GetScenarioHandler handles GET /api/scenario/{id}
func (s *Server) GetScenarioHandler(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    ctx := r.Context()
    sc, err := s.Service.Store().GetScenario(ctx, id)
    if err != nil { writeError(w, r, "Get scenario failed", err); return }
    overrides, err := s.Service.Store().ListOverrides(ctx, id)
    if err != nil { writeError(w, r, "Get scenario failed", err); return }
    writeJSON(w, http.StatusOK, map[string]any{"scenario": sc, "overrides": overrides})
}

// DeleteScenarioHandler handles DELETE /api/scenario/{id}. A session pointing
// at the deleted scenario is reset.
func (s *Server) DeleteScenarioHandler(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    if err := s.Service.DeleteScenario(r.Context(), id); err != nil {
        writeError(w, r, "Delete scenario failed", err)
        return
    }
    sc, err := s.openSession(r)
    if err == nil && sc.state.ScenarioID == id {
        sc.state.Reset()
        if err := s.closeSession(w, r, sc); err != nil {
            logging.FromContext(r.Context()).Warn("session reset failed", "error", err)
        }
    }
    w.WriteHeader(http.StatusNoContent)
}

// SolveHandler handles POST /v1/solve. With use_session the caller's
// effective scenario and buffered edits are solved instead of scenario_id.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
    var req struct {
        whatif.Request
        UseSession bool `json:"use_session"`
    }
    if err := decodeJSON(r, &req); err != nil {
        writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
        return
    }
    if req.ScenarioID < 0 {
        writeProblem(w, http.StatusBadRequest, "Invalid solve request", "scenario_id must be >= 0", r.URL.Path)
        return
    }
    if req.UseSession {
        sc, err := s.openSession(r)
        if err != nil { writeProblem(w, http.StatusInternalServerError, "Session unavailable", err.Error(), r.URL.Path); return }
        eff := whatif.Effective(sc.state)
        req.ScenarioID, req.Pending, req.Replace = eff.ScenarioID, eff.Pending, eff.Replace
    }
    res, err := s.Service.Solve(r.Context(), req.Request)
    if err != nil {
        writeError(w, r, "Solve failed", err)
        return
    }
    writeJSON(w, http.StatusOK, res)
}

// NetworkHandler handles GET /v1/network?scenario_id=
func (s *Server) NetworkHandler(w http.ResponseWriter, r *http.Request) {
    var id int64
    if v := r.URL.Query().Get("scenario_id"); v != "" {
        n, err := strconv.ParseInt(v, 10, 64)
        if err != nil || n < 0 {
            writeProblem(w, http.StatusBadRequest, "Invalid scenario_id", v, r.URL.Path)
            return
        }
        id = n
    }
    ds, err := s.Service.Dataset(r.Context(), id, nil)
    if err != nil {
        writeError(w, r, "Network failed", err)
        return
    }
    writeJSON(w, http.StatusOK, ds)
}

// ScenarioEventsHandler streams scenario events over SSE. Scenario 0 carries
// baseline solves.
func (s *Server) ScenarioEventsHandler(w http.ResponseWriter, r *http.Request) {
    id, ok := pathID(w, r)
    if !ok { return }
    if id != 0 {
        if _, err := s.Service.Store().GetScenario(r.Context(), id); err != nil {
            writeError(w, r, "Scenario events failed", err)
            return
        }
    }
    flusher, ok := w.(http.Flusher)
    if !ok { writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path); return }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")

    if s.Broker == nil { writeProblem(w, http.StatusServiceUnavailable, "Events unavailable", "no event broker configured", r.URL.Path); return }
    topic := events.Topic(id)
    ch := s.Broker.Subscribe(topic)
    defer s.Broker.Unsubscribe(topic, ch)
    heartbeat := func() {
        fmt.Fprintf(w, "event: heartbeat\n")
        fmt.Fprintf(w, "data: {\"scenario_id\":%d,\"ts\":\"%s\"}\n\n", id, time.Now().UTC().Format(time.RFC3339))
        flusher.Flush()
    }
    heartbeat()
    tick := time.NewTicker(15 * time.Second)
    defer tick.Stop()
    for {
        select {
        case <-r.Context().Done():
            return
        case evt, open := <-ch:
            if !open { return }
            b, _ := json.Marshal(evt)
            fmt.Fprintf(w, "id: %s\n", evt.ID)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", b)
            flusher.Flush()
        case <-tick.C:
            heartbeat()
        }
    }
}

// SolveStatsHandler handles GET /v1/admin/solve-stats
func (s *Server) SolveStatsHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]any{"items": s.Service.Stats().List()})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
    defer cancel()
    if err := s.Service.Store().Ping(ctx); err != nil { writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path); return }
    writeJSON(w, 200, map[string]string{"status": "ready"})
}

// withSession runs fn against the caller's session and commits it when fn
// succeeds. The session is left untouched in the backend on error.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(*session.Session) (any, error)) {
    sc, err := s.openSession(r)
    if err != nil { writeProblem(w, http.StatusInternalServerError, "Session unavailable", err.Error(), r.URL.Path); return }
    out, err := fn(sc.state)
    if err != nil {
        writeError(w, r, "Session update failed", err)
        return
    }
    if err := s.closeSession(w, r, sc); err != nil {
        writeProblem(w, http.StatusInternalServerError, "Session unavailable", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, out)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
    raw := chi.URLParam(r, "id")
    id, err := strconv.ParseInt(raw, 10, 64)
    if err != nil || id < 0 {
        writeProblem(w, http.StatusBadRequest, "Invalid id", raw, r.URL.Path)
        return 0, false
    }
    return id, true
}
