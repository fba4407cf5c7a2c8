// Package whatif runs scenario solves end to end: read the baseline and a
// scenario's overrides, materialize, compile constraint facts, and solve.
package whatif

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"optiguide/internal/constraints"
	"optiguide/internal/events"
	"optiguide/internal/metrics"
	"optiguide/internal/model"
	"optiguide/internal/opt"
	"optiguide/internal/scenario"
	"optiguide/internal/store"
)

var tracer = otel.Tracer("optiguide.whatif")

// Request is one solve. ScenarioID 0 solves the baseline. Pending overrides
// are applied after the stored ones, so they win on conflict. With Replace set
// Pending is the scenario's complete override set and nothing stored is read.
type Request struct {
	ScenarioID int64            `json:"scenario_id,omitempty"`
	Facts      []model.Fact     `json:"constraints"`
	Pending    []model.Override `json:"-"`
	Replace    bool             `json:"-"`
}

// Service is safe for concurrent use; every call builds its own dataset.
type Service struct {
	store     store.Store
	optimizer *opt.Optimizer
	stats     *opt.StatsStore
	events    events.Publisher
	log       *slog.Logger
}

func NewService(st store.Store, o *opt.Optimizer, stats *opt.StatsStore, pub events.Publisher, log *slog.Logger) *Service {
	if stats == nil {
		stats = opt.NewStatsStore()
	}
	return &Service{store: st, optimizer: o, stats: stats, events: pub, log: log}
}

func (s *Service) Store() store.Store     { return s.store }
func (s *Service) Stats() *opt.StatsStore { return s.stats }

// Dataset materializes the effective network for scenarioID plus pending.
// A scenario id that does not exist yields store.ErrNotFound. A malformed
// stored value yields *scenario.MalformedOverrideError.
func (s *Service) Dataset(ctx context.Context, scenarioID int64, pending []model.Override) (scenario.Dataset, error) {
	return s.DatasetFor(ctx, Request{ScenarioID: scenarioID, Pending: pending})
}

// DatasetFor materializes the network req would be solved against.
func (s *Service) DatasetFor(ctx context.Context, req Request) (scenario.Dataset, error) {
	scenarioID, pending := req.ScenarioID, req.Pending
	ctx, span := tracer.Start(ctx, "whatif.Materialize", trace.WithAttributes(
		attribute.Int64("scenario.id", scenarioID),
		attribute.Int("scenario.pending", len(pending)),
		attribute.Bool("scenario.replace", req.Replace),
	))
	defer span.End()

	baseline, err := store.LoadNetwork(ctx, s.store)
	if err != nil {
		span.RecordError(err)
		return scenario.Dataset{}, fmt.Errorf("load baseline: %w", err)
	}
	var overrides []model.Override
	if scenarioID != 0 {
		if _, err := s.store.GetScenario(ctx, scenarioID); err != nil {
			return scenario.Dataset{}, err
		}
		if !req.Replace {
			if overrides, err = s.store.ListOverrides(ctx, scenarioID); err != nil {
				span.RecordError(err)
				return scenario.Dataset{}, fmt.Errorf("list overrides: %w", err)
			}
		}
	}
	overrides = append(overrides, pending...)

	ds, err := scenario.Materialize(baseline, overrides)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "materialize")
		return scenario.Dataset{}, err
	}
	for _, sk := range ds.Skipped {
		metrics.SkippedOverrides.WithLabelValues(sk.Reason).Inc()
		s.log.Debug("override skipped", "scenario_id", scenarioID, "reason", sk.Reason, "override_id", sk.Override.ID)
	}
	span.SetAttributes(attribute.Int("scenario.overrides", len(overrides)), attribute.Int("scenario.skipped", len(ds.Skipped)))
	return ds, nil
}

// Solve runs one what-if. Solver outcomes and malformed overrides come back as
// a result status with a nil error; err is reserved for an unknown scenario or
// a storage failure.
func (s *Service) Solve(ctx context.Context, req Request) (model.SolveResult, error) {
	ctx, span := tracer.Start(ctx, "whatif.Solve", trace.WithAttributes(
		attribute.Int64("scenario.id", req.ScenarioID),
		attribute.Int("constraints.count", len(req.Facts)),
	))
	defer span.End()
	start := time.Now()

	ds, err := s.DatasetFor(ctx, req)
	var malformed *scenario.MalformedOverrideError
	switch {
	case errors.As(err, &malformed):
		res := model.ErrorResult(malformed.Error())
		s.finish(ctx, req.ScenarioID, res, opt.Stats{State: opt.StateError, Duration: time.Since(start)})
		return res, nil
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "dataset")
		return model.SolveResult{}, err
	}

	_, cspan := tracer.Start(ctx, "whatif.Compile")
	m := constraints.Compile(ds, req.Facts)
	cspan.SetAttributes(
		attribute.Int("model.edges", len(m.Edges)),
		attribute.Int("model.excluded", len(m.Excluded)),
		attribute.Int("model.ignored_facts", m.Ignored),
	)
	cspan.End()

	res, st := s.optimizer.Solve(ctx, m)
	span.SetAttributes(
		attribute.String("solve.status", string(res.Status)),
		attribute.Int("solve.variables", st.Variables),
		attribute.Int("solve.selected", st.Selected),
	)
	if res.Status == model.StatusError {
		span.SetStatus(codes.Error, res.Message)
	}
	s.finish(ctx, req.ScenarioID, res, st)
	return res, nil
}

func (s *Service) finish(ctx context.Context, scenarioID int64, res model.SolveResult, st opt.Stats) {
	metrics.SolveOutcomes.WithLabelValues(string(res.Status)).Inc()
	metrics.SolveDuration.WithLabelValues(string(res.Status)).Observe(st.Duration.Seconds())
	s.stats.Record(opt.SolveRecord{ScenarioID: scenarioID, Status: string(res.Status), TotalCost: res.TotalCost, Stats: st})
	s.log.InfoContext(ctx, "solve finished",
		"scenario_id", scenarioID,
		"status", res.Status,
		"assignments", len(res.Assignments),
		"total_cost", res.TotalCost,
		"duration", st.Duration,
	)
	if s.events != nil {
		s.events.Publish(events.Topic(scenarioID), events.New(events.SolveCompleted, scenarioID, map[string]any{
			"status":      res.Status,
			"total_cost":  res.TotalCost,
			"assignments": len(res.Assignments),
		}))
	}
}

// SaveScenario persists req and announces it.
func (s *Service) SaveScenario(ctx context.Context, req store.SaveRequest) (model.Scenario, error) {
	sc, err := s.store.SaveScenario(ctx, req)
	if err != nil {
		return model.Scenario{}, err
	}
	s.log.InfoContext(ctx, "scenario saved", "scenario_id", sc.ID, "name", sc.Name, "overrides", len(req.Overrides))
	if s.events != nil {
		s.events.Publish(events.Topic(sc.ID), events.New(events.ScenarioSaved, sc.ID, map[string]any{
			"name":      sc.Name,
			"overrides": len(req.Overrides),
		}))
	}
	return sc, nil
}

// DeleteScenario removes a scenario with its overrides and solve record.
func (s *Service) DeleteScenario(ctx context.Context, id int64) error {
	if err := s.store.DeleteScenario(ctx, id); err != nil {
		return err
	}
	s.stats.Forget(id)
	s.log.InfoContext(ctx, "scenario deleted", "scenario_id", id)
	if s.events != nil {
		s.events.Publish(events.Topic(id), events.New(events.ScenarioDeleted, id, nil))
	}
	return nil
}
