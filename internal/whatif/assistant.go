package whatif

import (
	"context"
	"fmt"
	"strings"

	"optiguide/internal/intent"
	"optiguide/internal/metrics"
	"optiguide/internal/model"
	"optiguide/internal/nlg"
	"optiguide/internal/opt"
	"optiguide/internal/session"
)

// Reply is the answer to one chat message.
type Reply struct {
	Intent  intent.Label   `json:"intent"`
	Result  any            `json:"response"`
	NLG     string         `json:"nlg"`
	Facts   []model.Fact   `json:"constraints"`
	Applied []model.Change `json:"applied_changes,omitempty"`
}

// Assistant answers chat messages against the session's effective dataset.
type Assistant struct {
	service  *Service
	parser   intent.Parser
	radiusKm float64
}

func NewAssistant(svc *Service, p intent.Parser, radiusKm float64) *Assistant {
	if p == nil {
		p = intent.Rules{}
	}
	return &Assistant{service: svc, parser: p, radiusKm: radiusKm}
}

// Handle parses text, records any edits in sess (only while editing) and
// answers the intent. sess may be mutated; the caller persists it.
func (a *Assistant) Handle(ctx context.Context, sess *session.Session, text string) (Reply, error) {
	parsed := a.parser.Parse(text)
	metrics.ChatIntents.WithLabelValues(string(parsed.Intent)).Inc()

	reply := Reply{Intent: parsed.Intent, Facts: parsed.Facts}
	if sess != nil && len(parsed.Changes) > 0 && sess.Apply(parsed.Changes...) {
		reply.Applied = parsed.Changes
	}

	req := Effective(sess)
	var err error
	switch parsed.Intent {
	case intent.ListWarehouses, intent.ListRetailers, intent.FindRoutes, intent.CalculateDemand:
		reply.Result, err = a.lookup(ctx, parsed, req)
	case intent.WhatIf:
		req.Facts = parsed.Facts
		reply.Result, err = a.service.Solve(ctx, req)
	default:
		reply.Result = "Sorry, I couldn't interpret your request."
	}
	if err != nil {
		return Reply{}, err
	}
	reply.NLG = nlg.Generate(parsed.Intent, reply.Result)
	return reply, nil
}

// Effective is the scenario a session's questions are asked against. While
// editing it is exactly what a save would write: the buffer replaces the
// stored overrides rather than layering on top of them.
func Effective(sess *session.Session) Request {
	if sess == nil {
		return Request{}
	}
	switch sess.State {
	case session.EditingNew:
		return Request{Pending: sess.Pending()}
	case session.EditingExisting:
		return Request{ScenarioID: sess.ScenarioID, Pending: sess.Pending(), Replace: true}
	case session.ViewOnly:
		return Request{ScenarioID: sess.ScenarioID}
	}
	return Request{}
}

func (a *Assistant) lookup(ctx context.Context, p intent.Parsed, req Request) (any, error) {
	ds, err := a.service.DatasetFor(ctx, req)
	if err != nil {
		return nil, err
	}
	switch p.Intent {
	case intent.ListWarehouses:
		return ds.Supply, nil
	case intent.ListRetailers:
		return ds.Demand, nil
	case intent.FindRoutes:
		return ds.Routes, nil
	}
	if p.Warehouse == "" {
		return "Please name a warehouse, for example: demand near warehouse WH_1.", nil
	}
	for _, w := range ds.Supply {
		if strings.EqualFold(w.Name, p.Warehouse) {
			return opt.DemandWithin(w, ds.Demand, a.radiusKm), nil
		}
	}
	return fmt.Sprintf("Warehouse '%s' not found.", p.Warehouse), nil
}
