// Package nlg renders query results as short sentences for the chat UI.
package nlg

import (
	"fmt"
	"strconv"
	"strings"

	"optiguide/internal/intent"
	"optiguide/internal/model"
	"optiguide/internal/opt"
)

// sampleSize caps how many routes or assignments are spelled out.
const sampleSize = 3

// Generate summarizes result for the given intent. Unexpected result shapes
// fall back to a generic sentence rather than failing.
func Generate(label intent.Label, result any) string {
	if s, ok := result.(string); ok {
		return s
	}
	switch label {
	case intent.ListWarehouses:
		nodes, _ := result.([]model.SupplyNode)
		if len(nodes) == 0 {
			return "No warehouses found."
		}
		names := make([]string, 0, len(nodes))
		for _, n := range nodes {
			names = append(names, orUnknown(n.Name))
		}
		return fmt.Sprintf("Warehouses: %s.", strings.Join(names, ", "))

	case intent.ListRetailers:
		nodes, _ := result.([]model.DemandNode)
		if len(nodes) == 0 {
			return "No retailers found."
		}
		names := make([]string, 0, len(nodes))
		for _, n := range nodes {
			names = append(names, orUnknown(n.Name))
		}
		return fmt.Sprintf("Retailers: %s.", strings.Join(names, ", "))

	case intent.FindRoutes:
		routes, _ := result.([]model.Route)
		if len(routes) == 0 {
			return "No routes found."
		}
		sample := make([]string, 0, sampleSize)
		for _, r := range routes[:min(sampleSize, len(routes))] {
			sample = append(sample, edge(r.SupplyID, r.DemandID, r.Cost))
		}
		return fmt.Sprintf("Found %d routes. Sample assignments: %s.", len(routes), strings.Join(sample, ", "))

	case intent.CalculateDemand:
		nd, ok := result.(opt.NearbyDemand)
		if !ok || nd.Warehouse == "" {
			return "Demand data not available."
		}
		return fmt.Sprintf("Total demand near warehouse '%s' is %s from %d nearby retailers.",
			nd.Warehouse, num(nd.TotalDemand), nd.Count)

	case intent.WhatIf:
		res, ok := result.(model.SolveResult)
		if !ok {
			return "No what-if data found."
		}
		if len(res.Assignments) == 0 {
			if res.Message != "" {
				return fmt.Sprintf("What-if scenario completed with status '%s'. No assignments found (%s).", res.Status, res.Message)
			}
			return fmt.Sprintf("What-if scenario completed with status '%s'. No assignments found.", res.Status)
		}
		sample := make([]string, 0, sampleSize)
		for _, a := range res.Assignments[:min(sampleSize, len(res.Assignments))] {
			sample = append(sample, edge(a.SupplyID, a.DemandID, a.Cost))
		}
		return fmt.Sprintf("What-if scenario completed with status '%s'. Sample assignments: %s.", res.Status, strings.Join(sample, ", "))
	}
	return "Here is the result of your query."
}

func edge(supplyID, demandID int64, cost float64) string {
	return fmt.Sprintf("WH_%d -> RT_%d (cost $%s)", supplyID, demandID, num(cost))
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
