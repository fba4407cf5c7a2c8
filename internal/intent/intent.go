// Package intent turns a chat message into an intent label, constraint facts
// and scenario edits. The rules are deterministic; anything smarter plugs in
// behind Parser.
package intent

import (
	"regexp"
	"strings"

	"optiguide/internal/model"
)

type Label string

const (
	ListWarehouses  Label = "list_warehouses"
	ListRetailers   Label = "list_retailers"
	FindRoutes      Label = "find_routes"
	CalculateDemand Label = "calculate_demand"
	WhatIf          Label = "what_if"
	Unknown         Label = "unknown"
)

// Parsed is everything extracted from one message.
type Parsed struct {
	Intent  Label          `json:"intent"`
	Facts   []model.Fact   `json:"constraints"`
	Changes []model.Change `json:"modifications,omitempty"`
	// Warehouse names the subject of calculate_demand, when given.
	Warehouse string `json:"warehouse,omitempty"`
}

// Parser is text in, label and facts out.
type Parser interface {
	Parse(text string) Parsed
}

// Rules is the keyword/regex Parser.
type Rules struct{}

func (Rules) Parse(text string) Parsed {
	p := Parsed{
		Facts:   ExtractFacts(text),
		Changes: ExtractChanges(text),
	}
	p.Intent = classify(strings.ToLower(text), len(p.Changes) > 0)
	if p.Intent == CalculateDemand {
		p.Warehouse = subjectWarehouse(text)
	}
	return p
}

var whatIfWords = []string{"what if", "what-if", "scenario", "optimi", "solve", "exclude", "without", "budget", "assign"}

func classify(lower string, hasChanges bool) Label {
	if hasChanges || containsAny(lower, whatIfWords...) {
		return WhatIf
	}
	if strings.Contains(lower, "demand") && containsAny(lower, "near", "around", "within", "close to") {
		return CalculateDemand
	}
	if containsAny(lower, "route", "lane", "path") {
		return FindRoutes
	}
	if containsAny(lower, "retailer", "store", "customer") {
		return ListRetailers
	}
	if containsAny(lower, "warehouse", "depot", "facility") {
		return ListWarehouses
	}
	return Unknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

var warehouseSubject = regexp.MustCompile(`(?i)(?:near|around|within\s+\d+\s*km\s+of|close\s+to)\s+(?:warehouse\s+)?['"]?([A-Za-z0-9_\-]+)`)

func subjectWarehouse(text string) string {
	if m := warehouseSubject.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
