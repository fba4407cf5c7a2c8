package intent

import (
	"regexp"
	"strconv"
	"strings"

	"optiguide/internal/model"
	"optiguide/internal/scenario"
)

const number = `(\d+(?:\.\d+)?)`

var (
	reExcludeWarehouse = regexp.MustCompile(`(?i)\b(?:exclude|excluding|without|close|remove)\s+warehouse\s+['"]?([A-Za-z0-9_\-]+)`)
	reMaxCost          = regexp.MustCompile(`(?i)(?:max(?:imum)?\s+(?:route\s+)?cost(?:\s+of)?|cost\s+(?:under|below|at\s+most|<=?))\s*\$?` + number + `([kKmM])?`)
	reBudgetUnder      = regexp.MustCompile(`(?i)(?:under|below)\s*\$?` + number + `([kKmM])?\s*(?:budget|spend)`)
	reBudget           = regexp.MustCompile(`(?i)budget\s*(?:of|under|below|<)?\s*\$?` + number + `([kKmM])?`)
	reMinInventory     = regexp.MustCompile(`(?i)(?:min(?:imum)?\s+inventory(?:\s+of)?|inventory\s+(?:of\s+)?(?:at\s+least|>=?|above|over))\s*` + number + `(?:\s+(?:at|for|in)\s+(?:warehouse\s+)?['"]?([A-Za-z0-9_\-]+))?`)
	rePromoDuration    = regexp.MustCompile(`(?i)(?:for|lasting)\s*(\d+)\s*(weeks?|days?|months?)`)
	reDiscount         = regexp.MustCompile(`(?i)(?:max|min)?\s*discount\s*` + number + `%`)
	reSkuFocus         = regexp.MustCompile(`(?i)\b(?:only|focus\s+on)\s+([a-zA-Z0-9 ]+)`)
	reSkuExclude       = regexp.MustCompile(`(?i)\bexclude\s+([a-zA-Z0-9 ]+)`)
	reROI              = regexp.MustCompile(`(?i)roi\s*>\s*` + number + `x`)
	reLift             = regexp.MustCompile(`(?i)(?:lift|increase)\s*>\s*` + number + `%`)
	reChange           = regexp.MustCompile(`(?i)\b(?:set|change|update)\s+(?:the\s+)?([a-z_]+)\s+(?:of|for)\s+(warehouse|retailer|route)s?\s*#?(\d+)\s+to\s+\$?([^\s,;]+)`)
)

var channels = []struct{ keyword, label string }{
	{"walmart", "Walmart"},
	{"target", "Target"},
}

// ExtractFacts returns the constraint facts found in text, in a fixed order.
func ExtractFacts(text string) []model.Fact {
	lower := strings.ToLower(text)
	facts := []model.Fact{}

	for _, m := range reExcludeWarehouse.FindAllStringSubmatch(text, -1) {
		facts = append(facts, model.ExcludeSupply(m[1]))
	}
	if m := reMaxCost.FindStringSubmatch(text); m != nil {
		facts = append(facts, model.MaxRouteCost(scaled(m[1], m[2])))
	}
	if m := reBudgetUnder.FindStringSubmatch(text); m != nil {
		facts = append(facts, model.MaxBudget(scaled(m[1], m[2])))
	} else if m := reBudget.FindStringSubmatch(text); m != nil {
		facts = append(facts, model.MaxBudget(scaled(m[1], m[2])))
	}
	for _, m := range reMinInventory.FindAllStringSubmatch(text, -1) {
		facts = append(facts, model.MinInventory(m[2], scaled(m[1], "")))
	}
	if m := rePromoDuration.FindStringSubmatch(text); m != nil {
		facts = append(facts, model.PromoDuration(m[1]+" "+m[2]))
	}
	if m := reDiscount.FindStringSubmatch(text); m != nil {
		facts = append(facts, model.DiscountLimit(scaled(m[1], "")))
	}
	for _, c := range channels {
		if strings.Contains(lower, c.keyword) {
			facts = append(facts, model.ChannelInclude(c.label))
		}
	}
	if strings.Contains(lower, "exclude e-commerce") || strings.Contains(lower, "no online") {
		facts = append(facts, model.ChannelExclude("E-commerce"))
	}
	if m := reSkuFocus.FindStringSubmatch(text); m != nil {
		if sku := strings.TrimSpace(m[1]); sku != "" {
			facts = append(facts, model.SkuFocus(sku))
		}
	}
	for _, m := range reSkuExclude.FindAllStringSubmatchIndex(text, -1) {
		sku := strings.TrimSpace(text[m[2]:m[3]])
		rest := strings.ToLower(text[m[2]:])
		if sku == "" || strings.HasPrefix(rest, "warehouse") || strings.HasPrefix(rest, "e-commerce") {
			continue
		}
		facts = append(facts, model.SkuExclude(sku))
	}
	if m := reROI.FindStringSubmatch(text); m != nil {
		facts = append(facts, model.MinROI(scaled(m[1], "")))
	}
	if m := reLift.FindStringSubmatch(text); m != nil {
		facts = append(facts, model.MinLift(scaled(m[1], "")))
	}
	return facts
}

// ExtractChanges finds edits such as "set demand of retailer 1 to 120".
// Phrases naming an unknown column or carrying a value the column cannot
// hold are dropped.
func ExtractChanges(text string) []model.Change {
	var out []model.Change
	for _, m := range reChange.FindAllStringSubmatch(text, -1) {
		table, ok := scenario.CanonicalTable(strings.ToLower(m[2]))
		if !ok {
			continue
		}
		column := strings.ToLower(m[1])
		value := strings.TrimRight(m[4], ".!?")
		if scenario.CheckValue(table, column, value) != nil {
			continue
		}
		row, err := strconv.ParseInt(m[3], 10, 64)
		if err != nil {
			continue
		}
		out = append(out, model.Change{
			Table:    table,
			RowID:    row,
			Column:   column,
			NewValue: value,
		})
	}
	return out
}

// scaled parses digits with an optional k/M suffix.
func scaled(digits, suffix string) float64 {
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(suffix) {
	case "k":
		v *= 1_000
	case "m":
		v *= 1_000_000
	}
	return v
}
