package model

import (
    "encoding/json"
    "fmt"
    "strconv"
    "strings"
)

// FactKind names a constraint fact. The string values are the wire "type" keys
// produced by constraint extraction.
type FactKind string

const (
    FactExcludeSupply  FactKind = "exclude_warehouse"
    FactMaxRouteCost   FactKind = "max_cost"
    FactMinInventory   FactKind = "min_inventory"
    FactMaxBudget      FactKind = "max_budget"
    FactChannelInclude FactKind = "channel_include"
    FactChannelExclude FactKind = "channel_exclude"
    FactSkuFocus       FactKind = "sku_focus"
    FactSkuExclude     FactKind = "sku_exclude"
    FactMinROI         FactKind = "min_roi"
    FactMinLift        FactKind = "min_lift"
    FactPromoDuration  FactKind = "promo_duration"
    FactDiscountLimit  FactKind = "discount_limit"
)

var knownFacts = map[FactKind]struct{}{
    FactExcludeSupply: {}, FactMaxRouteCost: {}, FactMinInventory: {}, FactMaxBudget: {},
    FactChannelInclude: {}, FactChannelExclude: {}, FactSkuFocus: {}, FactSkuExclude: {},
    FactMinROI: {}, FactMinLift: {}, FactPromoDuration: {}, FactDiscountLimit: {},
}

// Fact is one typed constraint. Which fields are meaningful depends on Kind:
// Name for supply-node facts, Label for channel/SKU facts, Value for numeric
// bounds and Text for the promotion duration.
type Fact struct {
    Kind  FactKind
    Name  string
    Label string
    Value float64
    Text  string
}

// Known reports whether the compiler understands this fact kind.
func (f Fact) Known() bool {
    _, ok := knownFacts[f.Kind]
    return ok
}

func ExcludeSupply(name string) Fact       { return Fact{Kind: FactExcludeSupply, Name: name} }
func MaxRouteCost(v float64) Fact          { return Fact{Kind: FactMaxRouteCost, Value: v} }
func MaxBudget(v float64) Fact             { return Fact{Kind: FactMaxBudget, Value: v} }
func MinInventory(name string, v float64) Fact {
    return Fact{Kind: FactMinInventory, Name: name, Value: v}
}
func ChannelInclude(label string) Fact { return Fact{Kind: FactChannelInclude, Label: label} }
func ChannelExclude(label string) Fact { return Fact{Kind: FactChannelExclude, Label: label} }
func SkuFocus(label string) Fact       { return Fact{Kind: FactSkuFocus, Label: label} }
func SkuExclude(label string) Fact     { return Fact{Kind: FactSkuExclude, Label: label} }
func MinROI(v float64) Fact            { return Fact{Kind: FactMinROI, Value: v} }
func MinLift(v float64) Fact           { return Fact{Kind: FactMinLift, Value: v} }
func PromoDuration(text string) Fact   { return Fact{Kind: FactPromoDuration, Text: text} }
func DiscountLimit(v float64) Fact     { return Fact{Kind: FactDiscountLimit, Value: v} }

// MarshalJSON writes the flat {"type": ...} shape used on the wire.
func (f Fact) MarshalJSON() ([]byte, error) {
    m := map[string]any{"type": string(f.Kind)}
    switch f.Kind {
    case FactExcludeSupply:
        m["warehouse"] = f.Name
    case FactMinInventory:
        m["warehouse"] = f.Name
        m["value"] = f.Value
    case FactChannelInclude, FactChannelExclude:
        m["channel"] = f.Label
    case FactSkuFocus, FactSkuExclude:
        m["sku"] = f.Label
    case FactPromoDuration:
        m["value"] = f.Text
    default:
        m["value"] = f.Value
    }
    return json.Marshal(m)
}

// UnmarshalJSON accepts the wire shape. Unknown kinds decode without error so
// the compiler can ignore them.
func (f *Fact) UnmarshalJSON(data []byte) error {
    var raw struct {
        Type      string          `json:"type"`
        Warehouse string          `json:"warehouse"`
        Name      string          `json:"name"`
        Channel   string          `json:"channel"`
        SKU       string          `json:"sku"`
        Label     string          `json:"label"`
        Value     json.RawMessage `json:"value"`
    }
    if err := json.Unmarshal(data, &raw); err != nil {
        return err
    }
    out := Fact{Kind: FactKind(strings.ToLower(strings.TrimSpace(raw.Type)))}
    out.Name = firstNonEmpty(raw.Warehouse, raw.Name)
    out.Label = firstNonEmpty(raw.Channel, raw.SKU, raw.Label)
    if len(raw.Value) > 0 && string(raw.Value) != "null" {
        var num float64
        if err := json.Unmarshal(raw.Value, &num); err == nil {
            out.Value = num
        } else {
            var s string
            if err := json.Unmarshal(raw.Value, &s); err != nil {
                return fmt.Errorf("fact %s: value must be a number or string", raw.Type)
            }
            out.Text = s
            if v, perr := strconv.ParseFloat(strings.TrimSpace(s), 64); perr == nil {
                out.Value = v
            }
        }
    }
    *f = out
    return nil
}

func firstNonEmpty(vals ...string) string {
    for _, v := range vals {
        if v != "" {
            return v
        }
    }
    return ""
}
