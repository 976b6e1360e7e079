package core

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ResourceType names a remote resource collection. Values match the API's
// collection path segments.
type ResourceType string

const (
	ResourceIncident         ResourceType = "incidents"
	ResourceAlert            ResourceType = "alerts"
	ResourceService          ResourceType = "services"
	ResourceEscalationPolicy ResourceType = "escalation_policies"
	ResourceLogEntry         ResourceType = "log_entries"
	ResourceUser             ResourceType = "users"
	ResourceTeam             ResourceType = "teams"
)

// Collection returns the collection name of a resource type: the last path
// segment, so the subresource path incidents/P1/alerts reports "alerts".
func (rt ResourceType) Collection() ResourceType {
	s := string(rt)
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return ResourceType(s[i+1:])
	}
	return rt
}

// Singular returns the entity name for a collection: "incidents" → "incident",
// "escalation_policies" → "escalation_policy".
func (rt ResourceType) Singular() string {
	s := string(rt.Collection())
	if strings.HasSuffix(s, "ies") {
		return strings.TrimSuffix(s, "ies") + "y"
	}
	return strings.TrimSuffix(s, "s")
}

// AlertsOf returns the subresource type holding one incident's alerts. It
// queries like any ResourceType; its records carry type "alerts".
func AlertsOf(incidentID string) ResourceType {
	return ResourceType(string(ResourceIncident) + "/" + incidentID + "/" + string(ResourceAlert))
}

// Record is the uniform shape every fetched resource reduces to. Fields
// holds the provider item verbatim, so unknown provider fields survive a
// round trip through the cache. Stale marks records served from an expired
// cache entry after a failed refresh.
type Record struct {
	ID        string         `json:"id" yaml:"id"`
	Type      ResourceType   `json:"type" yaml:"type"`
	Fields    map[string]any `json:"fields" yaml:"fields"`
	FetchedAt time.Time      `json:"fetched_at" yaml:"fetched_at"`
	Version   string         `json:"version,omitempty" yaml:"version,omitempty"`
	Stale     bool           `json:"stale" yaml:"stale"`
}

// Lookup resolves a dotted path against the record's fields. Each segment
// descends into an object; a numeric segment indexes into a list. A path
// that leads nowhere yields an absent Value, never an error.
func (r Record) Lookup(path string) Value {
	var cur any = r.Fields
	for _, seg := range strings.Split(path, ".") {
		switch c := cur.(type) {
		case map[string]any:
			next, ok := c[seg]
			if !ok {
				return Value{Kind: KindAbsent}
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return Value{Kind: KindAbsent}
			}
			cur = c[idx]
		default:
			return Value{Kind: KindAbsent}
		}
	}
	return valueOf(cur)
}

// Kind classifies a looked-up value. Absent (the path never resolved) is
// distinct from null (the provider sent an explicit null).
type Kind int

const (
	KindAbsent Kind = iota
	KindNull
	KindString
	KindNumber
	KindBool
	KindList
	KindObject
)

// Value is the result of a Lookup: the field's runtime type plus its value.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Bool bool
	raw  any // lists and objects, for Text()
}

func valueOf(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{Kind: KindNull}
	case string:
		return Value{Kind: KindString, Str: t}
	case float64:
		return Value{Kind: KindNumber, Num: t}
	case bool:
		return Value{Kind: KindBool, Bool: t}
	case []any:
		return Value{Kind: KindList, raw: t}
	case map[string]any:
		return Value{Kind: KindObject, raw: t}
	default:
		// json.Unmarshal into map[string]any never produces other types;
		// rule output re-decoded the same way keeps this invariant.
		return Value{Kind: KindAbsent}
	}
}

// Present reports whether the path resolved to anything, including null.
func (v Value) Present() bool { return v.Kind != KindAbsent }

// Text renders the value for display and regex matching. Nested values
// render as compact JSON; absent and null render empty.
func (v Value) Text() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindList, KindObject:
		data, err := json.Marshal(v.raw)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return ""
	}
}

// AsNumber coerces the value to a float64. Numbers pass through; numeric
// strings parse. Everything else fails.
func (v Value) AsNumber() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
