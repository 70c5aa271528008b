package indicator

import (
	"sort"
)

// Entity is a country, region or aggregate as the upstream API names it.
type Entity struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

type Indicator struct {
	Code        string `json:"code"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Unit        string `json:"unit,omitempty"`
}

// Observation is one data point. A nil Value means the period is absent upstream.
type Observation struct {
	Entity         string   `json:"entity"`
	EntityLabel    string   `json:"entity_label,omitempty"`
	Indicator      string   `json:"indicator"`
	IndicatorLabel string   `json:"indicator_label,omitempty"`
	Year           int      `json:"year"`
	Value          *float64 `json:"value"`
}

// Request selects one (entity, indicator) pair over an inclusive year range.
// A zero bound leaves that side open.
type Request struct {
	Entity    string `json:"entity"`
	Indicator string `json:"indicator"`
	From      int    `json:"from,omitempty"`
	To        int    `json:"to,omitempty"`
}

// InRange reports whether year falls inside the request's range.
func (r Request) InRange(year int) bool {
	if r.From != 0 && year < r.From {
		return false
	}
	if r.To != 0 && year > r.To {
		return false
	}
	return true
}

// Year bounds accepted from callers. Zero means "unbounded" and is always allowed.
const (
	MinYear = 1
	MaxYear = 9999
)

// ValidYears reports whether every set bound lies within MinYear..MaxYear.
func (r Request) ValidYears() bool {
	return validYear(r.From) && validYear(r.To)
}

func validYear(y int) bool {
	return y == 0 || (y >= MinYear && y <= MaxYear)
}

// EmptyRange is true when both bounds are set and inverted.
func (r Request) EmptyRange() bool {
	return r.From != 0 && r.To != 0 && r.From > r.To
}

// Float returns a pointer to v, for building observations.
func Float(v float64) *float64 {
	return &v
}

type Table struct {
	Observations []Observation `json:"observations"`
}

func NewTable(obs ...Observation) Table {
	return Table{Observations: obs}
}

func (t Table) Len() int {
	return len(t.Observations)
}

func (t Table) IsEmpty() bool {
	return len(t.Observations) == 0
}

type obsKey struct {
	entity    string
	indicator string
	year      int
}

func keyOf(o Observation) obsKey {
	return obsKey{entity: o.Entity, indicator: o.Indicator, year: o.Year}
}

// Normalize drops duplicate (entity, indicator, year) rows, keeping the first,
// and sorts by entity, indicator, then year ascending.
func (t Table) Normalize() Table {
	out := dedupe(t.Observations)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Entity != b.Entity {
			return a.Entity < b.Entity
		}
		if a.Indicator != b.Indicator {
			return a.Indicator < b.Indicator
		}
		return a.Year < b.Year
	})
	return Table{Observations: out}
}

// FilterYears keeps observations inside [from, to]. Zero bounds are open.
func (t Table) FilterYears(from, to int) Table {
	r := Request{From: from, To: to}
	if r.EmptyRange() {
		return Table{}
	}
	out := make([]Observation, 0, len(t.Observations))
	for _, o := range t.Observations {
		if r.InRange(o.Year) {
			out = append(out, o)
		}
	}
	return Table{Observations: out}
}

// Concat joins tables in the given order without re-sorting, so each input
// stays a contiguous block. Duplicate keys across inputs keep the first.
func Concat(tables ...Table) Table {
	n := 0
	for _, t := range tables {
		n += t.Len()
	}
	all := make([]Observation, 0, n)
	for _, t := range tables {
		all = append(all, t.Observations...)
	}
	return Table{Observations: dedupe(all)}
}

// Entities returns distinct entity codes in first-seen order.
func (t Table) Entities() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, o := range t.Observations {
		if _, ok := seen[o.Entity]; ok {
			continue
		}
		seen[o.Entity] = struct{}{}
		out = append(out, o.Entity)
	}
	return out
}

// WithLabels fills empty label columns from the given lookups, falling back to codes.
func (t Table) WithLabels(entities, indicators map[string]string) Table {
	out := make([]Observation, len(t.Observations))
	for i, o := range t.Observations {
		if o.EntityLabel == "" {
			o.EntityLabel = entities[o.Entity]
		}
		if o.EntityLabel == "" {
			o.EntityLabel = o.Entity
		}
		if o.IndicatorLabel == "" {
			o.IndicatorLabel = indicators[o.Indicator]
		}
		if o.IndicatorLabel == "" {
			o.IndicatorLabel = o.Indicator
		}
		out[i] = o
	}
	return Table{Observations: out}
}

func dedupe(obs []Observation) []Observation {
	seen := make(map[obsKey]struct{}, len(obs))
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		k := keyOf(o)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, o)
	}
	return out
}
