package export

import (
	"sort"

	"github.com/baxromumarov/econ-indicators/internal/indicator"
)

type Point struct {
	Year  int     `json:"year"`
	Value float64 `json:"value"`
}

// Series is one line of a chart: a single entity and indicator over time.
type Series struct {
	Entity         string  `json:"entity"`
	Label          string  `json:"label"`
	Indicator      string  `json:"indicator"`
	IndicatorLabel string  `json:"indicator_label,omitempty"`
	Points         []Point `json:"points"`
}

// BuildSeries groups tbl by (entity, indicator) in first-seen order.
// Absent values are left out and points are sorted by year.
func BuildSeries(tbl indicator.Table) []Series {
	type key struct{ entity, indicator string }

	index := make(map[key]int)
	var out []Series
	for _, o := range tbl.Observations {
		k := key{o.Entity, o.Indicator}
		i, ok := index[k]
		if !ok {
			label := o.EntityLabel
			if label == "" {
				label = o.Entity
			}
			out = append(out, Series{
				Entity:         o.Entity,
				Label:          label,
				Indicator:      o.Indicator,
				IndicatorLabel: o.IndicatorLabel,
				Points:         []Point{},
			})
			i = len(out) - 1
			index[k] = i
		}
		if o.Value == nil {
			continue
		}
		out[i].Points = append(out[i].Points, Point{Year: o.Year, Value: *o.Value})
	}

	for i := range out {
		pts := out[i].Points
		sort.SliceStable(pts, func(a, b int) bool { return pts[a].Year < pts[b].Year })
	}
	return out
}
