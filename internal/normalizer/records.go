package normalizer

import (
	"github.com/baxromumarov/econ-indicators/internal/indicator"
)

var (
	yearKeys      = []string{"year", "date", "period", "TIME_PERIOD"}
	valueKeys     = []string{"value", "obs_value", "OBS_VALUE"}
	entityKeys    = []string{"country", "entity", "countryiso3code", "economy"}
	indicatorKeys = []string{"indicator", "series"}
)

// recordParser handles sequences of {year, value, ...} records. World Bank
// wraps them as [metadata, records]; DataMapper as {data: records}.
type recordParser struct{}

func (recordParser) Format() Format { return FormatRecordArray }

func (recordParser) Parse(payload any, req indicator.Request) ([]indicator.Observation, error) {
	records, err := extractRecords(payload)
	if err != nil {
		return nil, err
	}

	var out []indicator.Observation
	for _, item := range records {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rawYear, ok := firstOf(rec, yearKeys...)
		if !ok {
			continue
		}
		year, ok := parseYear(rawYear)
		if !ok {
			continue
		}
		rawValue, _ := firstOf(rec, valueKeys...)
		v, ok := parseValue(rawValue)
		if !ok {
			continue
		}

		entity, entityLabel, ok := resolveField(rec, entityKeys, req.Entity)
		if !ok {
			continue
		}
		ind, indLabel, ok := resolveField(rec, indicatorKeys, req.Indicator)
		if !ok {
			continue
		}

		out = append(out, indicator.Observation{
			Entity:         entity,
			EntityLabel:    entityLabel,
			Indicator:      ind,
			IndicatorLabel: indLabel,
			Year:           year,
			Value:          indicator.Float(v),
		})
	}
	return out, nil
}

func extractRecords(payload any) ([]any, error) {
	switch t := payload.(type) {
	case []any:
		if len(t) == 0 {
			return nil, nil
		}
		if meta, ok := t[0].(map[string]any); ok && isMetadata(meta) {
			if len(t) < 2 || t[1] == nil {
				// World Bank reports "no rows" as [metadata, null].
				if _, failed := meta["message"]; failed {
					return nil, ErrSchemaMismatch
				}
				return nil, nil
			}
			rows, ok := t[1].([]any)
			if !ok {
				return nil, ErrSchemaMismatch
			}
			return rows, nil
		}
		return t, nil
	case map[string]any:
		switch data := t["data"].(type) {
		case []any:
			return data, nil
		case nil:
			return nil, nil
		}
		return nil, ErrSchemaMismatch
	}
	return nil, ErrSchemaMismatch
}

// isMetadata recognises the World Bank paging header (or its error envelope).
func isMetadata(m map[string]any) bool {
	for _, k := range []string{"page", "pages", "per_page", "total", "message"} {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

// resolveField reads the entity or indicator of a record. A record that names
// none inherits the requested code; one that names a different code is rejected.
func resolveField(rec map[string]any, keys []string, want string) (code, label string, ok bool) {
	var codes, labels []string
	for _, k := range keys {
		v, present := rec[k]
		if !present {
			continue
		}
		c, l, valid := unwrap(v)
		if !valid {
			continue
		}
		codes = append(codes, c)
		labels = append(labels, l)
	}
	if len(codes) == 0 {
		return want, "", true
	}
	if !matchesCode(want, append(codes, labels...)...) {
		return "", "", false
	}
	code = codes[0]
	if want != "" {
		code = want
	}
	label = labels[0]
	if label == code {
		label = ""
	}
	return code, label, true
}
