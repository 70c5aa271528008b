package normalizer

import (
	"sort"

	"github.com/baxromumarov/econ-indicators/internal/indicator"
)

// flatMapParser reads {values: {<indicator>: {<entity>: {<year>: <value>}}}}.
// An empty entity or indicator in the request selects every key at that level.
type flatMapParser struct{}

func (flatMapParser) Format() Format { return FormatFlatMap }

func (flatMapParser) Parse(payload any, req indicator.Request) ([]indicator.Observation, error) {
	root, ok := payload.(map[string]any)
	if !ok {
		return nil, ErrSchemaMismatch
	}
	values, ok := root["values"].(map[string]any)
	if !ok {
		return nil, ErrSchemaMismatch
	}

	var out []indicator.Observation
	for _, ind := range selectKeys(values, req.Indicator) {
		byEntity, ok := values[ind].(map[string]any)
		if !ok {
			continue
		}
		for _, entity := range selectKeys(byEntity, req.Entity) {
			byYear, ok := byEntity[entity].(map[string]any)
			if !ok {
				continue
			}
			for rawYear, rawValue := range byYear {
				year, ok := parseYear(rawYear)
				if !ok {
					continue
				}
				v, ok := parseValue(rawValue)
				if !ok {
					continue
				}
				out = append(out, indicator.Observation{
					Entity:    entity,
					Indicator: ind,
					Year:      year,
					Value:     indicator.Float(v),
				})
			}
		}
	}
	return out, nil
}

// selectKeys returns the single wanted key if present, or all keys sorted when want is empty.
func selectKeys(m map[string]any, want string) []string {
	if want != "" {
		if _, ok := m[want]; ok {
			return []string{want}
		}
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
