package normalizer

import (
	"github.com/baxromumarov/econ-indicators/internal/indicator"
)

// seriesParser reads SDMX CompactData: {CompactData: {DataSet: {Series: ...}}}.
// Series and Obs are a single object when one item is returned and an array otherwise.
type seriesParser struct{}

func (seriesParser) Format() Format { return FormatSeries }

func (seriesParser) Parse(payload any, req indicator.Request) ([]indicator.Observation, error) {
	root, ok := payload.(map[string]any)
	if !ok {
		return nil, ErrSchemaMismatch
	}
	if compact, ok := root["CompactData"]; ok {
		root, ok = compact.(map[string]any)
		if !ok {
			return nil, ErrSchemaMismatch
		}
	}
	dataSet, ok := root["DataSet"].(map[string]any)
	if !ok {
		return nil, ErrSchemaMismatch
	}

	var out []indicator.Observation
	for _, series := range asList(dataSet["Series"]) {
		entity := stringOf(pick(series, "@REF_AREA", "REF_AREA"))
		ind := stringOf(pick(series, "@INDICATOR", "INDICATOR"))
		if entity != "" && !matchesCode(req.Entity, entity) {
			continue
		}
		if ind != "" && !matchesCode(req.Indicator, ind) {
			continue
		}
		if entity == "" {
			entity = req.Entity
		}
		if ind == "" {
			ind = req.Indicator
		}

		for _, o := range asList(series["Obs"]) {
			rawPeriod, ok := firstOf(o, "@TIME_PERIOD", "TIME_PERIOD", "period")
			if !ok {
				continue
			}
			year, ok := parseYear(rawPeriod)
			if !ok {
				continue
			}
			rawValue, _ := firstOf(o, "@OBS_VALUE", "OBS_VALUE", "value")
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
	return out, nil
}

func pick(m map[string]any, keys ...string) any {
	v, _ := firstOf(m, keys...)
	return v
}
