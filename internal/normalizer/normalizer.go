// Package normalizer turns raw statistics API payloads into indicator tables.
//
// Three upstream shapes are understood: the IMF DataMapper "values" map, record
// arrays (DataMapper "data", World Bank), and SDMX CompactData series. The
// shape is detected once per payload and handed to a dedicated Parser.
package normalizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/baxromumarov/econ-indicators/internal/indicator"
)

var (
	ErrEmptyPayload     = errors.New("empty payload")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrUnknownFormat    = errors.New("unrecognized payload format")
	ErrSchemaMismatch   = errors.New("payload does not match expected schema")
)

type Format int

const (
	FormatUnknown Format = iota
	FormatFlatMap
	FormatRecordArray
	FormatSeries
)

func (f Format) String() string {
	switch f {
	case FormatFlatMap:
		return "flat_map"
	case FormatRecordArray:
		return "record_array"
	case FormatSeries:
		return "series"
	default:
		return "unknown"
	}
}

// Parser extracts observations for one request from a decoded payload.
// Implementations do not need to sort, dedupe or range-filter.
type Parser interface {
	Format() Format
	Parse(payload any, req indicator.Request) ([]indicator.Observation, error)
}

var parsers = map[Format]Parser{
	FormatFlatMap:     flatMapParser{},
	FormatRecordArray: recordParser{},
	FormatSeries:      seriesParser{},
}

// Decode parses JSON keeping numbers as json.Number so integer years survive intact.
func Decode(raw []byte) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload == nil {
		return nil, ErrEmptyPayload
	}
	return payload, nil
}

// Detect classifies a decoded payload.
func Detect(payload any) Format {
	switch t := payload.(type) {
	case []any:
		return FormatRecordArray
	case map[string]any:
		if _, ok := t["values"]; ok {
			return FormatFlatMap
		}
		if _, ok := t["CompactData"]; ok {
			return FormatSeries
		}
		if _, ok := t["DataSet"]; ok {
			return FormatSeries
		}
		if _, ok := t["data"]; ok {
			return FormatRecordArray
		}
	}
	return FormatUnknown
}

// Parse decodes raw, detects its format and returns the normalized table for req.
// The error tells callers why a table is empty; Normalize hides it.
func Parse(raw []byte, req indicator.Request) (indicator.Table, error) {
	payload, err := Decode(raw)
	if err != nil {
		return indicator.Table{}, err
	}
	return ParseValue(payload, req)
}

// ParseValue is Parse for an already decoded payload.
func ParseValue(payload any, req indicator.Request) (indicator.Table, error) {
	format := Detect(payload)
	p, ok := parsers[format]
	if !ok {
		return indicator.Table{}, ErrUnknownFormat
	}
	if req.EmptyRange() {
		return indicator.Table{}, nil
	}
	obs, err := p.Parse(payload, req)
	if err != nil {
		return indicator.Table{}, fmt.Errorf("%s: %w", format, err)
	}
	return indicator.NewTable(obs...).FilterYears(req.From, req.To).Normalize(), nil
}

// Normalize never fails: empty, malformed and unrecognized payloads all yield
// an empty table.
func Normalize(raw []byte, req indicator.Request) indicator.Table {
	tbl, err := Parse(raw, req)
	if err != nil {
		return indicator.Table{}
	}
	return tbl
}
