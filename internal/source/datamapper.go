package source

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/baxromumarov/econ-indicators/internal/httpx"
	"github.com/baxromumarov/econ-indicators/internal/indicator"
	"github.com/baxromumarov/econ-indicators/internal/normalizer"
	"github.com/baxromumarov/econ-indicators/internal/urlutil"
)

const (
	DataMapperName    = "datamapper"
	DefaultDataMapper = "https://www.imf.org/external/datamapper/api/v1"
)

type dataMapperCountries struct {
	Countries map[string]*struct {
		Label string `json:"label"`
	} `json:"countries"`
}

type dataMapperIndicators struct {
	Indicators map[string]*struct {
		Label       string `json:"label"`
		Description string `json:"description"`
		Unit        string `json:"unit"`
	} `json:"indicators"`
}

// DataMapper is the IMF DataMapper v1 API. Data responses use the
// {values: {indicator: {entity: {year: value}}}} shape.
type DataMapper struct {
	base    string
	fetcher httpx.Fetcher
}

func NewDataMapper(baseURL string, fetcher httpx.Fetcher) (*DataMapper, error) {
	if baseURL == "" {
		baseURL = DefaultDataMapper
	}
	base, err := urlutil.NormalizeBase(baseURL)
	if err != nil {
		return nil, err
	}
	return &DataMapper{base: base, fetcher: fetcher}, nil
}

func (d *DataMapper) Name() string { return DataMapperName }

func (d *DataMapper) Entities(ctx context.Context) ([]indicator.Entity, error) {
	var payload dataMapperCountries
	if err := fetchJSON(ctx, d.fetcher, d.Name(), urlutil.Build(d.base, nil, "countries"), &payload); err != nil {
		return nil, err
	}
	out := make([]indicator.Entity, 0, len(payload.Countries))
	for code, c := range payload.Countries {
		label := code
		if c != nil && c.Label != "" {
			label = cleanLabel(c.Label)
		}
		out = append(out, indicator.Entity{Code: code, Label: label})
	}
	return sortEntities(out), nil
}

func (d *DataMapper) Indicators(ctx context.Context) ([]indicator.Indicator, error) {
	var payload dataMapperIndicators
	if err := fetchJSON(ctx, d.fetcher, d.Name(), urlutil.Build(d.base, nil, "indicators"), &payload); err != nil {
		return nil, err
	}
	out := make([]indicator.Indicator, 0, len(payload.Indicators))
	for code, ind := range payload.Indicators {
		// The listing includes an empty-code placeholder entry.
		if code == "" {
			continue
		}
		item := indicator.Indicator{Code: code, Label: code}
		if ind != nil {
			if ind.Label != "" {
				item.Label = cleanLabel(ind.Label)
			}
			item.Description = cleanText(ind.Description)
			item.Unit = cleanLabel(ind.Unit)
		}
		out = append(out, item)
	}
	return sortIndicators(out), nil
}

func (d *DataMapper) Fetch(ctx context.Context, req indicator.Request) (indicator.Table, error) {
	if req.EmptyRange() {
		return indicator.Table{}, nil
	}
	tbl, err := fetchTable(ctx, d.fetcher, d.Name(), d.dataURL(req), req)
	if errors.Is(err, normalizer.ErrUnknownFormat) {
		// Pairs without data come back as {"api": {...}} with no "values" key.
		return indicator.Table{}, nil
	}
	return tbl, err
}

// maxPeriods bounds the periods list. Wider ranges fetch every year and
// rely on the normalizer's year filter.
const maxPeriods = 200

func (d *DataMapper) dataURL(req indicator.Request) string {
	var q url.Values
	if req.From != 0 && req.To != 0 && req.ValidYears() && req.To-req.From < maxPeriods {
		years := make([]string, 0, req.To-req.From+1)
		for y := req.From; y <= req.To; y++ {
			years = append(years, strconv.Itoa(y))
		}
		q = url.Values{"periods": {strings.Join(years, ",")}}
	}
	return urlutil.Build(d.base, q, req.Indicator, req.Entity)
}
