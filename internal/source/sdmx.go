package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/baxromumarov/econ-indicators/internal/httpx"
	"github.com/baxromumarov/econ-indicators/internal/indicator"
	"github.com/baxromumarov/econ-indicators/internal/urlutil"
)

const (
	SDMXName         = "sdmx"
	DefaultSDMX      = "http://dataservices.imf.org/REST/SDMX_JSON.svc"
	DefaultSDMXDB    = "IFS"
	DefaultSDMXFreq  = "A"
	areaCodeListID   = "CL_AREA"
	indicatorListID  = "CL_INDICATOR"
	englishLangTag   = "en"
	sdmxStructureKey = "DataStructure"
)

type sdmxText struct {
	Lang string `json:"@xml:lang"`
	Text string `json:"#text"`
}

type sdmxCode struct {
	Value       string              `json:"@value"`
	Description oneOrMany[sdmxText] `json:"Description"`
}

type sdmxCodeList struct {
	ID   string              `json:"@id"`
	Code oneOrMany[sdmxCode] `json:"Code"`
}

type sdmxStructure struct {
	Structure struct {
		CodeLists struct {
			CodeList oneOrMany[sdmxCodeList] `json:"CodeList"`
		} `json:"CodeLists"`
	} `json:"Structure"`
}

// SDMX is the IMF SDMX JSON service. Data comes from CompactData and
// reference lists from the database's DataStructure codelists.
type SDMX struct {
	base      string
	database  string
	frequency string
	fetcher   httpx.Fetcher
}

func NewSDMX(baseURL, database, frequency string, fetcher httpx.Fetcher) (*SDMX, error) {
	if baseURL == "" {
		baseURL = DefaultSDMX
	}
	base, err := urlutil.NormalizeBase(baseURL)
	if err != nil {
		return nil, err
	}
	if database == "" {
		database = DefaultSDMXDB
	}
	if frequency == "" {
		frequency = DefaultSDMXFreq
	}
	return &SDMX{base: base, database: database, frequency: frequency, fetcher: fetcher}, nil
}

func (s *SDMX) Name() string { return SDMXName }

func (s *SDMX) Entities(ctx context.Context) ([]indicator.Entity, error) {
	codes, err := s.codeList(ctx, areaCodeListID)
	if err != nil {
		return nil, err
	}
	out := make([]indicator.Entity, 0, len(codes))
	for _, c := range codes {
		out = append(out, indicator.Entity{Code: c.Value, Label: describe(c)})
	}
	return sortEntities(out), nil
}

func (s *SDMX) Indicators(ctx context.Context) ([]indicator.Indicator, error) {
	codes, err := s.codeList(ctx, indicatorListID)
	if err != nil {
		return nil, err
	}
	out := make([]indicator.Indicator, 0, len(codes))
	for _, c := range codes {
		out = append(out, indicator.Indicator{Code: c.Value, Label: describe(c)})
	}
	return sortIndicators(out), nil
}

func (s *SDMX) Fetch(ctx context.Context, req indicator.Request) (indicator.Table, error) {
	if req.EmptyRange() {
		return indicator.Table{}, nil
	}
	return fetchTable(ctx, s.fetcher, s.Name(), s.dataURL(req), req)
}

func (s *SDMX) dataURL(req indicator.Request) string {
	q := url.Values{}
	if req.From != 0 {
		q.Set("startPeriod", strconv.Itoa(req.From))
	}
	if req.To != 0 {
		q.Set("endPeriod", strconv.Itoa(req.To))
	}
	key := fmt.Sprintf("%s.%s.%s", s.frequency, req.Entity, req.Indicator)
	return urlutil.Build(s.base, q, "CompactData", s.database, key)
}

// codeList returns the codes of the first codelist whose id starts with prefix
// (CL_AREA_IFS, CL_INDICATOR_IFS, ...).
func (s *SDMX) codeList(ctx context.Context, prefix string) ([]sdmxCode, error) {
	var payload sdmxStructure
	if err := fetchJSON(ctx, s.fetcher, s.Name(), urlutil.Build(s.base, nil, sdmxStructureKey, s.database), &payload); err != nil {
		return nil, err
	}
	for _, cl := range payload.Structure.CodeLists.CodeList {
		if strings.HasPrefix(cl.ID, prefix) {
			out := make([]sdmxCode, 0, len(cl.Code))
			for _, c := range cl.Code {
				if c.Value != "" {
					out = append(out, c)
				}
			}
			return out, nil
		}
	}
	return nil, nil
}

// describe prefers the English description and falls back to the code.
func describe(c sdmxCode) string {
	label := ""
	for _, d := range c.Description {
		if d.Lang == englishLangTag || label == "" {
			label = d.Text
		}
		if d.Lang == englishLangTag {
			break
		}
	}
	label = cleanLabel(label)
	if label == "" {
		return c.Value
	}
	return label
}
