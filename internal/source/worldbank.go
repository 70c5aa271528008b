package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/baxromumarov/econ-indicators/internal/httpx"
	"github.com/baxromumarov/econ-indicators/internal/indicator"
	"github.com/baxromumarov/econ-indicators/internal/normalizer"
	"github.com/baxromumarov/econ-indicators/internal/urlutil"
)

const (
	WorldBankName    = "worldbank"
	DefaultWorldBank = "https://api.worldbank.org/v2"

	defaultWorldBankPageSize = 1000
	maxWorldBankPages        = 50
)

// World Bank responses are [metadata, rows]; the first element is paging info.
type worldBankMeta struct {
	Page  json.Number `json:"page"`
	Pages json.Number `json:"pages"`
}

type worldBankCountry struct {
	ID       string `json:"id"`
	ISO2Code string `json:"iso2Code"`
	Name     string `json:"name"`
	Region   struct {
		ID    string `json:"id"`
		Value string `json:"value"`
	} `json:"region"`
}

type worldBankIndicator struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Unit       string `json:"unit"`
	SourceNote string `json:"sourceNote"`
}

type WorldBank struct {
	base     string
	fetcher  httpx.Fetcher
	pageSize int
}

func NewWorldBank(baseURL string, pageSize int, fetcher httpx.Fetcher) (*WorldBank, error) {
	if baseURL == "" {
		baseURL = DefaultWorldBank
	}
	base, err := urlutil.NormalizeBase(baseURL)
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = defaultWorldBankPageSize
	}
	return &WorldBank{base: base, fetcher: fetcher, pageSize: pageSize}, nil
}

func (w *WorldBank) Name() string { return WorldBankName }

func (w *WorldBank) Entities(ctx context.Context) ([]indicator.Entity, error) {
	var out []indicator.Entity
	err := w.eachPage(ctx, "country", func(raw json.RawMessage) error {
		var rows []worldBankCountry
		if err := json.Unmarshal(raw, &rows); err != nil {
			return err
		}
		for _, c := range rows {
			if c.ID == "" {
				continue
			}
			label := cleanLabel(c.Name)
			if label == "" {
				label = c.ID
			}
			out = append(out, indicator.Entity{Code: c.ID, Label: label})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sortEntities(out), nil
}

func (w *WorldBank) Indicators(ctx context.Context) ([]indicator.Indicator, error) {
	var out []indicator.Indicator
	err := w.eachPage(ctx, "indicator", func(raw json.RawMessage) error {
		var rows []worldBankIndicator
		if err := json.Unmarshal(raw, &rows); err != nil {
			return err
		}
		for _, ind := range rows {
			if ind.ID == "" {
				continue
			}
			label := cleanLabel(ind.Name)
			if label == "" {
				label = ind.ID
			}
			out = append(out, indicator.Indicator{
				Code:        ind.ID,
				Label:       label,
				Description: cleanText(ind.SourceNote),
				Unit:        cleanLabel(ind.Unit),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sortIndicators(out), nil
}

// Fetch walks every result page and concatenates the normalized pages.
func (w *WorldBank) Fetch(ctx context.Context, req indicator.Request) (indicator.Table, error) {
	if req.EmptyRange() {
		return indicator.Table{}, nil
	}
	var tables []indicator.Table
	for page := 1; page <= maxWorldBankPages; page++ {
		body, _, err := w.fetcher.FetchBytes(ctx, w.dataURL(req, page))
		if err != nil {
			return indicator.Table{}, fmt.Errorf("%s fetch failed: %w", w.Name(), err)
		}
		tbl, err := normalizer.Parse(body, req)
		if err != nil {
			return indicator.Table{}, fmt.Errorf("%s decode failed: %w", w.Name(), err)
		}
		tables = append(tables, tbl)
		if page >= pageCount(body) {
			break
		}
	}
	return indicator.Concat(tables...).Normalize(), nil
}

func (w *WorldBank) dataURL(req indicator.Request, page int) string {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("per_page", strconv.Itoa(w.pageSize))
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}
	if req.From != 0 && req.To != 0 {
		q.Set("date", fmt.Sprintf("%d:%d", req.From, req.To))
	}
	return urlutil.Build(w.base, q, "country", req.Entity, "indicator", req.Indicator)
}

func (w *WorldBank) eachPage(ctx context.Context, resource string, fn func(json.RawMessage) error) error {
	for page := 1; page <= maxWorldBankPages; page++ {
		q := url.Values{}
		q.Set("format", "json")
		q.Set("per_page", strconv.Itoa(w.pageSize))
		q.Set("page", strconv.Itoa(page))

		var envelope []json.RawMessage
		if err := fetchJSON(ctx, w.fetcher, w.Name(), urlutil.Build(w.base, q, resource), &envelope); err != nil {
			return err
		}
		if len(envelope) < 2 {
			return fmt.Errorf("%s decode failed: %w", w.Name(), normalizer.ErrSchemaMismatch)
		}
		if err := fn(envelope[1]); err != nil {
			return fmt.Errorf("%s decode failed: %w: %v", w.Name(), normalizer.ErrSchemaMismatch, err)
		}
		var meta worldBankMeta
		if err := json.Unmarshal(envelope[0], &meta); err != nil {
			return nil
		}
		pages, _ := meta.Pages.Int64()
		if int64(page) >= pages {
			return nil
		}
	}
	return nil
}

// pageCount reads the "pages" field of a World Bank envelope; 1 if absent.
func pageCount(body []byte) int {
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope) == 0 {
		return 1
	}
	var meta worldBankMeta
	if err := json.Unmarshal(envelope[0], &meta); err != nil {
		return 1
	}
	pages, err := meta.Pages.Int64()
	if err != nil || pages < 1 {
		return 1
	}
	return int(pages)
}
