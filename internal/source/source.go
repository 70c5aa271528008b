// Package source implements clients for the upstream statistics APIs.
// Each client builds URLs, fetches through an httpx.Fetcher and hands
// the payload to the normalizer.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/baxromumarov/econ-indicators/internal/httpx"
	"github.com/baxromumarov/econ-indicators/internal/indicator"
	"github.com/baxromumarov/econ-indicators/internal/normalizer"
)

type Source interface {
	Name() string
	Entities(ctx context.Context) ([]indicator.Entity, error)
	Indicators(ctx context.Context) ([]indicator.Indicator, error)
	Fetch(ctx context.Context, req indicator.Request) (indicator.Table, error)
}

type Registry struct {
	sources map[string]Source
	order   []string
}

func NewRegistry(srcs ...Source) *Registry {
	r := &Registry{sources: make(map[string]Source, len(srcs))}
	for _, s := range srcs {
		r.Register(s)
	}
	return r
}

// Register adds s, replacing any source with the same name.
func (r *Registry) Register(s Source) {
	name := s.Name()
	if _, ok := r.sources[name]; !ok {
		r.order = append(r.order, name)
	}
	r.sources[name] = s
}

func (r *Registry) Get(name string) (Source, bool) {
	s, ok := r.sources[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// Names returns registered source names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// fetchTable retrieves rawURL and normalizes the body for req. Transport
// failures keep their *httpx.FetchError; payload problems wrap normalizer errors.
func fetchTable(ctx context.Context, f httpx.Fetcher, name, rawURL string, req indicator.Request) (indicator.Table, error) {
	body, _, err := f.FetchBytes(ctx, rawURL)
	if err != nil {
		return indicator.Table{}, fmt.Errorf("%s fetch failed: %w", name, err)
	}
	tbl, err := normalizer.Parse(body, req)
	if err != nil {
		return indicator.Table{}, fmt.Errorf("%s decode failed: %w", name, err)
	}
	return tbl, nil
}

func fetchJSON(ctx context.Context, f httpx.Fetcher, name, rawURL string, dst any) error {
	body, _, err := f.FetchBytes(ctx, rawURL)
	if err != nil {
		return fmt.Errorf("%s fetch failed: %w", name, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%s decode failed: %w", name, normalizer.ErrEmptyPayload)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%s decode failed: %w: %v", name, normalizer.ErrSchemaMismatch, err)
	}
	return nil
}

// cleanLabel trims, collapses whitespace and NFC-normalizes upstream labels.
func cleanLabel(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

func sortEntities(es []indicator.Entity) []indicator.Entity {
	sort.Slice(es, func(i, j int) bool { return es[i].Code < es[j].Code })
	return es
}

func sortIndicators(is []indicator.Indicator) []indicator.Indicator {
	sort.Slice(is, func(i, j int) bool { return is[i].Code < is[j].Code })
	return is
}

// oneOrMany decodes a JSON node that is either a single object or an array of them.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*o = nil
		return nil
	}
	if b[0] == '[' {
		var many []T
		if err := json.Unmarshal(b, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*o = oneOrMany[T]{one}
	return nil
}
