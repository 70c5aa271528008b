package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/baxromumarov/econ-indicators/internal/cache"
	"github.com/baxromumarov/econ-indicators/internal/indicator"
	"github.com/baxromumarov/econ-indicators/internal/observability"
	"github.com/baxromumarov/econ-indicators/internal/source"
)

const (
	DefaultConcurrency = 4
	MaxPairs           = 50
)

var (
	ErrUnknownSource  = errors.New("unknown source")
	ErrEmptySelection = errors.New("select at least one entity and one indicator")
	ErrTooManyPairs   = fmt.Errorf("selection exceeds %d entity/indicator pairs", MaxPairs)

	ErrInvalidYearRange = fmt.Errorf("years must be between %d and %d", indicator.MinYear, indicator.MaxYear)
)

// TableStore persists fetched tables so they can be served when upstream is down.
type TableStore interface {
	SaveTable(ctx context.Context, source string, tbl indicator.Table) (int, error)
	LoadTable(ctx context.Context, source string, req indicator.Request) (indicator.Table, error)
}

type Query struct {
	Source     string   `json:"source"`
	Entities   []string `json:"entities"`
	Indicators []string `json:"indicators"`
	From       int      `json:"from,omitempty"`
	To         int      `json:"to,omitempty"`

	// Fresh skips cached tables. The new result is still cached.
	Fresh bool `json:"-"`
}

// Pairs expands the query into one request per (entity, indicator),
// entities outermost so each entity's rows stay together.
func (q Query) Pairs() []indicator.Request {
	out := make([]indicator.Request, 0, len(q.Entities)*len(q.Indicators))
	for _, e := range q.Entities {
		for _, i := range q.Indicators {
			out = append(out, indicator.Request{Entity: e, Indicator: i, From: q.From, To: q.To})
		}
	}
	return out
}

type Service struct {
	registry    *source.Registry
	cache       *cache.Cache
	store       TableStore
	concurrency int
	logger      *slog.Logger

	refs       singleflight.Group
	mu         sync.RWMutex
	entities   map[string][]indicator.Entity
	indicators map[string][]indicator.Indicator
}

// NewService wires the registry and cache together. store may be nil, in
// which case nothing is persisted and there is no stale fallback.
func NewService(registry *source.Registry, c *cache.Cache, store TableStore, concurrency int, logger *slog.Logger) *Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if c == nil {
		c = cache.New(cache.DefaultSize, cache.DefaultTTL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:    registry,
		cache:       c,
		store:       store,
		concurrency: concurrency,
		logger:      logger,
		entities:    make(map[string][]indicator.Entity),
		indicators:  make(map[string][]indicator.Indicator),
	}
}

func (s *Service) Sources() []string {
	return s.registry.Names()
}

func (s *Service) source(name string) (source.Source, error) {
	src, ok := s.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	return src, nil
}

// Validate cleans q in place and checks it can be fetched.
func (s *Service) Validate(q *Query) (source.Source, error) {
	src, err := s.source(q.Source)
	if err != nil {
		return nil, err
	}
	q.Source = src.Name()
	q.Entities = cleanCodes(q.Entities)
	q.Indicators = cleanCodes(q.Indicators)
	if len(q.Entities) == 0 || len(q.Indicators) == 0 {
		return nil, ErrEmptySelection
	}
	if len(q.Entities)*len(q.Indicators) > MaxPairs {
		return nil, ErrTooManyPairs
	}
	if !(indicator.Request{From: q.From, To: q.To}).ValidYears() {
		return nil, fmt.Errorf("%w: got from=%d to=%d", ErrInvalidYearRange, q.From, q.To)
	}
	return src, nil
}

// Fetch retrieves every pair of q concurrently and concatenates the tables
// in pair order. Per-pair failures are reported in Result.Pairs; the error
// is reserved for invalid queries and cancellation.
func (s *Service) Fetch(ctx context.Context, q Query) (Result, error) {
	src, err := s.Validate(&q)
	if err != nil {
		return Result{}, err
	}

	pairs := q.Pairs()
	tables := make([]indicator.Table, len(pairs))
	results := make([]PairResult, len(pairs))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, req := range pairs {
		g.Go(func() error {
			tables[i], results[i] = s.fetchPair(ctx, src, req, q.Fresh)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	tbl := indicator.Concat(tables...)
	tbl = s.fillLabels(ctx, src, tbl)

	s.logger.Debug("fetch complete",
		"source", q.Source,
		"pairs", len(pairs),
		"rows", tbl.Len(),
	)
	return Result{Source: q.Source, Table: tbl, Pairs: results}, nil
}

func (s *Service) fetchPair(ctx context.Context, src source.Source, req indicator.Request, fresh bool) (indicator.Table, PairResult) {
	name := src.Name()
	pr := PairResult{Entity: req.Entity, Indicator: req.Indicator}
	key := cache.KeyFor(name, req)

	if !fresh {
		if entry, ok := s.cache.Get(key); ok {
			observability.IncCacheHit()
			pr.Status = statusOf(entry.Table)
			pr.Rows = entry.Table.Len()
			pr.Cached = true
			observability.IncOutcome(string(pr.Status))
			return entry.Table, pr
		}
		observability.IncCacheMiss()
	}

	observability.IncFetch(name)
	start := time.Now()
	tbl, err := src.Fetch(ctx, req)
	observability.ObserveFetchDuration(name, time.Since(start).Seconds())

	if err == nil {
		s.cache.Put(key, tbl)
		s.persist(ctx, name, tbl)
		pr.Status = statusOf(tbl)
		pr.Rows = tbl.Len()
		observability.AddObservations(tbl.Len())
		observability.IncOutcome(string(pr.Status))
		return tbl, pr
	}

	tbl = indicator.Table{}
	kind := observability.ClassifySourceError(err)
	observability.IncError(kind, name)
	pr.Error = err.Error()

	switch kind {
	case observability.ErrorNotFound:
		// The API does not know this pair; that is a gap, not an outage.
		s.cache.Put(key, indicator.Table{})
		pr.Status = StatusNoData
	case observability.ErrorParsing:
		pr.Status = StatusSchemaMismatch
		s.logger.Warn("unexpected payload",
			"source", name,
			"entity", req.Entity,
			"indicator", req.Indicator,
			"error", err,
		)
	default:
		pr.Status = StatusUpstreamError
		s.logger.Warn("upstream fetch failed",
			"source", name,
			"entity", req.Entity,
			"indicator", req.Indicator,
			"kind", kind,
			"error", err,
		)
		if stale, ok := s.loadStale(ctx, name, req); ok {
			tbl = stale
			pr.Status = StatusStale
			pr.Rows = stale.Len()
		}
	}

	observability.IncOutcome(string(pr.Status))
	return tbl, pr
}

func statusOf(tbl indicator.Table) Status {
	if tbl.IsEmpty() {
		return StatusNoData
	}
	return StatusOK
}

func (s *Service) persist(ctx context.Context, name string, tbl indicator.Table) {
	if s.store == nil || tbl.IsEmpty() {
		return
	}
	if _, err := s.store.SaveTable(ctx, name, tbl); err != nil {
		observability.IncError(observability.ErrorStore, name)
		s.logger.Warn("failed to persist table", "source", name, "rows", tbl.Len(), "error", err)
	}
}

func (s *Service) loadStale(ctx context.Context, name string, req indicator.Request) (indicator.Table, bool) {
	if s.store == nil {
		return indicator.Table{}, false
	}
	// The request context may already be the reason upstream failed.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	tbl, err := s.store.LoadTable(ctx, name, req)
	if err != nil {
		observability.IncError(observability.ErrorStore, name)
		s.logger.Warn("stale lookup failed", "source", name, "entity", req.Entity, "error", err)
		return indicator.Table{}, false
	}
	if tbl.IsEmpty() {
		return indicator.Table{}, false
	}
	return tbl, true
}

// fillLabels completes missing label columns from the source's reference
// lists, loading each list only when some row needs it.
func (s *Service) fillLabels(ctx context.Context, src source.Source, tbl indicator.Table) indicator.Table {
	if tbl.IsEmpty() {
		return tbl
	}
	var needEntity, needIndicator bool
	for _, o := range tbl.Observations {
		needEntity = needEntity || o.EntityLabel == ""
		needIndicator = needIndicator || o.IndicatorLabel == ""
	}

	entityLabels := map[string]string{}
	if needEntity {
		if list, err := s.loadEntities(ctx, src); err == nil {
			for _, e := range list {
				entityLabels[e.Code] = e.Label
			}
		} else {
			s.logger.Debug("entity labels unavailable", "source", src.Name(), "error", err)
		}
	}
	indicatorLabels := map[string]string{}
	if needIndicator {
		if list, err := s.loadIndicators(ctx, src); err == nil {
			for _, i := range list {
				indicatorLabels[i.Code] = i.Label
			}
		} else {
			s.logger.Debug("indicator labels unavailable", "source", src.Name(), "error", err)
		}
	}
	return tbl.WithLabels(entityLabels, indicatorLabels)
}

// Entities lists the source's entities whose code or label contains q.
func (s *Service) Entities(ctx context.Context, sourceName, q string) ([]indicator.Entity, error) {
	src, err := s.source(sourceName)
	if err != nil {
		return nil, err
	}
	list, err := s.loadEntities(ctx, src)
	if err != nil {
		return nil, err
	}
	return filterEntities(list, q), nil
}

// Indicators lists the source's indicators whose code, label or description contains q.
func (s *Service) Indicators(ctx context.Context, sourceName, q string) ([]indicator.Indicator, error) {
	src, err := s.source(sourceName)
	if err != nil {
		return nil, err
	}
	list, err := s.loadIndicators(ctx, src)
	if err != nil {
		return nil, err
	}
	return filterIndicators(list, q), nil
}

func (s *Service) loadEntities(ctx context.Context, src source.Source) ([]indicator.Entity, error) {
	name := src.Name()
	s.mu.RLock()
	list, ok := s.entities[name]
	s.mu.RUnlock()
	if ok {
		return list, nil
	}

	v, err, _ := s.refs.Do("entities/"+name, func() (any, error) {
		list, err := src.Entities(ctx)
		if err != nil {
			observability.IncError(observability.ClassifySourceError(err), name)
			return nil, fmt.Errorf("list %s entities: %w", name, err)
		}
		s.mu.Lock()
		s.entities[name] = list
		s.mu.Unlock()
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]indicator.Entity), nil
}

func (s *Service) loadIndicators(ctx context.Context, src source.Source) ([]indicator.Indicator, error) {
	name := src.Name()
	s.mu.RLock()
	list, ok := s.indicators[name]
	s.mu.RUnlock()
	if ok {
		return list, nil
	}

	v, err, _ := s.refs.Do("indicators/"+name, func() (any, error) {
		list, err := src.Indicators(ctx)
		if err != nil {
			observability.IncError(observability.ClassifySourceError(err), name)
			return nil, fmt.Errorf("list %s indicators: %w", name, err)
		}
		s.mu.Lock()
		s.indicators[name] = list
		s.mu.Unlock()
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]indicator.Indicator), nil
}

// PurgeCache drops cached tables and reference lists. With a source name
// only that source is affected. It returns how many tables were dropped.
func (s *Service) PurgeCache(sourceName string) (int, error) {
	if sourceName == "" {
		n := s.cache.Len()
		s.cache.Purge()
		s.mu.Lock()
		clear(s.entities)
		clear(s.indicators)
		s.mu.Unlock()
		return n, nil
	}

	src, err := s.source(sourceName)
	if err != nil {
		return 0, err
	}
	name := src.Name()
	n := s.cache.InvalidateSource(name)
	s.mu.Lock()
	delete(s.entities, name)
	delete(s.indicators, name)
	s.mu.Unlock()
	return n, nil
}

func (s *Service) CacheLen() int {
	return s.cache.Len()
}
