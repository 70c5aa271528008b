package observability

import (
	"sync"
	"sync/atomic"
)

type StatsSnapshot struct {
	Fetches           uint64             `json:"fetches"`
	ObservationsTotal uint64             `json:"observations_total"`
	CacheHits         uint64             `json:"cache_hits"`
	CacheMisses       uint64             `json:"cache_misses"`
	ErrorsTotal       uint64             `json:"errors_total"`
	FetchSecondsAvg   float64            `json:"fetch_seconds_avg"`
	FetchesBySource   map[string]uint64  `json:"fetches_by_source,omitempty"`
	SecondsBySource   map[string]float64 `json:"fetch_seconds_avg_by_source,omitempty"`
	Outcomes          map[string]uint64  `json:"outcomes,omitempty"`
	ErrorsByType      map[string]uint64  `json:"errors_by_type,omitempty"`
	ErrorsBySource    map[string]uint64  `json:"errors_by_source,omitempty"`
}

var (
	fetches      uint64
	observations uint64
	cacheHits    uint64
	cacheMisses  uint64
	errorsTotal  uint64

	fetchCount uint64
	fetchNanos uint64

	statsMu         sync.Mutex
	fetchesBySource = map[string]uint64{}
	timedBySource   = map[string]uint64{}
	secondsBySource = map[string]float64{}
	outcomes        = map[string]uint64{}
	errorsByType    = map[string]uint64{}
	errorsBySource  = map[string]uint64{}
)

func IncFetch(source string) {
	atomic.AddUint64(&fetches, 1)
	statsMu.Lock()
	fetchesBySource[sourceKey(source)]++
	statsMu.Unlock()
}

func AddObservations(n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(&observations, uint64(n))
}

func IncCacheHit() {
	atomic.AddUint64(&cacheHits, 1)
}

func IncCacheMiss() {
	atomic.AddUint64(&cacheMisses, 1)
}

// IncOutcome counts a per-pair fetch status (ok, no_data, upstream_error, ...).
func IncOutcome(status string) {
	if status == "" {
		status = "unknown"
	}
	statsMu.Lock()
	outcomes[status]++
	statsMu.Unlock()
}

func ObserveFetchDuration(source string, seconds float64) {
	if seconds <= 0 {
		return
	}
	atomic.AddUint64(&fetchCount, 1)
	atomic.AddUint64(&fetchNanos, uint64(seconds*1e9))
	key := sourceKey(source)
	statsMu.Lock()
	timedBySource[key]++
	secondsBySource[key] += seconds
	statsMu.Unlock()
}

func IncError(errType, source string) {
	if errType == "" {
		errType = "unknown"
	}
	atomic.AddUint64(&errorsTotal, 1)
	statsMu.Lock()
	errorsByType[errType]++
	errorsBySource[sourceKey(source)]++
	statsMu.Unlock()
}

func Snapshot() StatsSnapshot {
	statsMu.Lock()
	outcomesCopy := copyMap(outcomes)
	errorsTypeCopy := copyMap(errorsByType)
	errorsSourceCopy := copyMap(errorsBySource)
	fetchesSourceCopy := copyMap(fetchesBySource)
	avgBySource := make(map[string]float64, len(timedBySource))
	for k, n := range timedBySource {
		avgBySource[k] = secondsBySource[k] / float64(n)
	}
	statsMu.Unlock()

	count := atomic.LoadUint64(&fetchCount)
	avg := 0.0
	if count > 0 {
		avg = float64(atomic.LoadUint64(&fetchNanos)) / float64(count) / 1e9
	}

	return StatsSnapshot{
		Fetches:           atomic.LoadUint64(&fetches),
		ObservationsTotal: atomic.LoadUint64(&observations),
		CacheHits:         atomic.LoadUint64(&cacheHits),
		CacheMisses:       atomic.LoadUint64(&cacheMisses),
		ErrorsTotal:       atomic.LoadUint64(&errorsTotal),
		FetchSecondsAvg:   avg,
		FetchesBySource:   fetchesSourceCopy,
		SecondsBySource:   avgBySource,
		Outcomes:          outcomesCopy,
		ErrorsByType:      errorsTypeCopy,
		ErrorsBySource:    errorsSourceCopy,
	}
}

// Reset zeroes every counter. Used by tests.
func Reset() {
	for _, p := range []*uint64{&fetches, &observations, &cacheHits, &cacheMisses, &errorsTotal, &fetchCount, &fetchNanos} {
		atomic.StoreUint64(p, 0)
	}
	statsMu.Lock()
	fetchesBySource = map[string]uint64{}
	timedBySource = map[string]uint64{}
	secondsBySource = map[string]float64{}
	outcomes = map[string]uint64{}
	errorsByType = map[string]uint64{}
	errorsBySource = map[string]uint64{}
	statsMu.Unlock()
}

func sourceKey(source string) string {
	if source == "" {
		return "unknown"
	}
	return source
}

func copyMap(src map[string]uint64) map[string]uint64 {
	if len(src) == 0 {
		return map[string]uint64{}
	}
	out := make(map[string]uint64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
