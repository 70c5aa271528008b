package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/econ-indicators/internal/cache"
	"github.com/baxromumarov/econ-indicators/internal/core"
	"github.com/baxromumarov/econ-indicators/internal/export"
	"github.com/baxromumarov/econ-indicators/internal/httpx"
	"github.com/baxromumarov/econ-indicators/internal/indicator"
	"github.com/baxromumarov/econ-indicators/internal/source"
	"github.com/baxromumarov/econ-indicators/internal/store"
)

type fakeSource struct{}

func (fakeSource) Name() string { return "fake" }

func (fakeSource) Entities(context.Context) ([]indicator.Entity, error) {
	return []indicator.Entity{{Code: "USA", Label: "United States"}, {Code: "FRA", Label: "France"}}, nil
}

func (fakeSource) Indicators(context.Context) ([]indicator.Indicator, error) {
	return []indicator.Indicator{{Code: "NGDP_RPCH", Label: "Real GDP growth"}}, nil
}

func (fakeSource) Fetch(_ context.Context, req indicator.Request) (indicator.Table, error) {
	if req.Entity == "XXX" {
		return indicator.Table{}, &httpx.FetchError{Status: http.StatusBadGateway, Err: errors.New("status 502")}
	}
	var obs []indicator.Observation
	for y := 2019; y <= 2021; y++ {
		if req.InRange(y) {
			obs = append(obs, indicator.Observation{Entity: req.Entity, Indicator: req.Indicator, Year: y, Value: indicator.Float(float64(y - 2000))})
		}
	}
	return indicator.NewTable(obs...), nil
}

type fakeSnapshots struct{}

func (fakeSnapshots) ListSnapshots(_ context.Context, limit, offset int) ([]store.Snapshot, int, error) {
	return []store.Snapshot{{ID: "snap-1", Source: "fake", Status: "ok", CreatedAt: time.Unix(0, 0)}}, 1, nil
}

func newTestServer() *Server {
	svc := core.NewService(source.NewRegistry(fakeSource{}), cache.New(16, time.Hour), nil, 2, nil)
	return NewServer(svc, fakeSnapshots{})
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestListSourcesAndReferences(t *testing.T) {
	s := newTestServer()

	rec := do(t, s, http.MethodGet, "/sources")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"fake"}, decode(t, rec)["items"])

	rec = do(t, s, http.MethodGet, "/sources/fake/entities?q=fran")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(1), body["total"])

	rec = do(t, s, http.MethodGet, "/sources/fake/indicators")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["total"])

	rec = do(t, s, http.MethodGet, "/sources/nope/entities")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestObservations(t *testing.T) {
	s := newTestServer()

	rec := do(t, s, http.MethodGet, "/observations?source=fake&entity=USA,FRA&indicator=NGDP_RPCH&from=2020&to=2025")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Observations []indicator.Observation `json:"observations"`
		Pairs        []core.PairResult       `json:"pairs"`
		Warnings     []string                `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Observations, 4)
	assert.Equal(t, "USA", body.Observations[0].Entity)
	assert.Equal(t, "United States", body.Observations[0].EntityLabel)
	assert.Equal(t, 2020, body.Observations[0].Year)
	assert.Equal(t, "FRA", body.Observations[2].Entity)
	require.Len(t, body.Pairs, 2)
	assert.Empty(t, body.Warnings)
}

func TestObservations_Warnings(t *testing.T) {
	s := newTestServer()

	rec := do(t, s, http.MethodGet, "/observations?source=fake&entity=USA&indicator=NGDP_RPCH&from=1990&to=1995")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{core.MsgNoData}, decode(t, rec)["warnings"])

	rec = do(t, s, http.MethodGet, "/observations?source=fake&entity=XXX&indicator=NGDP_RPCH")
	require.Equal(t, http.StatusOK, rec.Code)
	warnings := decode(t, rec)["warnings"].([]any)
	require.Len(t, warnings, 1)
	assert.True(t, strings.HasPrefix(warnings[0].(string), core.MsgUpstream))
}

func TestObservations_BadRequests(t *testing.T) {
	s := newTestServer()

	tests := []struct {
		target string
		code   int
	}{
		{"/observations?entity=USA&indicator=X", http.StatusBadRequest},
		{"/observations?source=fake&entity=USA&indicator=X&from=20x0", http.StatusBadRequest},
		{"/observations?source=fake&indicator=X", http.StatusBadRequest},
		{"/observations?source=other&entity=USA&indicator=X", http.StatusNotFound},
		{"/observations?source=fake&entity=USA&indicator=X&from=-1&to=9223372036854775807", http.StatusBadRequest},
		{"/observations?source=fake&entity=USA&indicator=X&from=1&to=100000000", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := do(t, s, http.MethodGet, tt.target)
		assert.Equal(t, tt.code, rec.Code, tt.target)
		assert.NotEmpty(t, decode(t, rec)["error"], tt.target)
	}
}

func TestObservations_DataMapperYearBounds(t *testing.T) {
	var requests []string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/NGDP_RPCH/") {
			http.NotFound(w, r)
			return
		}
		requests = append(requests, r.URL.RequestURI())
		w.Write([]byte(`{"values": {"NGDP_RPCH": {"USA": {"2020": -3.4, "2021": 5.7}}}}`))
	}))
	defer upstream.Close()

	fetcher := httpx.NewPoliteClient(httpx.Options{Timeout: 5 * time.Second, Every: time.Millisecond, Burst: 10})
	dm, err := source.NewDataMapper(upstream.URL, fetcher)
	require.NoError(t, err)
	s := NewServer(core.NewService(source.NewRegistry(dm), cache.New(16, time.Hour), nil, 2, nil), fakeSnapshots{})

	rec := do(t, s, http.MethodGet, "/observations?source=datamapper&entity=USA&indicator=NGDP_RPCH&from=-1&to=9223372036854775807")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, requests, "invalid years never reach upstream")

	rec = do(t, s, http.MethodGet, "/observations?source=datamapper&entity=USA&indicator=NGDP_RPCH&from=1&to=9999")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, requests, 1)
	assert.NotContains(t, requests[0], "periods", "wide ranges skip the periods list")
	assert.Len(t, decode(t, rec)["observations"], 2)
}

func TestObservationsCSV(t *testing.T) {
	rec := do(t, newTestServer(), http.MethodGet, "/observations.csv?source=fake&entity=USA&indicator=NGDP_RPCH")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")

	tbl, err := export.ReadCSV(rec.Body)
	require.NoError(t, err)
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, 2019, tbl.Observations[0].Year)
}

type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestObservationsCSV_WriteFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	defer slog.SetDefault(prev)

	rec := brokenWriter{httptest.NewRecorder()}
	req := httptest.NewRequest(http.MethodGet, "/observations.csv?source=fake&entity=USA&indicator=NGDP_RPCH", nil)
	newTestServer().Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), "csv write failed")
	assert.Contains(t, logs.String(), "connection reset by peer")
}

func TestSeries(t *testing.T) {
	rec := do(t, newTestServer(), http.MethodGet, "/series?source=fake&entity=USA&entity=FRA&indicator=NGDP_RPCH")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Series []export.Series `json:"series"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Series, 2)
	assert.Equal(t, "United States", body.Series[0].Label)
	assert.Equal(t, "France", body.Series[1].Label)
	assert.Len(t, body.Series[1].Points, 3)
}

func TestSnapshotsStatsAndCache(t *testing.T) {
	s := newTestServer()

	rec := do(t, s, http.MethodGet, "/snapshots?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, float64(5), body["limit"])
	assert.Equal(t, float64(1), body["total"])

	do(t, s, http.MethodGet, "/observations?source=fake&entity=USA&indicator=NGDP_RPCH")
	rec = do(t, s, http.MethodGet, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["cache_entries"])

	rec = do(t, s, http.MethodDelete, "/cache")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["purged"])

	rec = do(t, s, http.MethodDelete, "/cache?source=missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSnapshots_NoStore(t *testing.T) {
	svc := core.NewService(source.NewRegistry(fakeSource{}), nil, nil, 1, nil)
	rec := do(t, NewServer(svc, nil), http.MethodGet, "/snapshots")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["items"])
}

func TestParseQuery(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/observations?source=imf&entity=USA,%20FRA&entity=DEU&indicator=A,,B&from=2000", nil)
	q, err := parseQuery(r)
	require.NoError(t, err)
	assert.Equal(t, []string{"USA", "FRA", "DEU"}, q.Entities)
	assert.Equal(t, []string{"A", "B"}, q.Indicators)
	assert.Equal(t, 2000, q.From)
	assert.Equal(t, 0, q.To)
}
