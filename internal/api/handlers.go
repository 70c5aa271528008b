package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/baxromumarov/econ-indicators/internal/core"
	"github.com/baxromumarov/econ-indicators/internal/export"
	"github.com/baxromumarov/econ-indicators/internal/indicator"
	"github.com/baxromumarov/econ-indicators/internal/observability"
	"github.com/baxromumarov/econ-indicators/internal/store"
)

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": s.svc.Sources(),
	})
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Entities(r.Context(), chi.URLParam(r, "source"), r.URL.Query().Get("q"))
	if err != nil {
		respondQueryError(w, err)
		return
	}
	if items == nil {
		items = []indicator.Entity{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

func (s *Server) handleListIndicators(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.Indicators(r.Context(), chi.URLParam(r, "source"), r.URL.Query().Get("q"))
	if err != nil {
		respondQueryError(w, err)
		return
	}
	if items == nil {
		items = []indicator.Indicator{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

func (s *Server) handleObservations(w http.ResponseWriter, r *http.Request) {
	res, ok := s.fetch(w, r)
	if !ok {
		return
	}
	obs := res.Table.Observations
	if obs == nil {
		obs = []indicator.Observation{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"source":       res.Source,
		"observations": obs,
		"pairs":        res.Pairs,
		"warnings":     nonNil(res.Warnings()),
	})
}

func (s *Server) handleObservationsCSV(w http.ResponseWriter, r *http.Request) {
	res, ok := s.fetch(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.csv"`, res.Source, time.Now().UTC().Format("20060102")))
	for _, warning := range res.Warnings() {
		w.Header().Add("X-Warning", warning)
	}
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, res.Table); err != nil {
		// Headers are already sent; the client sees a truncated body.
		slog.Error("csv write failed",
			"request_id", middleware.GetReqID(r.Context()),
			"source", res.Source,
			"rows", res.Table.Len(),
			"error", err)
	}
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	res, ok := s.fetch(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"source":   res.Source,
		"series":   nonNilSeries(export.BuildSeries(res.Table)),
		"warnings": nonNil(res.Warnings()),
	})
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r, 20)
	if s.snapshots == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"items":  []store.Snapshot{},
			"limit":  limit,
			"offset": offset,
			"total":  0,
		})
		return
	}

	snaps, total, err := s.snapshots.ListSnapshots(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch snapshots: "+err.Error())
		return
	}
	if snaps == nil {
		snaps = []store.Snapshot{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":  snaps,
		"limit":  limit,
		"offset": offset,
		"total":  total,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats":          observability.Snapshot(),
		"cache_entries":  s.svc.CacheLen(),
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handlePurgeCache(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.PurgeCache(r.URL.Query().Get("source"))
	if err != nil {
		respondQueryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"purged": n,
	})
}

// fetch parses the shared observation query and runs it. It writes the
// error response itself and reports whether the caller should continue.
func (s *Server) fetch(w http.ResponseWriter, r *http.Request) (core.Result, bool) {
	q, err := parseQuery(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return core.Result{}, false
	}
	res, err := s.svc.Fetch(r.Context(), q)
	if err != nil {
		respondQueryError(w, err)
		return core.Result{}, false
	}
	return res, true
}

func respondQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrUnknownSource):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, core.ErrEmptySelection), errors.Is(err, core.ErrTooManyPairs), errors.Is(err, core.ErrInvalidYearRange):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		respondError(w, http.StatusBadGateway, err.Error())
	}
}

// parseQuery reads source, entity, indicator, from and to. entity and
// indicator accept comma-separated lists and may repeat.
func parseQuery(r *http.Request) (core.Query, error) {
	v := r.URL.Query()
	q := core.Query{
		Source:     v.Get("source"),
		Entities:   splitList(v["entity"]),
		Indicators: splitList(v["indicator"]),
	}
	var err error
	if q.From, err = parseYear(v.Get("from")); err != nil {
		return core.Query{}, fmt.Errorf("invalid from: %w", err)
	}
	if q.To, err = parseYear(v.Get("to")); err != nil {
		return core.Query{}, fmt.Errorf("invalid to: %w", err)
	}
	if q.Source == "" {
		return core.Query{}, errors.New("source is required")
	}
	return q, nil
}

func parseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilSeries(s []export.Series) []export.Series {
	if s == nil {
		return []export.Series{}
	}
	return s
}

func parsePagination(r *http.Request, defaultLimit int) (int, int) {
	q := r.URL.Query()
	limit := defaultLimit
	offset := 0

	if v := q.Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}

	if v := q.Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
