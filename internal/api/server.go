package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/baxromumarov/econ-indicators/internal/core"
	"github.com/baxromumarov/econ-indicators/internal/store"
)

// SnapshotLister is the read side of the snapshot store.
type SnapshotLister interface {
	ListSnapshots(ctx context.Context, limit, offset int) ([]store.Snapshot, int, error)
}

type Server struct {
	router    *chi.Mux
	svc       *core.Service
	snapshots SnapshotLister
	started   time.Time
}

// NewServer builds the HTTP API. snapshots may be nil when nothing is persisted.
func NewServer(svc *core.Service, snapshots SnapshotLister) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		svc:       svc,
		snapshots: snapshots,
		started:   time.Now(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/stats", s.handleStats)
	s.router.Delete("/cache", s.handlePurgeCache)

	s.router.Route("/sources", func(r chi.Router) {
		r.Get("/", s.handleListSources)
		r.Get("/{source}/entities", s.handleListEntities)
		r.Get("/{source}/indicators", s.handleListIndicators)
	})

	s.router.Get("/observations", s.handleObservations)
	s.router.Get("/observations.csv", s.handleObservationsCSV)
	s.router.Get("/series", s.handleSeries)
	s.router.Get("/snapshots", s.handleListSnapshots)
}

func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
