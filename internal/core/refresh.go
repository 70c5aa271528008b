package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/baxromumarov/econ-indicators/internal/store"
)

// SnapshotStore records the outcome of each scheduled refresh.
type SnapshotStore interface {
	RecordSnapshot(ctx context.Context, snap store.Snapshot) error
}

// RefreshService keeps a watchlist of pairs warm and persisted so the
// service can fall back to them when upstream is unavailable.
type RefreshService struct {
	svc       *Service
	snapshots SnapshotStore
	watch     Query
	interval  time.Duration
	logger    *slog.Logger
}

func NewRefreshService(svc *Service, snapshots SnapshotStore, watch Query, interval time.Duration, logger *slog.Logger) *RefreshService {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshService{
		svc:       svc,
		snapshots: snapshots,
		watch:     watch,
		interval:  interval,
		logger:    logger,
	}
}

func (r *RefreshService) Start(ctx context.Context) {
	go r.refreshLoop(ctx)
}

func (r *RefreshService) refreshLoop(ctx context.Context) {
	r.RefreshOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RefreshOnce(ctx)
		}
	}
}

// RefreshOnce fetches every watchlist pair past the cache and records one
// snapshot per pair. The service persists the fresh tables itself.
func (r *RefreshService) RefreshOnce(ctx context.Context) []store.Snapshot {
	q := r.watch
	q.Fresh = true

	res, err := r.svc.Fetch(ctx, q)
	if err != nil {
		r.logger.Error("refresh failed", "source", q.Source, "error", err)
		return nil
	}

	now := time.Now()
	snaps := make([]store.Snapshot, 0, len(res.Pairs))
	for _, p := range res.Pairs {
		snap := store.Snapshot{
			ID:        uuid.NewString(),
			Source:    res.Source,
			Entity:    p.Entity,
			Indicator: p.Indicator,
			From:      q.From,
			To:        q.To,
			Status:    string(p.Status),
			Rows:      p.Rows,
			Error:     p.Error,
			CreatedAt: now,
		}
		if r.snapshots != nil {
			if err := r.snapshots.RecordSnapshot(ctx, snap); err != nil {
				r.logger.Warn("failed to record snapshot", "id", snap.ID, "error", err)
			}
		}
		snaps = append(snaps, snap)
	}

	r.logger.Info("refresh complete",
		"source", res.Source,
		"pairs", len(res.Pairs),
		"rows", res.Table.Len(),
		"failed", res.Count(StatusUpstreamError)+res.Count(StatusSchemaMismatch),
	)
	return snaps
}
