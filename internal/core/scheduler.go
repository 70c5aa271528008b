package core

import (
	"context"
	"log/slog"
	"time"
)

type RetentionStore interface {
	DeleteOldObservations(ctx context.Context, olderThan time.Duration) (int64, error)
}

type SchedulerService struct {
	store     RetentionStore
	retention time.Duration
	logger    *slog.Logger
}

func NewSchedulerService(store RetentionStore, retention time.Duration, logger *slog.Logger) *SchedulerService {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SchedulerService{store: store, retention: retention, logger: logger}
}

func (s *SchedulerService) Start(ctx context.Context) {
	go s.runRetentionPolicy(ctx)
}

// runRetentionPolicy deletes persisted observations older than the retention window.
func (s *SchedulerService) runRetentionPolicy(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	s.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup(ctx)
		}
	}
}

func (s *SchedulerService) cleanup(ctx context.Context) int64 {
	count, err := s.store.DeleteOldObservations(ctx, s.retention)
	if err != nil {
		s.logger.Error("retention cleanup failed", "error", err)
		return 0
	}
	s.logger.Info("retention cleanup", "deleted", count, "retention", s.retention.String())
	return count
}
