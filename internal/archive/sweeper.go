package archive

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Sweeper drives Service.ArchiveBatch and Service.PurgeExpired on two
// independent cron schedules, grounded on
// internal/webhook/cleanup_scheduler.go's CleanupScheduler, the same
// cron.Cron + mutex + WaitGroup pattern internal/approval/sweeper.go
// already reuses for a single job.
type Sweeper struct {
	svc               *Service
	logger            *slog.Logger
	archiveSchedule   string
	retentionSchedule string
	cron              *cron.Cron

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewSweeper builds a sweeper. Empty schedules default to every 5
// minutes for archival and daily for retention purge, matching §4.9's
// "every N minutes" / daily-cadence retention sweep.
func NewSweeper(svc *Service, logger *slog.Logger, archiveSchedule, retentionSchedule string) *Sweeper {
	if archiveSchedule == "" {
		archiveSchedule = "@every 5m"
	}
	if retentionSchedule == "" {
		retentionSchedule = "@every 24h"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{svc: svc, logger: logger, archiveSchedule: archiveSchedule, retentionSchedule: retentionSchedule}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.archiveSchedule, func() { s.runArchiveBatch(ctx) }); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.retentionSchedule, func() { s.runRetentionPurge(ctx) }); err != nil {
		return err
	}

	s.cron.Start()
	s.running = true
	return nil
}

func (s *Sweeper) runArchiveBatch(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()
	if _, err := s.svc.ArchiveBatch(ctx); err != nil {
		s.logger.Error("archive batch sweep failed", "error", err)
	}
}

func (s *Sweeper) runRetentionPurge(ctx context.Context) {
	s.wg.Add(1)
	defer s.wg.Done()
	if _, err := s.svc.PurgeExpired(ctx); err != nil {
		s.logger.Error("retention purge sweep failed", "error", err)
	}
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cron.Stop()
	s.wg.Wait()
	s.running = false
}
