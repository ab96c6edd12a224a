package form

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Sweeper runs Coordinator.ExpireSweep on a cron schedule, the same
// cron.Cron + mutex-guarded running flag + WaitGroup shape as
// internal/approval/sweeper.go (both grounded on the teacher's
// internal/webhook/cleanup_scheduler.go CleanupScheduler).
type Sweeper struct {
	coord    *Coordinator
	logger   *slog.Logger
	schedule string
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewSweeper builds a sweeper on schedule; "@every 1m" matches the
// Approval Coordinator's default sweep cadence.
func NewSweeper(coord *Coordinator, logger *slog.Logger, schedule string) *Sweeper {
	if schedule == "" {
		schedule = "@every 1m"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{coord: coord, logger: logger, schedule: schedule}
}

func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		s.wg.Add(1)
		defer s.wg.Done()
		n, err := s.coord.ExpireSweep(ctx)
		if err != nil {
			s.logger.Error("form trigger expiration sweep failed", "error", err)
			return
		}
		if n > 0 {
			s.logger.Info("form trigger expiration sweep completed", "deactivated", n)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.running = true
	return nil
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
