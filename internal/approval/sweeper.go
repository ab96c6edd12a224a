package approval

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Sweeper runs Coordinator.ExpireSweep on a cron schedule, grounded on
// internal/webhook/cleanup_scheduler.go's CleanupScheduler (cron.Cron +
// mutex-guarded running flag + WaitGroup for clean Stop semantics).
type Sweeper struct {
	coord    *Coordinator
	logger   *slog.Logger
	schedule string
	cron     *cron.Cron

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewSweeper builds a sweeper on schedule (a standard 5-field cron
// expression; "@every 1m" matches §4.6's "e.g., every minute" default).
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
			s.logger.Error("approval expiration sweep failed", "error", err)
			return
		}
		if n > 0 {
			s.logger.Info("approval expiration sweep completed", "expired", n)
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
