// Package archive implements the Archival Service (§4.9): after an
// Execution reaches a terminal state, denormalize it into a compact
// ExecutionArchive, delete the live Execution/NodeExecution rows, and
// release its State Manager entry; a batch sweep drives this
// periodically and a second sweep purges archives past their
// retention window. Grounded on internal/retention/service.go's
// cutoff-date math and audit-log pattern, generalized from "delete
// old rows" to "archive then delete" (the teacher's
// ArchiveAndDeleteOldExecutions path, taken unconditionally here since
// §4.9 always archives before deleting).
package archive

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nodeflow/engine/internal/execmodel"
)

// FlowInfo is the denormalized flow identity an archive carries,
// looked up once per execution at archival time.
type FlowInfo struct {
	FlowName    string
	FlowVersion int
}

// StateCleaner is the State Manager's narrow surface this service calls
// once an execution's archive is durable.
type StateCleaner interface {
	CleanupExecution(ctx context.Context, executionID string) error
}

// Repository is the durable store this service archives out of and
// into.
type Repository interface {
	// ListArchivable returns up to limit terminal executions whose
	// completedAt is at or before olderThan and that have not yet been
	// archived.
	ListArchivable(ctx context.Context, olderThan time.Time, limit int) ([]*execmodel.Execution, error)
	GetFlowInfo(ctx context.Context, flowID, flowVersionID string) (FlowInfo, error)
	GetNodeExecutions(ctx context.Context, executionID string) ([]*execmodel.NodeExecution, error)
	SaveArchive(ctx context.Context, a *execmodel.ExecutionArchive) error
	DeleteExecution(ctx context.Context, executionID string) error
	ListExpiredArchives(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
	DeleteArchive(ctx context.Context, archiveID string) error
}

// Config tunes batch sizes and retention, per §4.9's "fetch terminal
// executions older than K minutes, archive up to M per batch" and
// "retention sweep deletes archives older than retentionDays".
type Config struct {
	ArchiveAfter  time.Duration
	BatchSize     int
	RetentionDays int
}

func DefaultConfig() Config {
	return Config{ArchiveAfter: 5 * time.Minute, BatchSize: 100, RetentionDays: 30}
}

// Service is the Archival Service component.
type Service struct {
	repo   Repository
	state  StateCleaner
	logger *slog.Logger
	config Config
}

func New(repo Repository, state StateCleaner, logger *slog.Logger, config Config) *Service {
	return &Service{repo: repo, state: state, logger: logger, config: config}
}

// ArchiveBatch archives up to config.BatchSize eligible executions.
// Per-execution failures are logged and skipped without stopping the
// batch (§4.9).
func (s *Service) ArchiveBatch(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.config.ArchiveAfter)
	executions, err := s.repo.ListArchivable(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return 0, err
	}

	archived := 0
	for _, exec := range executions {
		if err := s.archiveOne(ctx, exec); err != nil {
			s.logger.Error("failed to archive execution", "execution_id", exec.ID, "error", err)
			continue
		}
		archived++
	}

	s.logger.Info("archive batch completed", "archived", archived, "candidates", len(executions))
	return archived, nil
}

func (s *Service) archiveOne(ctx context.Context, exec *execmodel.Execution) error {
	flowInfo, err := s.repo.GetFlowInfo(ctx, exec.FlowID, exec.FlowVersionID)
	if err != nil {
		return err
	}

	nodeExecs, err := s.repo.GetNodeExecutions(ctx, exec.ID)
	if err != nil {
		return err
	}
	nodeExecJSON, err := marshalNodeExecutions(nodeExecs)
	if err != nil {
		return err
	}

	archiveRecord := &execmodel.ExecutionArchive{
		ID:             uuid.New().String(),
		ExecutionID:    exec.ID,
		TenantID:       exec.TenantID,
		FlowID:         exec.FlowID,
		FlowName:       flowInfo.FlowName,
		FlowVersion:    flowInfo.FlowVersion,
		Status:         exec.Status,
		NodeExecutions: nodeExecJSON,
		Output:         exec.OutputData,
		TriggerInput:   exec.TriggerInput,
		StartedAt:      exec.StartedAt,
		CompletedAt:    exec.CompletedAt,
		DurationMs:     exec.DurationMs,
		ArchivedAt:     time.Now(),
	}

	if err := s.repo.SaveArchive(ctx, archiveRecord); err != nil {
		return err
	}
	if err := s.repo.DeleteExecution(ctx, exec.ID); err != nil {
		return err
	}
	return s.state.CleanupExecution(ctx, exec.ID)
}

// PurgeExpired deletes archives past config.RetentionDays.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -s.config.RetentionDays)
	ids, err := s.repo.ListExpiredArchives(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, id := range ids {
		if err := s.repo.DeleteArchive(ctx, id); err != nil {
			s.logger.Error("failed to purge archive", "archive_id", id, "error", err)
			continue
		}
		purged++
	}

	s.logger.Info("retention purge completed", "purged", purged, "candidates", len(ids))
	return purged, nil
}
