package usecase

import (
	"context"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
)

// SyncService is what the trigger handlers call. Runs are queued on the sync
// worker; status changes are evaluated inline so a rejection reaches the caller.
type SyncService struct {
	worker  ISyncWorker
	trigger *StatusTrigger
}

// NewSyncService creates a new sync service
func NewSyncService(worker ISyncWorker, trigger *StatusTrigger) *SyncService {
	return &SyncService{worker: worker, trigger: trigger}
}

// SubmitCadenceRun queues a run of every active setting at cadence.
func (s *SyncService) SubmitCadenceRun(ctx context.Context, cadence model.Cadence) error {
	if !cadence.Valid() {
		return apperrors.NewFatal(apperrors.ErrValidation, "unknown cadence %q", string(cadence))
	}
	return s.submit(ctx, SyncTaskData{Kind: TaskCadenceRun, Cadence: cadence})
}

// SubmitSettingRun queues a run of a single setting.
func (s *SyncService) SubmitSettingRun(ctx context.Context, name string) error {
	if name == "" {
		return apperrors.NewFatal(apperrors.ErrValidation, "setting name is required")
	}
	return s.submit(ctx, SyncTaskData{Kind: TaskSettingRun, Setting: name})
}

// SubmitFormsRefresh queues a form discovery for a setting.
func (s *SyncService) SubmitFormsRefresh(ctx context.Context, payload model.FormsRefreshPayload) error {
	return s.submit(ctx, SyncTaskData{
		Kind:    TaskFormsRefresh,
		Setting: payload.Setting,
		Refresh: RefreshOptions{ForceFetch: payload.ForceFetch, RebuildMappings: payload.RebuildMappings},
	})
}

// HandleStatusChange runs the status trigger. A disabled scheduler is fatal for
// the message since redelivery cannot fix it.
func (s *SyncService) HandleStatusChange(ctx context.Context, change model.StatusChange) error {
	outcome, err := s.trigger.Handle(ctx, change)
	if err != nil {
		return apperrors.NewFatal(err, "status change for %s %s", change.RecordType, change.Record.MetaLeadID)
	}
	logger.FromContext(ctx).Debug("Status change handled", zap.String("outcome", string(outcome)))
	return nil
}

func (s *SyncService) submit(ctx context.Context, task SyncTaskData) error {
	// The run outlives the message, so it only keeps the logger of ctx.
	task.Ctx = logger.WithLogger(context.Background(), logger.FromContext(ctx))
	if err := s.worker.SubmitTask(task); err != nil {
		return apperrors.NewRetryable(err, "submit %s task", task.Kind)
	}
	return nil
}
