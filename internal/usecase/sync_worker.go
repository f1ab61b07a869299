package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/config"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/observer"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/utils"
)

// SyncTaskKind says which run a task performs.
type SyncTaskKind string

const (
	TaskCadenceRun   SyncTaskKind = "cadence"
	TaskSettingRun   SyncTaskKind = "setting"
	TaskFormsRefresh SyncTaskKind = "forms_refresh"
)

// SyncTaskData holds the necessary data for a queued run.
type SyncTaskData struct {
	Ctx     context.Context // Detached from the NATS message; carries the logger and run metadata
	Kind    SyncTaskKind
	Cadence model.Cadence
	Setting string
	Refresh RefreshOptions
}

// ISyncWorker defines the interface for the sync run worker pool.
type ISyncWorker interface {
	SubmitTask(taskData SyncTaskData) error
	Stop()
}

// RunExecutor performs the runs the worker hands out.
type RunExecutor interface {
	RunCadence(ctx context.Context, cadence model.Cadence) ([]*RunReport, error)
	RunSetting(ctx context.Context, name string) (*RunReport, error)
}

// FormRefresher performs queued form refreshes.
type FormRefresher interface {
	RefreshForms(ctx context.Context, name string, opts RefreshOptions) (*model.SyncSetting, error)
}

// SyncWorker runs sync tasks on a bounded ants pool so a trigger message can be
// acknowledged before its run finishes. With a pool size of 1 runs are serialized.
type SyncWorker struct {
	pool       *ants.PoolWithFunc
	runs       RunExecutor
	refresher  FormRefresher
	cfg        config.WorkerPoolConfig
	baseLogger *zap.Logger
}

// Ensure SyncWorker implements ISyncWorker
var _ ISyncWorker = (*SyncWorker)(nil)

// NewSyncWorker creates and initializes a new sync worker pool.
func NewSyncWorker(cfg config.WorkerPoolConfig, runs RunExecutor, refresher FormRefresher, baseLogger *zap.Logger) (*SyncWorker, error) {
	if baseLogger == nil {
		baseLogger = zap.NewNop()
	}
	if cfg.PoolSize < 1 {
		cfg.PoolSize = 1
	}
	worker := &SyncWorker{
		runs:       runs,
		refresher:  refresher,
		cfg:        cfg,
		baseLogger: baseLogger.Named("sync_worker"),
	}

	pool, err := ants.NewPoolWithFunc(cfg.PoolSize, func(i interface{}) {
		taskData, ok := i.(SyncTaskData)
		if !ok {
			worker.baseLogger.Error("Invalid task data type received", zap.Any("data", i))
			return
		}
		worker.processTask(taskData)
	},
		ants.WithExpiryDuration(cfg.ExpiryTime),
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(cfg.QueueSize),
		ants.WithPanicHandler(func(err interface{}) {
			worker.baseLogger.Error("Panic recovered in sync worker", zap.Any("panic_error", err), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync worker pool: %w", err)
	}
	worker.pool = pool
	worker.baseLogger.Info("Sync worker pool initialized",
		zap.Int("pool_size", cfg.PoolSize),
		zap.Int("queue_size", cfg.QueueSize),
		zap.Duration("expiry_time", cfg.ExpiryTime),
	)
	return worker, nil
}

// SubmitTask queues a run. It blocks while the queue is full and fails with
// ants.ErrPoolOverload once QueueSize tasks are already waiting.
func (w *SyncWorker) SubmitTask(taskData SyncTaskData) error {
	if taskData.Ctx == nil {
		taskData.Ctx = context.Background()
	}
	start := time.Now()
	observer.IncSyncTasksSubmitted(string(taskData.Kind))
	observer.SetSyncQueueLength(w.pool.Waiting())

	err := w.pool.Invoke(taskData)
	if err != nil {
		w.baseLogger.Warn("Failed to submit sync task to pool",
			zap.String("kind", string(taskData.Kind)),
			zap.String("cadence", string(taskData.Cadence)),
			zap.String("sync_setting", taskData.Setting),
			zap.Duration("submit_duration", time.Since(start)),
			zap.Error(err),
		)
		observer.IncSyncTasksProcessed(string(taskData.Kind), "submit_error")
		if errors.Is(err, ants.ErrPoolOverload) {
			return fmt.Errorf("sync pool overload: %w", err)
		}
		return fmt.Errorf("failed to invoke sync task: %w", err)
	}
	return nil
}

// processTask contains the logic executed by a worker goroutine.
func (w *SyncWorker) processTask(taskData SyncTaskData) {
	ctx := taskData.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.FromContext(ctx).With(zap.String("task_kind", string(taskData.Kind)))
	start := time.Now()
	status := "success"

	run := utils.WrapWithContextRecovery("sync task "+string(taskData.Kind), func(ctx context.Context) error {
		return w.execute(ctx, taskData)
	})
	err := run(ctx)
	if err != nil {
		status = "failure"
		log.Error("Sync task failed",
			zap.String("cadence", string(taskData.Cadence)),
			zap.String("sync_setting", taskData.Setting),
			zap.Error(err))
	}

	duration := time.Since(start)
	observer.ObserveSyncTaskDuration(string(taskData.Kind), duration)
	observer.IncSyncTasksProcessed(string(taskData.Kind), status)
	log.Debug("Finished sync task", zap.Duration("duration", duration), zap.String("final_status", status))
}

// execute dispatches a task to the run executor or the form refresher.
func (w *SyncWorker) execute(ctx context.Context, taskData SyncTaskData) error {
	var err error
	switch taskData.Kind {
	case TaskCadenceRun:
		_, err = w.runs.RunCadence(ctx, taskData.Cadence)
	case TaskSettingRun:
		_, err = w.runs.RunSetting(ctx, taskData.Setting)
	case TaskFormsRefresh:
		if w.refresher == nil {
			return errors.New("forms refresh is not configured")
		}
		_, err = w.refresher.RefreshForms(ctx, taskData.Setting, taskData.Refresh)
	default:
		err = fmt.Errorf("unknown sync task kind %q", taskData.Kind)
	}
	return err
}

// Stop gracefully shuts down the worker pool, waiting up to timeout for running tasks.
func (w *SyncWorker) Stop() {
	if w.pool == nil {
		return
	}
	w.baseLogger.Info("Releasing sync worker pool")
	start := time.Now()
	if err := w.pool.ReleaseTimeout(w.cfg.MaxBlock + 30*time.Second); err != nil {
		w.baseLogger.Warn("Sync worker pool did not drain in time", zap.Error(err))
	}
	w.baseLogger.Info("Sync worker pool released", zap.Duration("duration", time.Since(start)))
}
