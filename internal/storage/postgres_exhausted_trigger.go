package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/observer"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/utils"
)

// SaveExhaustedTrigger stores a trigger message that ran out of deliveries.
func (r *PostgresRepo) SaveExhaustedTrigger(ctx context.Context, trigger model.ExhaustedTrigger) error {
	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Create(&trigger).Error)
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	commitErr := retryableOperation(ctx, commitPolicy, "SaveExhaustedTrigger", operation)
	observer.ObserveDbOperationDuration("save", "exhausted_trigger", time.Since(startTime), commitErr)

	if commitErr != nil {
		logger.FromContext(ctx).Error("Failed to save exhausted trigger after retries",
			zap.String("source_subject", trigger.SourceSubject),
			zap.Error(commitErr))
		return commitErr
	}

	logger.FromContext(ctx).Info("Successfully saved exhausted trigger", zap.Uint("trigger_id", trigger.ID), zap.String("source_subject", trigger.SourceSubject))
	return nil
}

// ListUnresolvedExhaustedTriggers returns up to limit unresolved triggers, oldest first.
func (r *PostgresRepo) ListUnresolvedExhaustedTriggers(ctx context.Context, limit int) ([]model.ExhaustedTrigger, error) {
	var triggers []model.ExhaustedTrigger
	operation := func() error {
		result := r.db.WithContext(ctx).Where("resolved = ?", false).Order("id").Limit(limit).Find(&triggers)
		return checkConstraintViolation(result.Error)
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	if err := retryableOperation(ctx, readPolicy, "ListUnresolvedExhaustedTriggers", operation); err != nil {
		return nil, err
	}
	return triggers, nil
}

// ResolveExhaustedTrigger marks a trigger as handled.
func (r *PostgresRepo) ResolveExhaustedTrigger(ctx context.Context, id uint, notes string) error {
	now := utils.Now()
	var affected int64
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.ExhaustedTrigger{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"resolved": true, "resolved_at": now, "notes": notes})
		affected = result.RowsAffected
		return checkConstraintViolation(result.Error)
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	if err := retryableOperation(ctx, commitPolicy, "ResolveExhaustedTrigger", operation); err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: exhausted trigger %d", apperrors.ErrNotFound, id)
	}
	return nil
}
