package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/observer"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/utils"
)

// settingUpdateColumns are overwritten when a setting with the same name is saved again.
var settingUpdateColumns = []string{
	"page_id", "record_type", "event_frequency", "status", "forms", "mappings", "updated_at",
}

// FindSettingByName loads a sync setting by its unique name.
func (r *PostgresRepo) FindSettingByName(ctx context.Context, name string) (*model.SyncSetting, error) {
	var setting model.SyncSetting
	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Where("name = ?", name).First(&setting).Error)
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindSettingByName", operation)
	observer.ObserveDbOperationDuration("find", "sync_setting", time.Since(startTime), err)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: sync setting %q", apperrors.ErrNotFound, name)
		}
		logger.FromContext(ctx).Error("Failed to find sync setting after retries", zap.String("name", name), zap.Error(err))
		return nil, err
	}
	return &setting, nil
}

// FindActiveSettingsByCadence returns active settings whose event frequency is cadence, ordered by name.
func (r *PostgresRepo) FindActiveSettingsByCadence(ctx context.Context, cadence model.Cadence) ([]model.SyncSetting, error) {
	var settings []model.SyncSetting
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("event_frequency = ? AND status = ?", string(cadence), model.SettingStatusActive).
			Order("name").
			Find(&settings)
		return checkConstraintViolation(result.Error)
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindActiveSettingsByCadence", operation)
	observer.ObserveDbOperationDuration("find", "sync_setting", time.Since(startTime), err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to list settings for cadence", zap.String("cadence", string(cadence)), zap.Error(err))
		return nil, err
	}
	return settings, nil
}

// ListSettings returns every setting ordered by name.
func (r *PostgresRepo) ListSettings(ctx context.Context) ([]model.SyncSetting, error) {
	var settings []model.SyncSetting
	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Order("name").Find(&settings).Error)
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	err := retryableOperation(ctx, readPolicy, "ListSettings", operation)
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// SaveSetting inserts a setting or, when the name exists, overwrites its mutable columns.
func (r *PostgresRepo) SaveSetting(ctx context.Context, setting *model.SyncSetting) error {
	setting.UpdatedAt = utils.Now()
	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns(settingUpdateColumns),
		}).Create(setting)
		return checkConstraintViolation(result.Error)
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, commitPolicy, "SaveSetting", operation)
	observer.ObserveDbOperationDuration("save", "sync_setting", time.Since(startTime), err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to save sync setting after retries", zap.String("name", setting.Name), zap.Error(err))
		return err
	}
	return nil
}

// MarkSettingRun stamps the last run time of a setting.
func (r *PostgresRepo) MarkSettingRun(ctx context.Context, name string, at time.Time) error {
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.SyncSetting{}).
			Where("name = ?", name).
			Update("last_run_at", at)
		return checkConstraintViolation(result.Error)
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, commitPolicy, "MarkSettingRun", operation)
	observer.ObserveDbOperationDuration("update", "sync_setting", time.Since(startTime), err)
	return err
}
