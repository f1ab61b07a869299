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

// FindPageConfig loads the pixel configuration of a page.
func (r *PostgresRepo) FindPageConfig(ctx context.Context, pageID string) (*model.PageConfig, error) {
	var page model.PageConfig
	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Where("page_id = ?", pageID).First(&page).Error)
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindPageConfig", operation)
	observer.ObserveDbOperationDuration("find", "page_config", time.Since(startTime), err)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: page config %q", apperrors.ErrNotFound, pageID)
		}
		logger.FromContext(ctx).Error("Failed to find page config after retries", zap.String("page_id", pageID), zap.Error(err))
		return nil, err
	}
	return &page, nil
}

// SavePageConfig upserts a page configuration by page id.
func (r *PostgresRepo) SavePageConfig(ctx context.Context, page *model.PageConfig) error {
	page.UpdatedAt = utils.Now()
	operation := func() error {
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "page_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"page_name", "pixel_id", "pixel_access_token", "updated_at"}),
		}).Create(page)
		return checkConstraintViolation(result.Error)
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, commitPolicy, "SavePageConfig", operation)
	observer.ObserveDbOperationDuration("save", "page_config", time.Since(startTime), err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to save page config after retries", zap.String("page_id", page.PageID), zap.Error(err))
	}
	return err
}
