package storage

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/observer"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/utils"
)

// --- CRM Record Repository Methods ---

// RecordExists reports whether a record with the given meta lead id exists for recordType.
func (r *PostgresRepo) RecordExists(ctx context.Context, recordType, metaLeadID string) (bool, error) {
	var count int64
	operation := func() error {
		result := r.db.WithContext(ctx).Model(&model.CrmRecord{}).
			Where("record_type = ? AND meta_lead_id = ?", recordType, metaLeadID).
			Count(&count)
		return checkConstraintViolation(result.Error)
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "RecordExists", operation)
	observer.ObserveDbOperationDuration("exists", "crm_record", time.Since(startTime), err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to check record existence after retries",
			zap.String("record_type", recordType),
			zap.String("meta_lead_id", metaLeadID),
			zap.Error(err))
		return false, err
	}
	return count > 0, nil
}

// CreateRecord inserts a record in a single statement. A concurrent insert of the
// same (record_type, meta_lead_id) comes back as apperrors.ErrDuplicate and is not retried.
//
// When a retried attempt hits the unique index, the stored row may be the one an
// earlier attempt committed before its connection dropped. That row is recognised
// by its created_at and reported as created.
func (r *PostgresRepo) CreateRecord(ctx context.Context, record *model.CrmRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = utils.Now()
	}
	attempts := 0
	operation := func() error {
		attempts++
		return checkConstraintViolation(r.db.WithContext(ctx).Create(record).Error)
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, commitPolicy, "CreateRecord", operation)
	if attempts > 1 && errors.Is(err, apperrors.ErrDuplicate) && r.committedEarlier(ctx, record) {
		logger.FromContext(ctx).Warn("Record was committed by an earlier insert attempt",
			zap.String("record_type", record.RecordType),
			zap.String("meta_lead_id", record.MetaLeadID),
			zap.Int("attempts", attempts),
			zap.Uint("record_id", record.ID))
		err = nil
	}
	observer.ObserveDbOperationDuration("create", "crm_record", time.Since(startTime), err)
	if err != nil && !errors.Is(err, apperrors.ErrDuplicate) {
		logger.FromContext(ctx).Error("Failed to create record after retries",
			zap.String("record_type", record.RecordType),
			zap.String("meta_lead_id", record.MetaLeadID),
			zap.Error(err))
	}
	return err
}

// committedEarlier reports whether the stored row for record was written by this
// insert. On a match record.ID is filled from the stored row.
func (r *PostgresRepo) committedEarlier(ctx context.Context, record *model.CrmRecord) bool {
	stored, err := r.FindRecordByMetaLeadID(ctx, record.RecordType, record.MetaLeadID)
	if err != nil {
		return false
	}
	// timestamptz keeps microseconds
	if stored.CreatedAt.Sub(record.CreatedAt).Abs() >= time.Millisecond {
		return false
	}
	record.ID = stored.ID
	return true
}

// FindRecordByMetaLeadID loads a record, returning apperrors.ErrNotFound when absent.
func (r *PostgresRepo) FindRecordByMetaLeadID(ctx context.Context, recordType, metaLeadID string) (*model.CrmRecord, error) {
	var record model.CrmRecord
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("record_type = ? AND meta_lead_id = ?", recordType, metaLeadID).
			First(&record)
		return checkConstraintViolation(result.Error)
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, readPolicy, "FindRecordByMetaLeadID", operation)
	observer.ObserveDbOperationDuration("find", "crm_record", time.Since(startTime), err)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.ErrNotFound
		}
		logger.FromContext(ctx).Error("Failed to find record after retries",
			zap.String("record_type", recordType),
			zap.String("meta_lead_id", metaLeadID),
			zap.Error(err))
		return nil, err
	}
	return &record, nil
}
