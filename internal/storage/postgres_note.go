package storage

import (
	"context"
	"time"

	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/observer"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/utils"
)

// SaveNote stores an audit note.
func (r *PostgresRepo) SaveNote(ctx context.Context, note *model.SyncNote) error {
	operation := func() error {
		return checkConstraintViolation(r.db.WithContext(ctx).Create(note).Error)
	}

	commitPolicy := newRetryPolicy(ctx, commitRetryMaxElapsedTime)
	startTime := utils.Now()
	err := retryableOperation(ctx, commitPolicy, "SaveNote", operation)
	observer.ObserveDbOperationDuration("save", "sync_note", time.Since(startTime), err)
	return err
}

// ListNotes returns the notes attached to a record, newest first.
func (r *PostgresRepo) ListNotes(ctx context.Context, recordType, metaLeadID string) ([]model.SyncNote, error) {
	var notes []model.SyncNote
	operation := func() error {
		result := r.db.WithContext(ctx).
			Where("record_type = ? AND meta_lead_id = ?", recordType, metaLeadID).
			Order("created_at DESC").
			Find(&notes)
		return checkConstraintViolation(result.Error)
	}

	readPolicy := newRetryPolicy(ctx, readRetryMaxElapsedTime)
	if err := retryableOperation(ctx, readPolicy, "ListNotes", operation); err != nil {
		return nil, err
	}
	return notes, nil
}
