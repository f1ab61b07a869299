package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/config"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/observer"
	"gitlab.com/timkado/api/meta-lead-sync/internal/storage"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
)

// TriggerOutcome describes what the status trigger did with a change.
type TriggerOutcome string

const (
	TriggerFired       TriggerOutcome = "fired"
	TriggerSkipped     TriggerOutcome = "skipped"
	TriggerIgnoredType TriggerOutcome = "ignored_record_type"
	TriggerRejected    TriggerOutcome = "rejected"
)

// ErrSchedulerDisabled is returned to the saving caller when an event would be sent while the scheduler is off.
var ErrSchedulerDisabled = fmt.Errorf("%w: please enable the scheduler first", apperrors.ErrValidation)

// ShouldTrigger reports whether a saved record's status change must be sent to the pixel.
func ShouldTrigger(isNew, hasMetaID, statusChanged bool) bool {
	return !isNew && hasMetaID && statusChanged
}

// StatusTrigger sends a conversion event when an existing record changes status.
type StatusTrigger struct {
	records          storage.RecordStore
	pages            storage.PageRepo
	dispatcher       Dispatcher
	recordTypes      map[string]struct{}
	schedulerEnabled bool
}

// NewStatusTrigger creates a StatusTrigger watching cfg.RecordTypes.
func NewStatusTrigger(records storage.RecordStore, pages storage.PageRepo, dispatcher Dispatcher, cfg config.SyncConfig) *StatusTrigger {
	types := make(map[string]struct{}, len(cfg.RecordTypes))
	for _, t := range cfg.RecordTypes {
		types[t] = struct{}{}
	}
	return &StatusTrigger{
		records:          records,
		pages:            pages,
		dispatcher:       dispatcher,
		recordTypes:      types,
		schedulerEnabled: cfg.SchedulerEnabled,
	}
}

// Handle evaluates change and dispatches synchronously when it fires. Only the
// disabled scheduler is reported as an error; dispatch failures are logged.
func (t *StatusTrigger) Handle(ctx context.Context, change model.StatusChange) (TriggerOutcome, error) {
	outcome, err := t.handle(ctx, change)
	observer.IncStatusTrigger(change.RecordType, string(outcome))
	return outcome, err
}

func (t *StatusTrigger) handle(ctx context.Context, change model.StatusChange) (TriggerOutcome, error) {
	log := logger.FromContext(ctx).With(
		zap.String("record_type", change.RecordType),
		zap.String("meta_lead_id", change.Record.MetaLeadID))

	if _, ok := t.recordTypes[change.RecordType]; !ok {
		log.Debug("Record type is not watched")
		return TriggerIgnoredType, nil
	}
	if !ShouldTrigger(change.IsNew, change.Record.MetaLeadID != "", change.StatusChanged()) {
		return TriggerSkipped, nil
	}
	if !t.schedulerEnabled {
		return TriggerRejected, ErrSchedulerDisabled
	}

	record := change.ToRecord()
	if record.PageID == "" {
		stored, err := t.records.FindByMetaLeadID(ctx, change.RecordType, record.MetaLeadID)
		if err != nil {
			log.Warn("Could not load stored record for page id", zap.Error(err))
		} else {
			record.PageID = stored.PageID
			if record.FirstName == nil {
				record.FirstName = stored.FirstName
			}
		}
	}

	var page *model.PageConfig
	if record.PageID != "" {
		p, err := t.pages.FindByPageID(ctx, record.PageID)
		if err != nil {
			log.Warn("Could not load page configuration", zap.String("page_id", record.PageID), zap.Error(err))
		} else {
			page = p
		}
	}

	result := t.dispatchSafely(ctx, &record, page)
	if !result.OK() {
		log.Error("Status change event was not sent",
			zap.String("status", record.Status),
			zap.String("error_kind", result.Error),
			zap.String("message", result.Message))
	}
	return TriggerFired, nil
}

func (t *StatusTrigger) dispatchSafely(ctx context.Context, record *model.CrmRecord, page *model.PageConfig) (result model.DispatchResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error("[panic] Recovered from panic during status change dispatch",
				zap.Any("panic", r),
				zap.Stack("stack"))
			result = model.DispatchResult{Status: model.DispatchFailed, Message: fmt.Sprint(r)}
		}
	}()
	return t.dispatcher.Dispatch(ctx, record, page)
}
