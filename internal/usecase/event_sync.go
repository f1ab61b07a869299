package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/config"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/observer"
	"gitlab.com/timkado/api/meta-lead-sync/internal/storage"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/utils"
)

// AuditNoteTitle is the title of the note archived after a successful dispatch.
const AuditNoteTitle = "Lead Created in Facebook Successfully"

// linearBackOff waits step, 2*step, 3*step... between attempts.
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *linearBackOff) Reset() {
	b.n = 0
}

// EventSyncOption configures an EventSync.
type EventSyncOption func(*EventSync)

// WithClock overrides the clock used for event_time.
func WithClock(now func() time.Time) EventSyncOption {
	return func(s *EventSync) {
		s.now = now
	}
}

// WithTimerFactory overrides the timer used to wait between attempts.
func WithTimerFactory(newTimer func() backoff.Timer) EventSyncOption {
	return func(s *EventSync) {
		s.newTimer = newTimer
	}
}

// EventSync builds conversion events for CRM records and posts them to the
// page's pixel with a linear retry on transport failures.
type EventSync struct {
	sender   EventSender
	notes    storage.NoteRepo
	cfg      config.DispatchConfig
	now      func() time.Time
	newTimer func() backoff.Timer
}

// NewEventSync creates an EventSync. notes may be nil, in which case no audit note is written.
func NewEventSync(sender EventSender, notes storage.NoteRepo, cfg config.DispatchConfig, opts ...EventSyncOption) *EventSync {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	s := &EventSync{
		sender: sender,
		notes:  notes,
		cfg:    cfg,
		now:    utils.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildPayload returns the request body for record's status.
func (s *EventSync) BuildPayload(record *model.CrmRecord) model.EventPayload {
	return model.EventPayload{Data: []model.ConversionEvent{{
		EventName:    record.Status,
		EventTime:    s.now().Unix(),
		ActionSource: s.cfg.ActionSource,
		UserData:     model.EventUserData{LeadID: record.MetaLeadID},
		CustomData: model.EventCustomData{
			EventSource:     s.cfg.EventSource,
			LeadEventSource: s.cfg.LeadEventSource,
		},
	}}}
}

// Dispatch sends record's current status to the pixel of page. Failures are
// reported in the result and logged, never returned.
func (s *EventSync) Dispatch(ctx context.Context, record *model.CrmRecord, page *model.PageConfig) model.DispatchResult {
	log := logger.FromContext(ctx)

	if record == nil || record.MetaLeadID == "" {
		log.Warn("Lead ID is missing, event not dispatched")
		return s.finish(model.DispatchResult{
			Status:  model.DispatchSkipped,
			Error:   model.DispatchErrConfiguration,
			Message: fmt.Sprintf("%v: meta lead id is missing", apperrors.ErrConfiguration),
		})
	}
	log = log.With(zap.String("meta_lead_id", record.MetaLeadID), zap.String("status", record.Status))

	if !page.HasPixel() {
		log.Warn("Pixel ID or pixel access token is missing, event not dispatched", zap.String("page_id", record.PageID))
		return s.finish(model.DispatchResult{
			Status:  model.DispatchSkipped,
			Error:   model.DispatchErrConfiguration,
			Message: fmt.Sprintf("%v: pixel id or pixel access token is missing for page %s", apperrors.ErrConfiguration, record.PageID),
		})
	}

	payload := s.BuildPayload(record)
	attempts := 0
	var response json.RawMessage

	operation := func() error {
		attempts++
		resp, err := s.sender.SendEvents(ctx, page.PixelID, page.PixelAccessToken, payload)
		if err != nil {
			if apperrors.IsTransportError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		response = resp
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("Event dispatch failed, retrying",
			zap.Int("attempt", attempts),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: s.cfg.BackoffStep}, uint64(s.cfg.MaxAttempts-1)),
		ctx,
	)
	var timer backoff.Timer
	if s.newTimer != nil {
		timer = s.newTimer()
	}

	if err := backoff.RetryNotifyWithTimer(operation, policy, notify, timer); err != nil {
		result := classifyDispatchError(err, attempts)
		log.Error("Event dispatch failed",
			zap.String("error_kind", result.Error),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return s.finish(result)
	}

	log.Info("Event dispatched", zap.Int("attempts", attempts))
	s.archive(ctx, record, payload, response)
	return s.finish(model.DispatchResult{
		Status:   model.DispatchSent,
		Attempts: attempts,
		Response: response,
	})
}

func classifyDispatchError(err error, attempts int) model.DispatchResult {
	result := model.DispatchResult{Status: model.DispatchFailed, Attempts: attempts}
	switch {
	case apperrors.IsTimeoutError(err):
		result.Error = model.DispatchErrTimeout
		result.Message = fmt.Sprintf("Request timed out after %d attempts", attempts)
	case apperrors.IsNetworkError(err):
		result.Error = model.DispatchErrNetwork
		result.Message = fmt.Sprintf("Network error after %d attempts: %v", attempts, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result.Error = model.DispatchErrCanceled
		result.Message = err.Error()
	default:
		result.Error = model.DispatchErrAPI
		result.Message = err.Error()
	}
	return result
}

func (s *EventSync) finish(result model.DispatchResult) model.DispatchResult {
	observer.ObserveDispatch(string(result.Status), result.Error, result.Attempts)
	return result
}

// archive stores the audit note of a successful dispatch. A failure is only logged.
func (s *EventSync) archive(ctx context.Context, record *model.CrmRecord, payload model.EventPayload, response json.RawMessage) {
	if s.notes == nil {
		return
	}
	note := &model.SyncNote{
		RecordType: record.RecordType,
		MetaLeadID: record.MetaLeadID,
		Title:      AuditNoteTitle,
		Content: fmt.Sprintf("%s for Lead: %s<br>Response: %s<br>Payload: %s",
			AuditNoteTitle, record.DisplayName(), string(response), utils.PrettyJSON(payload)),
		Payload: datatypes.JSON(utils.MustMarshalJSON(payload)),
	}
	if json.Valid(response) {
		note.Response = datatypes.JSON(response)
	}
	if err := s.notes.Save(ctx, note); err != nil {
		logger.FromContext(ctx).Error("Failed to save dispatch audit note",
			zap.String("meta_lead_id", record.MetaLeadID),
			zap.Error(err))
	}
}
