package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/validator"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
)

// TriggerHandler decodes trigger messages and hands them to the sync service.
// Malformed payloads are fatal; service errors are returned as classified by the service.
type TriggerHandler struct {
	service TriggerService
}

// NewTriggerHandler creates a new trigger handler
func NewTriggerHandler(service TriggerService) *TriggerHandler {
	return &TriggerHandler{service: service}
}

// HandleEvent processes a trigger message
func (h *TriggerHandler) HandleEvent(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx).With(zap.String("request_id", uuid.NewString()))
	ctx = logger.WithLogger(ctx, log)

	log.Info("Processing trigger", zap.String("type", string(eventType)))

	switch eventType {
	case model.V1SyncRun:
		return h.handleSyncRun(ctx, metadata, rawEvent)
	case model.V1SyncSetting:
		return h.handleSettingRun(ctx, metadata, rawEvent)
	case model.V1LeadStatus:
		return h.handleStatusChange(ctx, rawEvent)
	case model.V1FormsRefresh:
		return h.handleFormsRefresh(ctx, metadata, rawEvent)
	default:
		log.Error("Unsupported trigger type", zap.String("eventType", string(eventType)))
		return apperrors.NewFatal(fmt.Errorf("unsupported trigger type: %s", eventType), "unsupported trigger type")
	}
}

// decode unmarshals a payload. An empty body leaves v untouched.
func decode(rawEvent []byte, v interface{}) error {
	if len(bytes.TrimSpace(rawEvent)) == 0 {
		return nil
	}
	return json.Unmarshal(rawEvent, v)
}

// handleSyncRun runs every active setting of a cadence. The subject token
// ("v1.sync.run.hourly") takes precedence over the payload.
func (h *TriggerHandler) handleSyncRun(ctx context.Context, metadata *model.MessageMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.SyncRunPayload
	if err := decode(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal sync run payload", zap.Error(err))
		return apperrors.NewFatal(err, "failed to unmarshal sync run payload")
	}

	name := metadata.SubjectToken()
	if name == "" {
		name = payload.Cadence
	}
	if name == "" {
		return apperrors.NewFatal(apperrors.ErrValidation, "sync run without cadence")
	}

	cadence, err := model.ParseCadence(name)
	if err != nil {
		log.Error("Sync run validation failed", zap.Error(err))
		return apperrors.NewFatal(fmt.Errorf("%w: %w", apperrors.ErrValidation, err), "invalid sync run")
	}

	log.Info("Submitting cadence run", zap.String("cadence", string(cadence)), zap.String("requested_by", payload.RequestedBy))
	return h.service.SubmitCadenceRun(ctx, cadence)
}

// handleSettingRun runs one setting. Setting names may contain spaces, so the
// payload wins over the subject token.
func (h *TriggerHandler) handleSettingRun(ctx context.Context, metadata *model.MessageMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.SyncRunPayload
	if err := decode(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal setting run payload", zap.Error(err))
		return apperrors.NewFatal(err, "failed to unmarshal setting run payload")
	}

	name := payload.Setting
	if name == "" {
		name = metadata.SubjectToken()
	}
	if name == "" {
		return apperrors.NewFatal(apperrors.ErrValidation, "setting run without setting name")
	}

	log.Info("Submitting setting run", zap.String("setting", name), zap.String("requested_by", payload.RequestedBy))
	return h.service.SubmitSettingRun(ctx, name)
}

func (h *TriggerHandler) handleStatusChange(ctx context.Context, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var change model.StatusChange
	if err := json.Unmarshal(rawEvent, &change); err != nil {
		log.Error("Failed to unmarshal status change payload", zap.Error(err))
		return apperrors.NewFatal(err, "failed to unmarshal status change payload")
	}
	if err := validator.Validate(change); err != nil {
		log.Error("Status change validation failed", zap.Error(err))
		return apperrors.NewFatal(err, "invalid status change")
	}

	log.Info("Processing status change",
		zap.String("record_type", change.RecordType),
		zap.String("meta_lead_id", change.Record.MetaLeadID),
		zap.String("status", change.Record.Status),
	)
	return h.service.HandleStatusChange(ctx, change)
}

func (h *TriggerHandler) handleFormsRefresh(ctx context.Context, metadata *model.MessageMetadata, rawEvent []byte) error {
	log := logger.FromContext(ctx)

	var payload model.FormsRefreshPayload
	if err := decode(rawEvent, &payload); err != nil {
		log.Error("Failed to unmarshal forms refresh payload", zap.Error(err))
		return apperrors.NewFatal(err, "failed to unmarshal forms refresh payload")
	}
	if payload.Setting == "" {
		payload.Setting = metadata.SubjectToken()
	}
	if err := validator.Validate(payload); err != nil {
		log.Error("Forms refresh validation failed", zap.Error(err))
		return apperrors.NewFatal(err, "invalid forms refresh")
	}

	log.Info("Submitting forms refresh", zap.String("setting", payload.Setting), zap.Bool("force_fetch", payload.ForceFetch))
	return h.service.SubmitFormsRefresh(ctx, payload)
}
