package handler

import (
	"context"

	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
)

// EventHandlerInterface defines the common interface for event handlers
type EventHandlerInterface interface {
	// HandleEvent processes an event
	HandleEvent(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error
}

// TriggerService is the sync entry point the trigger handler calls.
type TriggerService interface {
	SubmitCadenceRun(ctx context.Context, cadence model.Cadence) error
	SubmitSettingRun(ctx context.Context, name string) error
	SubmitFormsRefresh(ctx context.Context, payload model.FormsRefreshPayload) error
	HandleStatusChange(ctx context.Context, change model.StatusChange) error
}

// Ensure the handler implements the interface
var _ EventHandlerInterface = (*TriggerHandler)(nil)
