package storage

import (
	"context"
	"time"

	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
)

// RecordStore defines CRM record storage operations
type RecordStore interface {
	Exists(ctx context.Context, recordType, metaLeadID string) (bool, error)
	Create(ctx context.Context, record *model.CrmRecord) error
	FindByMetaLeadID(ctx context.Context, recordType, metaLeadID string) (*model.CrmRecord, error)
}

// SettingRepo defines sync setting storage operations
type SettingRepo interface {
	FindByName(ctx context.Context, name string) (*model.SyncSetting, error)
	FindActiveByCadence(ctx context.Context, cadence model.Cadence) ([]model.SyncSetting, error)
	List(ctx context.Context) ([]model.SyncSetting, error)
	Save(ctx context.Context, setting *model.SyncSetting) error
	MarkRun(ctx context.Context, name string, at time.Time) error
}

// PageRepo defines page pixel configuration storage operations
type PageRepo interface {
	FindByPageID(ctx context.Context, pageID string) (*model.PageConfig, error)
	Save(ctx context.Context, page *model.PageConfig) error
}

// NoteRepo defines audit note storage operations
type NoteRepo interface {
	Save(ctx context.Context, note *model.SyncNote) error
	List(ctx context.Context, recordType, metaLeadID string) ([]model.SyncNote, error)
}

// ExhaustedTriggerRepo defines storage for trigger messages that ran out of deliveries
type ExhaustedTriggerRepo interface {
	Save(ctx context.Context, trigger model.ExhaustedTrigger) error
	ListUnresolved(ctx context.Context, limit int) ([]model.ExhaustedTrigger, error)
	Resolve(ctx context.Context, id uint, notes string) error
}
