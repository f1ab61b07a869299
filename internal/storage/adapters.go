package storage

import (
	"context"
	"time"

	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
)

// RecordStoreAdapter adapts the PostgresRepo to the RecordStore interface
type RecordStoreAdapter struct {
	postgres *PostgresRepo
}

// NewRecordStoreAdapter creates a new record store adapter
func NewRecordStoreAdapter(postgres *PostgresRepo) RecordStore {
	return &RecordStoreAdapter{postgres: postgres}
}

// Exists checks whether a record was already created for the lead
func (a *RecordStoreAdapter) Exists(ctx context.Context, recordType, metaLeadID string) (bool, error) {
	return a.postgres.RecordExists(ctx, recordType, metaLeadID)
}

// Create inserts a record
func (a *RecordStoreAdapter) Create(ctx context.Context, record *model.CrmRecord) error {
	return a.postgres.CreateRecord(ctx, record)
}

// FindByMetaLeadID finds a record by its meta lead id
func (a *RecordStoreAdapter) FindByMetaLeadID(ctx context.Context, recordType, metaLeadID string) (*model.CrmRecord, error) {
	return a.postgres.FindRecordByMetaLeadID(ctx, recordType, metaLeadID)
}

// SettingRepoAdapter adapts the PostgresRepo to the SettingRepo interface
type SettingRepoAdapter struct {
	postgres *PostgresRepo
}

// NewSettingRepoAdapter creates a new sync setting repository adapter
func NewSettingRepoAdapter(postgres *PostgresRepo) SettingRepo {
	return &SettingRepoAdapter{postgres: postgres}
}

// FindByName finds a setting by name
func (a *SettingRepoAdapter) FindByName(ctx context.Context, name string) (*model.SyncSetting, error) {
	return a.postgres.FindSettingByName(ctx, name)
}

// FindActiveByCadence finds active settings scheduled at cadence
func (a *SettingRepoAdapter) FindActiveByCadence(ctx context.Context, cadence model.Cadence) ([]model.SyncSetting, error) {
	return a.postgres.FindActiveSettingsByCadence(ctx, cadence)
}

// List returns all settings
func (a *SettingRepoAdapter) List(ctx context.Context) ([]model.SyncSetting, error) {
	return a.postgres.ListSettings(ctx)
}

// Save upserts a setting
func (a *SettingRepoAdapter) Save(ctx context.Context, setting *model.SyncSetting) error {
	return a.postgres.SaveSetting(ctx, setting)
}

// MarkRun stamps the last run time
func (a *SettingRepoAdapter) MarkRun(ctx context.Context, name string, at time.Time) error {
	return a.postgres.MarkSettingRun(ctx, name, at)
}

// PageRepoAdapter adapts the PostgresRepo to the PageRepo interface
type PageRepoAdapter struct {
	postgres *PostgresRepo
}

// NewPageRepoAdapter creates a new page repository adapter
func NewPageRepoAdapter(postgres *PostgresRepo) PageRepo {
	return &PageRepoAdapter{postgres: postgres}
}

// FindByPageID finds a page configuration
func (a *PageRepoAdapter) FindByPageID(ctx context.Context, pageID string) (*model.PageConfig, error) {
	return a.postgres.FindPageConfig(ctx, pageID)
}

// Save upserts a page configuration
func (a *PageRepoAdapter) Save(ctx context.Context, page *model.PageConfig) error {
	return a.postgres.SavePageConfig(ctx, page)
}

// NoteRepoAdapter adapts the PostgresRepo to the NoteRepo interface
type NoteRepoAdapter struct {
	postgres *PostgresRepo
}

// NewNoteRepoAdapter creates a new note repository adapter
func NewNoteRepoAdapter(postgres *PostgresRepo) NoteRepo {
	return &NoteRepoAdapter{postgres: postgres}
}

// Save saves a note
func (a *NoteRepoAdapter) Save(ctx context.Context, note *model.SyncNote) error {
	return a.postgres.SaveNote(ctx, note)
}

// List lists the notes of a record
func (a *NoteRepoAdapter) List(ctx context.Context, recordType, metaLeadID string) ([]model.SyncNote, error) {
	return a.postgres.ListNotes(ctx, recordType, metaLeadID)
}

// --- ExhaustedTriggerRepo Adapter ---

// ExhaustedTriggerRepoAdapter adapts the PostgresRepo to the ExhaustedTriggerRepo interface
type ExhaustedTriggerRepoAdapter struct {
	postgres *PostgresRepo
}

// NewExhaustedTriggerRepoAdapter creates a new exhausted trigger repository adapter
func NewExhaustedTriggerRepoAdapter(postgres *PostgresRepo) ExhaustedTriggerRepo {
	return &ExhaustedTriggerRepoAdapter{postgres: postgres}
}

// Save saves an exhausted trigger
func (a *ExhaustedTriggerRepoAdapter) Save(ctx context.Context, trigger model.ExhaustedTrigger) error {
	return a.postgres.SaveExhaustedTrigger(ctx, trigger)
}

// ListUnresolved lists triggers nobody has handled yet
func (a *ExhaustedTriggerRepoAdapter) ListUnresolved(ctx context.Context, limit int) ([]model.ExhaustedTrigger, error) {
	return a.postgres.ListUnresolvedExhaustedTriggers(ctx, limit)
}

// Resolve marks a trigger as handled
func (a *ExhaustedTriggerRepoAdapter) Resolve(ctx context.Context, id uint, notes string) error {
	return a.postgres.ResolveExhaustedTrigger(ctx, id, notes)
}

// Ensure adapters implement the interfaces
var _ RecordStore = (*RecordStoreAdapter)(nil)
var _ SettingRepo = (*SettingRepoAdapter)(nil)
var _ PageRepo = (*PageRepoAdapter)(nil)
var _ NoteRepo = (*NoteRepoAdapter)(nil)
var _ ExhaustedTriggerRepo = (*ExhaustedTriggerRepoAdapter)(nil)
