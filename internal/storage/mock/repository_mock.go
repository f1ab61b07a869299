package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
)

// --- RecordStore Mock ---

// RecordStoreMock mocks the RecordStore interface
type RecordStoreMock struct {
	mock.Mock
}

// Exists mocks the Exists method
func (m *RecordStoreMock) Exists(ctx context.Context, recordType, metaLeadID string) (bool, error) {
	args := m.Called(ctx, recordType, metaLeadID)
	return args.Bool(0), args.Error(1)
}

// Create mocks the Create method
func (m *RecordStoreMock) Create(ctx context.Context, record *model.CrmRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// FindByMetaLeadID mocks the FindByMetaLeadID method
func (m *RecordStoreMock) FindByMetaLeadID(ctx context.Context, recordType, metaLeadID string) (*model.CrmRecord, error) {
	args := m.Called(ctx, recordType, metaLeadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CrmRecord), args.Error(1)
}

// --- SettingRepo Mock ---

// SettingRepoMock mocks the SettingRepo interface
type SettingRepoMock struct {
	mock.Mock
}

// FindByName mocks the FindByName method
func (m *SettingRepoMock) FindByName(ctx context.Context, name string) (*model.SyncSetting, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SyncSetting), args.Error(1)
}

// FindActiveByCadence mocks the FindActiveByCadence method
func (m *SettingRepoMock) FindActiveByCadence(ctx context.Context, cadence model.Cadence) ([]model.SyncSetting, error) {
	args := m.Called(ctx, cadence)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SyncSetting), args.Error(1)
}

// List mocks the List method
func (m *SettingRepoMock) List(ctx context.Context) ([]model.SyncSetting, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SyncSetting), args.Error(1)
}

// Save mocks the Save method
func (m *SettingRepoMock) Save(ctx context.Context, setting *model.SyncSetting) error {
	args := m.Called(ctx, setting)
	return args.Error(0)
}

// MarkRun mocks the MarkRun method
func (m *SettingRepoMock) MarkRun(ctx context.Context, name string, at time.Time) error {
	args := m.Called(ctx, name, at)
	return args.Error(0)
}

// --- PageRepo Mock ---

// PageRepoMock mocks the PageRepo interface
type PageRepoMock struct {
	mock.Mock
}

// FindByPageID mocks the FindByPageID method
func (m *PageRepoMock) FindByPageID(ctx context.Context, pageID string) (*model.PageConfig, error) {
	args := m.Called(ctx, pageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PageConfig), args.Error(1)
}

// Save mocks the Save method
func (m *PageRepoMock) Save(ctx context.Context, page *model.PageConfig) error {
	args := m.Called(ctx, page)
	return args.Error(0)
}

// --- NoteRepo Mock ---

// NoteRepoMock mocks the NoteRepo interface
type NoteRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *NoteRepoMock) Save(ctx context.Context, note *model.SyncNote) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

// List mocks the List method
func (m *NoteRepoMock) List(ctx context.Context, recordType, metaLeadID string) ([]model.SyncNote, error) {
	args := m.Called(ctx, recordType, metaLeadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SyncNote), args.Error(1)
}

// --- ExhaustedTriggerRepo Mock ---

// ExhaustedTriggerRepoMock mocks the ExhaustedTriggerRepo interface
type ExhaustedTriggerRepoMock struct {
	mock.Mock
}

// Save mocks the Save method
func (m *ExhaustedTriggerRepoMock) Save(ctx context.Context, trigger model.ExhaustedTrigger) error {
	args := m.Called(ctx, trigger)
	return args.Error(0)
}

// ListUnresolved mocks the ListUnresolved method
func (m *ExhaustedTriggerRepoMock) ListUnresolved(ctx context.Context, limit int) ([]model.ExhaustedTrigger, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ExhaustedTrigger), args.Error(1)
}

// Resolve mocks the Resolve method
func (m *ExhaustedTriggerRepoMock) Resolve(ctx context.Context, id uint, notes string) error {
	args := m.Called(ctx, id, notes)
	return args.Error(0)
}
