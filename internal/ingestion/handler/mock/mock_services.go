package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
)

// MockTriggerService is a mock for the TriggerService interface
type MockTriggerService struct {
	mock.Mock
}

// SubmitCadenceRun mocks the SubmitCadenceRun method
func (m *MockTriggerService) SubmitCadenceRun(ctx context.Context, cadence model.Cadence) error {
	args := m.Called(ctx, cadence)
	return args.Error(0)
}

// SubmitSettingRun mocks the SubmitSettingRun method
func (m *MockTriggerService) SubmitSettingRun(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

// SubmitFormsRefresh mocks the SubmitFormsRefresh method
func (m *MockTriggerService) SubmitFormsRefresh(ctx context.Context, payload model.FormsRefreshPayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

// HandleStatusChange mocks the HandleStatusChange method
func (m *MockTriggerService) HandleStatusChange(ctx context.Context, change model.StatusChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}
