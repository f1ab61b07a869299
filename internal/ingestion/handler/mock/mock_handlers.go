package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
)

// MockTriggerHandler is a mock for the EventHandlerInterface
type MockTriggerHandler struct {
	mock.Mock
}

// HandleEvent mocks the HandleEvent method
func (m *MockTriggerHandler) HandleEvent(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	args := m.Called(ctx, eventType, metadata, rawEvent)
	return args.Error(0)
}
