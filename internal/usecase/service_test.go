package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/config"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	storagemock "gitlab.com/timkado/api/meta-lead-sync/internal/storage/mock"
)

func TestSyncService_SubmitCadenceRun(t *testing.T) {
	worker := new(syncWorkerMock)
	svc := NewSyncService(worker, nil)

	worker.On("SubmitTask", mock.MatchedBy(func(task SyncTaskData) bool {
		return task.Kind == TaskCadenceRun && task.Cadence == model.CadenceWeekly && task.Ctx != nil
	})).Return(nil).Once()

	require.NoError(t, svc.SubmitCadenceRun(context.Background(), model.CadenceWeekly))
	worker.AssertExpectations(t)
}

func TestSyncService_InvalidCadenceIsFatal(t *testing.T) {
	worker := new(syncWorkerMock)
	svc := NewSyncService(worker, nil)

	err := svc.SubmitCadenceRun(context.Background(), model.Cadence("yearly"))

	assert.True(t, apperrors.IsFatal(err))
	assert.True(t, apperrors.IsValidationError(err))
	worker.AssertNotCalled(t, "SubmitTask", mock.Anything)
}

func TestSyncService_SubmitSettingRun(t *testing.T) {
	worker := new(syncWorkerMock)
	svc := NewSyncService(worker, nil)

	worker.On("SubmitTask", mock.MatchedBy(func(task SyncTaskData) bool {
		return task.Kind == TaskSettingRun && task.Setting == "Spring campaign"
	})).Return(errors.New("sync pool overload: too many goroutines blocked on submit or Nonblocking is set")).Once()

	err := svc.SubmitSettingRun(context.Background(), "Spring campaign")
	assert.True(t, apperrors.IsRetryable(err))

	err = svc.SubmitSettingRun(context.Background(), "")
	assert.True(t, apperrors.IsFatal(err))
	worker.AssertNumberOfCalls(t, "SubmitTask", 1)
}

func TestSyncService_SubmitFormsRefresh(t *testing.T) {
	worker := new(syncWorkerMock)
	svc := NewSyncService(worker, nil)

	worker.On("SubmitTask", mock.MatchedBy(func(task SyncTaskData) bool {
		return task.Kind == TaskFormsRefresh &&
			task.Setting == "Spring campaign" &&
			task.Refresh == RefreshOptions{ForceFetch: true, RebuildMappings: true}
	})).Return(nil).Once()

	err := svc.SubmitFormsRefresh(context.Background(), model.FormsRefreshPayload{Setting: "Spring campaign", ForceFetch: true, RebuildMappings: true})
	require.NoError(t, err)
	worker.AssertExpectations(t)
}

func TestSyncService_HandleStatusChange(t *testing.T) {
	records := new(storagemock.RecordStoreMock)
	pages := new(storagemock.PageRepoMock)
	dispatcher := new(dispatcherMock)

	enabled := NewSyncService(nil, NewStatusTrigger(records, pages, dispatcher, config.SyncConfig{RecordTypes: []string{"Lead"}, SchedulerEnabled: true}))
	disabled := NewSyncService(nil, NewStatusTrigger(records, pages, dispatcher, config.SyncConfig{RecordTypes: []string{"Lead"}}))

	change := model.NewStatusChange(&model.StatusChange{
		RecordType: "Lead",
		Record:     model.RecordSnapshot{MetaLeadID: "lead-9", Status: "Converted", PageID: "1001"},
		Previous:   &model.RecordSnapshot{MetaLeadID: "lead-9", Status: "Open", PageID: "1001"},
	})
	pages.On("FindByPageID", mock.Anything, "1001").Return(model.NewPageConfig(), nil)
	dispatcher.On("Dispatch", mock.Anything, mock.Anything, mock.Anything).Return(model.DispatchResult{Status: model.DispatchSent})

	require.NoError(t, enabled.HandleStatusChange(context.Background(), change))

	err := disabled.HandleStatusChange(context.Background(), change)
	assert.True(t, apperrors.IsFatal(err))
	assert.ErrorIs(t, err, ErrSchedulerDisabled)
	dispatcher.AssertNumberOfCalls(t, "Dispatch", 1)
}
