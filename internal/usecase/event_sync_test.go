package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/config"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	storagemock "gitlab.com/timkado/api/meta-lead-sync/internal/storage/mock"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func dispatchConfig() config.DispatchConfig {
	return config.DispatchConfig{
		MaxAttempts:     3,
		BackoffStep:     5 * time.Second,
		ActionSource:    "system_generated",
		EventSource:     "crm",
		LeadEventSource: "ERP Next",
	}
}

func newTestEventSync(sender EventSender, notes *storagemock.NoteRepoMock, timer *fakeTimer) *EventSync {
	return NewEventSync(sender, notes, dispatchConfig(),
		WithClock(func() time.Time { return fixedNow }),
		WithTimerFactory(func() backoff.Timer { return timer }),
	)
}

func observedCtx() (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return logger.WithLogger(context.Background(), zap.New(core)), logs
}

func TestEventSync_BuildPayload(t *testing.T) {
	s := newTestEventSync(nil, nil, newFakeTimer())
	record := model.NewCrmRecord(&model.CrmRecord{MetaLeadID: "lead-1", Status: "Interested"})

	payload := s.BuildPayload(record)

	require.Len(t, payload.Data, 1)
	ev := payload.Data[0]
	assert.Equal(t, "Interested", ev.EventName)
	assert.Equal(t, fixedNow.Unix(), ev.EventTime)
	assert.Equal(t, "system_generated", ev.ActionSource)
	assert.Equal(t, "lead-1", ev.UserData.LeadID)
	assert.Equal(t, "crm", ev.CustomData.EventSource)
	assert.Equal(t, "ERP Next", ev.CustomData.LeadEventSource)

	b, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{"data":[{"event_name":"Interested","event_time":%d,"action_source":"system_generated",
		"user_data":{"lead_id":"lead-1"},"custom_data":{"event_source":"crm","lead_event_source":"ERP Next"}}]}`, fixedNow.Unix()), string(b))
}

func TestEventSync_DispatchSuccessArchivesNote(t *testing.T) {
	sender := new(eventSenderMock)
	notes := new(storagemock.NoteRepoMock)
	s := newTestEventSync(sender, notes, newFakeTimer())
	page := model.NewPageConfig(&model.PageConfig{PageID: "1001", PixelID: "px-1", PixelAccessToken: "px-token"})
	first := "Ana"
	record := model.NewCrmRecord(&model.CrmRecord{MetaLeadID: "lead-1", Status: "Converted", PageID: "1001"})
	record.FirstName = &first

	response := json.RawMessage(`{"events_received":1}`)
	sender.On("SendEvents", mock.Anything, "px-1", "px-token", mock.AnythingOfType("model.EventPayload")).Return(response, nil).Once()
	notes.On("Save", mock.Anything, mock.MatchedBy(func(n *model.SyncNote) bool {
		return n.Title == AuditNoteTitle &&
			n.MetaLeadID == "lead-1" &&
			n.RecordType == record.RecordType &&
			strings.HasPrefix(n.Content, AuditNoteTitle+" for Lead: Ana<br>Response: {\"events_received\":1}<br>Payload: ")
	})).Return(nil).Once()

	result := s.Dispatch(context.Background(), record, page)

	assert.True(t, result.OK())
	assert.Equal(t, 1, result.Attempts)
	assert.JSONEq(t, `{"events_received":1}`, string(result.Response))
	sender.AssertExpectations(t)
	notes.AssertExpectations(t)
}

func TestEventSync_DispatchTimeoutRetriesLinearly(t *testing.T) {
	sender := new(eventSenderMock)
	timer := newFakeTimer()
	s := newTestEventSync(sender, nil, timer)
	page := model.NewPageConfig(&model.PageConfig{PixelID: "px-1", PixelAccessToken: "px-token"})
	record := model.NewCrmRecord(&model.CrmRecord{MetaLeadID: "lead-2"})

	timeout := fmt.Errorf("%w: POST https://graph.facebook.com/v21.0/px-1/events", apperrors.ErrTimeout)
	sender.On("SendEvents", mock.Anything, "px-1", "px-token", mock.Anything).Return(nil, timeout).Times(3)

	result := s.Dispatch(context.Background(), record, page)

	assert.Equal(t, model.DispatchFailed, result.Status)
	assert.Equal(t, model.DispatchErrTimeout, result.Error)
	assert.Equal(t, "Request timed out after 3 attempts", result.Message)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, timer.Waits())
	sender.AssertExpectations(t)
}

func TestEventSync_DispatchRecoversAfterNetworkError(t *testing.T) {
	sender := new(eventSenderMock)
	notes := new(storagemock.NoteRepoMock)
	s := newTestEventSync(sender, notes, newFakeTimer())
	page := model.NewPageConfig(&model.PageConfig{PixelID: "px-1", PixelAccessToken: "px-token"})
	record := model.NewCrmRecord(&model.CrmRecord{MetaLeadID: "lead-3"})

	sender.On("SendEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: connection reset", apperrors.ErrNetwork)).Once()
	sender.On("SendEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(json.RawMessage(`{"events_received":1}`), nil).Once()
	notes.On("Save", mock.Anything, mock.Anything).Return(nil)

	result := s.Dispatch(context.Background(), record, page)

	assert.True(t, result.OK())
	assert.Equal(t, 2, result.Attempts)
}

func TestEventSync_DispatchAPIErrorIsNotRetried(t *testing.T) {
	sender := new(eventSenderMock)
	timer := newFakeTimer()
	s := newTestEventSync(sender, nil, timer)
	page := model.NewPageConfig(&model.PageConfig{PixelID: "px-1", PixelAccessToken: "bad"})
	record := model.NewCrmRecord(&model.CrmRecord{MetaLeadID: "lead-4"})

	apiErr := &apperrors.APIError{URL: "https://graph.facebook.com/v21.0/px-1/events", Fields: map[string]interface{}{"message": "Invalid OAuth access token.", "code": 190}}
	sender.On("SendEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, apiErr).Once()

	result := s.Dispatch(context.Background(), record, page)

	assert.Equal(t, model.DispatchFailed, result.Status)
	assert.Equal(t, model.DispatchErrAPI, result.Error)
	assert.Contains(t, result.Message, "Invalid OAuth access token.")
	assert.Equal(t, 1, result.Attempts)
	assert.Empty(t, timer.Waits())
	sender.AssertExpectations(t)
}

func TestEventSync_DispatchSkipsWithoutConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		record *model.CrmRecord
		page   *model.PageConfig
		msg    string
	}{
		{"missing meta lead id", model.NewCrmRecord(&model.CrmRecord{MetaLeadID: ""}), model.NewPageConfig(&model.PageConfig{PixelID: "px", PixelAccessToken: "tok"}), "meta lead id is missing"},
		{"missing page", model.NewCrmRecord(&model.CrmRecord{MetaLeadID: "lead-5"}), nil, "pixel id or pixel access token is missing"},
		{"missing pixel token", model.NewCrmRecord(&model.CrmRecord{MetaLeadID: "lead-6"}), model.NewPageConfig(&model.PageConfig{PixelID: "px"}), "pixel id or pixel access token is missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := new(eventSenderMock)
			s := newTestEventSync(sender, nil, newFakeTimer())
			ctx, logs := observedCtx()

			result := s.Dispatch(ctx, tt.record, tt.page)

			assert.Equal(t, model.DispatchSkipped, result.Status)
			assert.Equal(t, model.DispatchErrConfiguration, result.Error)
			assert.Contains(t, result.Message, tt.msg)
			assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
			sender.AssertNotCalled(t, "SendEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestEventSync_NoteFailureDoesNotFailDispatch(t *testing.T) {
	sender := new(eventSenderMock)
	notes := new(storagemock.NoteRepoMock)
	s := newTestEventSync(sender, notes, newFakeTimer())
	page := model.NewPageConfig(&model.PageConfig{PixelID: "px-1", PixelAccessToken: "px-token"})
	record := model.NewCrmRecord(&model.CrmRecord{MetaLeadID: "lead-7"})
	ctx, logs := observedCtx()

	sender.On("SendEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(json.RawMessage(`{}`), nil)
	notes.On("Save", mock.Anything, mock.Anything).Return(errors.New("database is read only"))

	result := s.Dispatch(ctx, record, page)

	assert.True(t, result.OK())
	assert.Equal(t, 1, logs.FilterMessage("Failed to save dispatch audit note").Len())
}

func TestEventSync_DispatchCanceledContext(t *testing.T) {
	sender := new(eventSenderMock)
	s := newTestEventSync(sender, nil, newFakeTimer())
	page := model.NewPageConfig(&model.PageConfig{PixelID: "px-1", PixelAccessToken: "px-token"})
	record := model.NewCrmRecord(&model.CrmRecord{MetaLeadID: "lead-8"})

	ctx, cancel := context.WithCancel(context.Background())
	sender.On("SendEvents", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, fmt.Errorf("%w: dial tcp", apperrors.ErrNetwork)).Once()

	result := s.Dispatch(ctx, record, page)

	assert.Equal(t, model.DispatchFailed, result.Status)
	assert.Equal(t, model.DispatchErrCanceled, result.Error)
	assert.Equal(t, 1, result.Attempts)
}
