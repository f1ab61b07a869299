package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"gitlab.com/timkado/api/meta-lead-sync/internal/graph"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
)

type tokenProviderMock struct {
	mock.Mock
}

func (m *tokenProviderMock) GetPageAccessToken(ctx context.Context, creds model.PageCredentials) (string, error) {
	args := m.Called(ctx, creds)
	return args.String(0), args.Error(1)
}

// leadWalkerMock yields the batches registered per form before returning the summary.
type leadWalkerMock struct {
	mock.Mock
	batches map[string][][]model.RawLead
}

func (m *leadWalkerMock) Walk(ctx context.Context, token, formID string, yield func(ctx context.Context, leads []model.RawLead)) (graph.WalkSummary, error) {
	args := m.Called(ctx, token, formID)
	for _, batch := range m.batches[formID] {
		yield(ctx, batch)
	}
	return args.Get(0).(graph.WalkSummary), args.Error(1)
}

type formListerMock struct {
	mock.Mock
}

func (m *formListerMock) FetchLeadForms(ctx context.Context, token, pageID string) ([]model.LeadForm, error) {
	args := m.Called(ctx, token, pageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.LeadForm), args.Error(1)
}

type eventSenderMock struct {
	mock.Mock
}

func (m *eventSenderMock) SendEvents(ctx context.Context, pixelID, token string, payload model.EventPayload) (json.RawMessage, error) {
	args := m.Called(ctx, pixelID, token, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(json.RawMessage), args.Error(1)
}

type dispatcherMock struct {
	mock.Mock
}

func (m *dispatcherMock) Dispatch(ctx context.Context, record *model.CrmRecord, page *model.PageConfig) model.DispatchResult {
	args := m.Called(ctx, record, page)
	return args.Get(0).(model.DispatchResult)
}

type ingestorMock struct {
	mock.Mock
}

func (m *ingestorMock) Ingest(ctx context.Context, leads []model.RawLead, ic IngestContext) IngestResult {
	args := m.Called(ctx, leads, ic)
	return args.Get(0).(IngestResult)
}

type runExecutorMock struct {
	mock.Mock
}

func (m *runExecutorMock) RunCadence(ctx context.Context, cadence model.Cadence) ([]*RunReport, error) {
	args := m.Called(ctx, cadence)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*RunReport), args.Error(1)
}

func (m *runExecutorMock) RunSetting(ctx context.Context, name string) (*RunReport, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RunReport), args.Error(1)
}

type formRefresherMock struct {
	mock.Mock
}

func (m *formRefresherMock) RefreshForms(ctx context.Context, name string, opts RefreshOptions) (*model.SyncSetting, error) {
	args := m.Called(ctx, name, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SyncSetting), args.Error(1)
}

type syncWorkerMock struct {
	mock.Mock
}

func (m *syncWorkerMock) SubmitTask(taskData SyncTaskData) error {
	args := m.Called(taskData)
	return args.Error(0)
}

func (m *syncWorkerMock) Stop() {
	m.Called()
}

// fakeTimer fires immediately and records every wait it was asked for.
type fakeTimer struct {
	mu    sync.Mutex
	waits []time.Duration
	c     chan time.Time
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{c: make(chan time.Time, 1)}
}

func (t *fakeTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.waits = append(t.waits, d)
	t.mu.Unlock()
	t.c <- time.Now()
}

func (t *fakeTimer) Stop() {}

func (t *fakeTimer) C() <-chan time.Time {
	return t.c
}

func (t *fakeTimer) Waits() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.waits...)
}
