package ingestion

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/config"
	clientmock "gitlab.com/timkado/api/meta-lead-sync/internal/jetstream/mock"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	storagemock "gitlab.com/timkado/api/meta-lead-sync/internal/storage/mock"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
)

// MockHandler is a mock of the EventHandler function
type MockHandler struct {
	mock.Mock
}

// Handle implements the EventHandler function signature
func (m *MockHandler) Handle(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
	args := m.Called(ctx, eventType, metadata, rawEvent)
	return args.Error(0)
}

func testConsumerConfig() config.ConsumerNatsConfig {
	return config.ConsumerNatsConfig{
		Stream:       "lead_sync_triggers",
		Consumer:     "lead_sync_worker",
		QueueGroup:   "lead_sync",
		SubjectList:  []string{"v1.sync.run", "v1.leads.status"},
		MaxAge:       7,
		MaxDeliver:   5,
		NakBaseDelay: time.Second,
		NakMaxDelay:  16 * time.Second,
		AckWait:      30 * time.Second,
	}
}

func setupTest(t *testing.T) (*clientmock.ClientMock, *storagemock.ExhaustedTriggerRepoMock, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	previous := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = previous })

	return new(clientmock.ClientMock), new(storagemock.ExhaustedTriggerRepoMock), logs
}

func TestTriggerConsumer_Setup(t *testing.T) {
	client, exhausted, _ := setupTest(t)
	cfg := testConsumerConfig()
	consumer := NewTriggerConsumer(client, NewRouter(), exhausted, cfg)

	expectedSubjects := []string{"v1.sync.run", "v1.sync.run.*", "v1.leads.status", "v1.leads.status.*"}

	client.On("SetupStream", mock.Anything, mock.MatchedBy(func(sc *nats.StreamConfig) bool {
		return sc.Name == cfg.Stream &&
			sc.Storage == nats.FileStorage &&
			sc.Retention == nats.LimitsPolicy &&
			sc.MaxAge == 7*24*time.Hour &&
			assert.ElementsMatch(t, expectedSubjects, sc.Subjects)
	})).Return(nil)
	client.On("SetupConsumer", mock.Anything, cfg.Stream, mock.MatchedBy(func(cc *nats.ConsumerConfig) bool {
		return cc.Durable == cfg.Consumer &&
			cc.DeliverGroup == cfg.QueueGroup &&
			cc.DeliverSubject != "" &&
			cc.AckPolicy == nats.AckExplicitPolicy &&
			cc.MaxDeliver == cfg.MaxDeliver &&
			cc.AckWait == cfg.AckWait &&
			cc.DeliverPolicy == nats.DeliverAllPolicy &&
			assert.ElementsMatch(t, expectedSubjects, cc.FilterSubjects)
	})).Return(nil)

	require.NoError(t, consumer.Setup())
	client.AssertExpectations(t)
}

func TestTriggerConsumer_Setup_StreamError(t *testing.T) {
	client, exhausted, _ := setupTest(t)
	consumer := NewTriggerConsumer(client, NewRouter(), exhausted, testConsumerConfig())

	expectedErr := errors.New("stream setup failed")
	client.On("SetupStream", mock.Anything, mock.AnythingOfType("*nats.StreamConfig")).Return(expectedErr)

	err := consumer.Setup()

	require.Error(t, err)
	assert.ErrorIs(t, err, expectedErr)
	assert.Contains(t, err.Error(), "failed to setup trigger stream")
	client.AssertNotCalled(t, "SetupConsumer", mock.Anything, mock.Anything, mock.Anything)
}

func TestTriggerConsumer_Setup_ConsumerError(t *testing.T) {
	client, exhausted, _ := setupTest(t)
	cfg := testConsumerConfig()
	consumer := NewTriggerConsumer(client, NewRouter(), exhausted, cfg)

	expectedErr := errors.New("consumer setup failed")
	client.On("SetupStream", mock.Anything, mock.AnythingOfType("*nats.StreamConfig")).Return(nil)
	client.On("SetupConsumer", mock.Anything, cfg.Stream, mock.AnythingOfType("*nats.ConsumerConfig")).Return(expectedErr)

	err := consumer.Setup()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to setup trigger consumer")
	client.AssertExpectations(t)
}

func TestTriggerConsumer_StartStop(t *testing.T) {
	client, exhausted, logs := setupTest(t)
	cfg := testConsumerConfig()
	consumer := NewTriggerConsumer(client, NewRouter(), exhausted, cfg)

	client.On("SubscribePush", "v1.>", cfg.Consumer, cfg.QueueGroup, cfg.Stream, mock.AnythingOfType("nats.MsgHandler")).Return(nil, nil)

	require.NoError(t, consumer.Start())
	consumer.Stop()

	assert.Error(t, consumer.ctx.Err(), "context should be cancelled after Stop")
	assert.Equal(t, 1, logs.FilterMessage("TriggerConsumer stopped").Len())
	client.AssertExpectations(t)
}

func TestTriggerConsumer_Start_Error(t *testing.T) {
	client, exhausted, _ := setupTest(t)
	cfg := testConsumerConfig()
	consumer := NewTriggerConsumer(client, NewRouter(), exhausted, cfg)

	client.On("SubscribePush", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("no responders"))

	err := consumer.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to subscribe trigger consumer")
	assert.Nil(t, consumer.sub)
}

func TestTriggerConsumer_HandleMessage_UnknownSubjectIsNotRouted(t *testing.T) {
	client, exhausted, logs := setupTest(t)
	router := new(MockHandler)
	r := NewRouter()
	r.RegisterDefault(router.Handle)
	consumer := NewTriggerConsumer(client, r, exhausted, testConsumerConfig())

	consumer.handleMessage(&nats.Msg{Subject: "v2.unknown.subject", Data: []byte(`{}`)})

	router.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1, logs.FilterMessage("Unknown event type").Len())
}

func TestTriggerConsumer_HandleMessage_MissingMetadataIsNotRouted(t *testing.T) {
	client, exhausted, logs := setupTest(t)
	handler := new(MockHandler)
	r := NewRouter()
	r.Register(model.V1SyncRun, handler.Handle)
	consumer := NewTriggerConsumer(client, r, exhausted, testConsumerConfig())

	// A core NATS message has no JetStream reply subject to read metadata from.
	consumer.handleMessage(&nats.Msg{Subject: "v1.sync.run.hourly", Data: []byte(`{}`)})

	handler.AssertNotCalled(t, "Handle", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1, logs.FilterMessage("Failed to read message metadata").Len())
	exhausted.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestDetermineAckNakAction(t *testing.T) {
	baseDelay := 1 * time.Second
	maxDelay := 6 * time.Second
	maxDeliver := 5
	retryable := apperrors.NewRetryable(errors.New("connection refused"), "submit run")

	tests := []struct {
		name           string
		processingErr  error
		numDelivered   uint64
		expectedAction AckNakAction
		expectedDelay  time.Duration
	}{
		{"success", nil, 1, ActionAck, 0},
		{"retryable first attempt", retryable, 1, ActionNakDelay, 1 * time.Second},
		{"retryable second attempt", retryable, 2, ActionNakDelay, 2 * time.Second},
		{"retryable third attempt", retryable, 3, ActionNakDelay, 4 * time.Second},
		{"retryable delay capped", retryable, 4, ActionNakDelay, 6 * time.Second},
		{"retryable max deliver reached", retryable, 5, ActionExhausted, 0},
		{"fatal error first attempt", apperrors.NewFatal(errors.New("bad json"), "decode"), 1, ActionExhausted, 0},
		{"unclassified error", errors.New("boom"), 1, ActionExhausted, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metadata := &nats.MsgMetadata{NumDelivered: tt.numDelivered}
			action, delay := determineAckNakAction(tt.processingErr, metadata, maxDeliver, baseDelay, maxDelay)
			assert.Equal(t, tt.expectedAction, action)
			assert.Equal(t, tt.expectedDelay, delay)
		})
	}
}

func TestExhaustedRecord(t *testing.T) {
	msg := &nats.Msg{Subject: "v1.sync.setting.main", Data: []byte(`{"setting":"main"}`)}
	meta := &nats.MsgMetadata{NumDelivered: 5}

	rec := exhaustedRecord(msg, "run-1", meta, apperrors.NewRetryable(errors.New("pool overload"), "submit setting task"))
	assert.Equal(t, "v1.sync.setting.main", rec.SourceSubject)
	assert.Equal(t, "run-1", rec.MessageID)
	assert.Equal(t, "retryable", rec.ErrorType)
	assert.Equal(t, 5, rec.DeliveryCount)
	assert.Equal(t, `{"setting":"main"}`, rec.Payload)
	assert.Contains(t, rec.LastError, "pool overload")

	rec = exhaustedRecord(msg, "run-2", meta, errors.New("plain"))
	assert.Equal(t, "fatal", rec.ErrorType)
}

func TestStreamSubjects(t *testing.T) {
	assert.Equal(t,
		[]string{"v1.sync.run", "v1.sync.run.*", "v1.forms.refresh", "v1.forms.refresh.*"},
		streamSubjects([]string{"v1.sync.run", "v1.forms.refresh"}),
	)
	assert.Empty(t, streamSubjects(nil))
}

func TestInProgressInterval(t *testing.T) {
	assert.Equal(t, 15*time.Second, inProgressInterval(30*time.Second))
	assert.Equal(t, time.Second, inProgressInterval(2*time.Second))
	assert.Equal(t, 15*time.Second, inProgressInterval(0))
}

func TestKeepInProgress_TouchesUntilStopped(t *testing.T) {
	_, _, _ = setupTest(t)
	var touches atomic.Int32

	stop := keepInProgress(context.Background(), 10*time.Millisecond, func() error {
		touches.Add(1)
		return nil
	})

	assert.Eventually(t, func() bool { return touches.Load() >= 3 }, time.Second, 5*time.Millisecond)
	stop()
	stopped := touches.Load()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, touches.Load(), "no touches after stop")
	stop()
}

func TestKeepInProgress_LogsFailedTouch(t *testing.T) {
	_, _, logs := setupTest(t)
	ctx := logger.WithLogger(context.Background(), logger.Log)

	stop := keepInProgress(ctx, 10*time.Millisecond, func() error {
		return nats.ErrMsgNoReply
	})
	defer stop()

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("Failed to extend ack deadline").Len() > 0
	}, time.Second, 5*time.Millisecond)
}
