package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/config"
	"gitlab.com/timkado/api/meta-lead-sync/internal/jetstream"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/observer"
	"gitlab.com/timkado/api/meta-lead-sync/internal/storage"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/utils"
)

const (
	consumerType   = "trigger"
	defaultAckWait = 30 * time.Second
)

// AckNakAction represents the decision made after processing a message
type AckNakAction int

const (
	ActionAck       AckNakAction = iota // Message processed successfully, ACK it
	ActionNak                           // Exhausted record could not be stored, NAK immediately
	ActionNakDelay                      // Retryable error, NAK with calculated delay
	ActionExhausted                     // Max deliveries reached or fatal error, store then ACK
)

// TriggerConsumer consumes sync triggers (scheduled runs, manual runs, status
// changes and form refreshes) from a single JetStream stream.
type TriggerConsumer struct {
	client    jetstream.ClientInterface
	router    RouterInterface
	exhausted storage.ExhaustedTriggerRepo
	cfg       config.ConsumerNatsConfig
	ctx       context.Context
	cancel    context.CancelFunc
	sub       *nats.Subscription
}

// NewTriggerConsumer creates the trigger consumer. Messages that run out of
// deliveries are written to exhausted.
func NewTriggerConsumer(client jetstream.ClientInterface, router RouterInterface, exhausted storage.ExhaustedTriggerRepo, cfg config.ConsumerNatsConfig) *TriggerConsumer {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logger.WithLogger(ctx, logger.Log.With(zap.String("consumer", cfg.Consumer)))

	return &TriggerConsumer{
		client:    client,
		router:    router,
		exhausted: exhausted,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// streamSubjects returns every base subject together with its one-token extension,
// so both "v1.sync.run" and "v1.sync.run.hourly" are captured.
func streamSubjects(subjects []string) []string {
	out := make([]string, 0, len(subjects)*2)
	for _, subject := range subjects {
		out = append(out, subject, fmt.Sprintf("%s.*", subject))
	}
	return out
}

// determineAckNakAction decides the fate of a message based on processing result and metadata.
// It returns the action to take and the delay duration if applicable.
func determineAckNakAction(
	processingErr error,
	metadata *nats.MsgMetadata,
	maxDeliver int,
	nakBaseDelay time.Duration,
	nakMaxDelay time.Duration,
) (action AckNakAction, delay time.Duration) {
	if processingErr == nil {
		return ActionAck, 0
	}

	isRetryable := apperrors.IsRetryable(processingErr)
	numDelivered := metadata.NumDelivered

	if numDelivered >= uint64(maxDeliver) || !isRetryable {
		return ActionExhausted, 0
	}

	// base * 2^(attempt-1), capped
	delay = nakBaseDelay
	if numDelivered > 1 {
		delay = nakBaseDelay * (1 << (numDelivered - 1))
	}
	if delay > nakMaxDelay {
		delay = nakMaxDelay
	}
	return ActionNakDelay, delay
}

// exhaustedRecord builds the row stored for a message that will not be redelivered.
func exhaustedRecord(msg *nats.Msg, msgID string, metadata *nats.MsgMetadata, processingErr error) model.ExhaustedTrigger {
	errorType := "fatal"
	if apperrors.IsRetryable(processingErr) {
		errorType = "retryable"
	}
	return model.ExhaustedTrigger{
		SourceSubject: msg.Subject,
		MessageID:     msgID,
		ErrorType:     errorType,
		LastError:     processingErr.Error(),
		DeliveryCount: int(metadata.NumDelivered),
		Payload:       string(msg.Data),
	}
}

// inProgressInterval is how often a message still being handled has its ack deadline extended.
func inProgressInterval(ackWait time.Duration) time.Duration {
	if ackWait <= 0 {
		ackWait = defaultAckWait
	}
	return ackWait / 2
}

// keepInProgress calls touch every interval until the returned stop func is called.
// stop waits for the heartbeat goroutine and is safe to call more than once.
func keepInProgress(ctx context.Context, interval time.Duration, touch func() error) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := touch(); err != nil {
					logger.FromContext(ctx).Warn("Failed to extend ack deadline", zap.Error(err))
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func (c *TriggerConsumer) handleMessage(msg *nats.Msg) {
	startTime := utils.Now()
	eventType, found := model.MapToBaseEventType(msg.Subject)

	defer func() {
		observer.ObserveEventProcessingDuration(string(eventType), consumerType, time.Since(startTime))

		if r := recover(); r != nil {
			log := logger.FromContext(c.ctx)
			log.Error("[panic] Recovered from panic in message handler",
				zap.Any("panic", r),
				zap.String("subject", msg.Subject),
				zap.Duration("duration", time.Since(startTime)),
				zap.Stack("stack"),
			)
			observer.IncEventsFailed(string(eventType), consumerType)
			observer.IncEventProcessingAction(string(eventType), consumerType, "panic_nak", "panic")
			if nakErr := msg.Nak(); nakErr != nil {
				log.Error("Failed to NAK message after panic", zap.Error(nakErr))
			}
		}
	}()

	log := logger.FromContext(c.ctx)

	var msgID string
	if msg.Header != nil {
		msgID = msg.Header.Get(nats.MsgIdHdr)
	}

	if !found {
		// Unknown subjects are terminated so they are not redelivered.
		log.Warn("Unknown event type", zap.String("subject", msg.Subject))
		if termErr := msg.Term(); termErr != nil {
			log.Error("Failed to TERM message for unknown event type", zap.Error(termErr))
		}
		observer.IncEventProcessingAction(string(eventType), consumerType, "term_unknown_type", "unknown_event_type")
		return
	}

	metadata, err := msg.Metadata()
	if err != nil {
		log.Error("Failed to read message metadata", zap.Error(err), zap.Duration("duration", time.Since(startTime)))
		if nakErr := msg.Nak(); nakErr != nil {
			log.Error("Failed to NAK message", zap.Error(nakErr))
		}
		observer.IncEventProcessingAction(string(eventType), consumerType, "nak_metadata_error", "metadata")
		return
	}
	if msgID == "" {
		msgID = fmt.Sprintf("msg-%d", metadata.Sequence.Stream)
	}

	internalMetadata := &model.MessageMetadata{
		StreamSequence:   metadata.Sequence.Stream,
		ConsumerSequence: metadata.Sequence.Consumer,
		NumDelivered:     metadata.NumDelivered,
		NumPending:       metadata.NumPending,
		Timestamp:        metadata.Timestamp,
		Stream:           metadata.Stream,
		Consumer:         metadata.Consumer,
		Domain:           metadata.Domain,
		MessageID:        msgID,
		MessageSubject:   msg.Subject,
	}

	observer.IncEventsReceived(string(eventType), consumerType)

	msgCtx := logger.WithLogger(c.ctx, log.With(
		zap.String("nats_message_id", msgID),
		zap.Uint64("stream_sequence", metadata.Sequence.Stream),
		zap.Uint64("num_delivered", metadata.NumDelivered),
		zap.String("subject", msg.Subject),
	))

	// routing may outlast AckWait, so the message is kept in progress until it returns
	stopHeartbeat := keepInProgress(msgCtx, inProgressInterval(c.cfg.AckWait), func() error { return msg.InProgress() })
	defer stopHeartbeat()
	processingErr := c.router.Route(msgCtx, internalMetadata, msg.Data)
	stopHeartbeat()
	enhancedLog := logger.FromContext(msgCtx)

	action, nakDelay := determineAckNakAction(processingErr, metadata, c.cfg.MaxDeliver, c.cfg.NakBaseDelay, c.cfg.NakMaxDelay)

	errorType := "none"
	if processingErr != nil {
		errorType = observer.SanitizeErrorType(processingErr.Error())
	}

	switch action {
	case ActionAck:
		enhancedLog.Info("Successfully processed message", zap.Duration("duration", time.Since(startTime)))
		observer.IncEventsProcessed(string(eventType), consumerType)
		observer.IncEventProcessingAction(string(eventType), consumerType, "ack_success", errorType)
		if ackErr := msg.Ack(); ackErr != nil {
			enhancedLog.Error("Failed to ACK message after successful processing", zap.Error(ackErr))
		}

	case ActionNakDelay:
		enhancedLog.Info("NAKing message with delay for redelivery (retryable error)",
			zap.Error(processingErr),
			zap.Int("max_deliver", c.cfg.MaxDeliver),
			zap.Duration("nak_delay", nakDelay),
			zap.Duration("duration", time.Since(startTime)),
		)
		observer.IncEventsFailed(string(eventType), consumerType)
		observer.IncEventProcessingAction(string(eventType), consumerType, "nak_retry", errorType)
		if nakErr := msg.NakWithDelay(nakDelay); nakErr != nil {
			enhancedLog.Error("Failed to NAK message with delay", zap.Error(nakErr))
		}

	case ActionExhausted:
		record := exhaustedRecord(msg, msgID, metadata, processingErr)
		enhancedLog.Warn("Trigger exhausted, storing for inspection",
			zap.Error(processingErr),
			zap.String("error_type", record.ErrorType),
			zap.Int("max_deliver", c.cfg.MaxDeliver),
			zap.Duration("duration", time.Since(startTime)),
		)
		observer.IncEventsFailed(string(eventType), consumerType)

		if saveErr := c.exhausted.Save(msgCtx, record); saveErr != nil {
			enhancedLog.Error("Failed to store exhausted trigger, NAKing message", zap.Error(saveErr))
			observer.IncEventProcessingAction(string(eventType), consumerType, "nak_exhausted_store_fail", "exhausted_store_fail")
			if nakErr := msg.Nak(); nakErr != nil {
				enhancedLog.Error("Failed to NAK message after store error", zap.Error(nakErr))
			}
			return
		}

		observer.IncEventProcessingAction(string(eventType), consumerType, "exhausted_stored_ack", errorType)
		if ackErr := msg.Ack(); ackErr != nil {
			enhancedLog.Error("Failed to ACK message after storing exhausted trigger", zap.Error(ackErr))
		}
	}
}

// Setup configures the NATS stream and consumer for trigger messages
func (c *TriggerConsumer) Setup() error {
	log := logger.FromContext(c.ctx)
	log.Info("Setting up TriggerConsumer...", zap.String("stream", c.cfg.Stream))

	subjects := streamSubjects(c.cfg.SubjectList)

	streamCfg := &nats.StreamConfig{
		Name:       c.cfg.Stream,
		Subjects:   subjects,
		Storage:    nats.FileStorage,
		Retention:  nats.LimitsPolicy,
		MaxAge:     time.Duration(c.cfg.MaxAge*24) * time.Hour,
		Duplicates: 2 * time.Minute,
	}

	if err := c.client.SetupStream(c.ctx, streamCfg); err != nil {
		log.Error("Failed to setup trigger stream", zap.Error(err))
		return fmt.Errorf("failed to setup trigger stream '%s': %w", c.cfg.Stream, err)
	}

	consumerCfg := &nats.ConsumerConfig{
		Durable:        c.cfg.Consumer,
		DeliverGroup:   c.cfg.QueueGroup,
		FilterSubjects: subjects,
		AckPolicy:      nats.AckExplicitPolicy,
		DeliverSubject: nats.NewInbox(),
		MaxDeliver:     c.cfg.MaxDeliver,
		AckWait:        c.cfg.AckWait,
		MaxAckPending:  100,
		ReplayPolicy:   nats.ReplayInstantPolicy,
		DeliverPolicy:  nats.DeliverAllPolicy,
	}

	if err := c.client.SetupConsumer(c.ctx, c.cfg.Stream, consumerCfg); err != nil {
		log.Error("Failed to setup trigger consumer", zap.Error(err))
		return fmt.Errorf("failed to setup trigger consumer '%s' for stream '%s': %w", c.cfg.Consumer, c.cfg.Stream, err)
	}

	log.Info("TriggerConsumer setup complete", zap.Strings("subjects", subjects))
	return nil
}

// Start subscribes to the NATS stream
func (c *TriggerConsumer) Start() error {
	log := logger.FromContext(c.ctx)

	sub, err := c.client.SubscribePush("v1.>", c.cfg.Consumer, c.cfg.QueueGroup, c.cfg.Stream, c.handleMessage)
	if err != nil {
		log.Error("Failed to subscribe trigger consumer", zap.Error(err), zap.String("group", c.cfg.QueueGroup))
		return fmt.Errorf("failed to subscribe trigger consumer '%s': %w", c.cfg.Consumer, err)
	}
	c.sub = sub
	log.Info("TriggerConsumer subscribed successfully")
	return nil
}

// Stop drains the subscription and cancels the consumer context
func (c *TriggerConsumer) Stop() {
	log := logger.FromContext(c.ctx)

	if c.sub != nil {
		if err := c.sub.Drain(); err != nil {
			log.Error("Error draining trigger subscription", zap.Error(err))
		}
	}
	if c.cancel != nil {
		c.cancel()
	}
	log.Info("TriggerConsumer stopped")
}
