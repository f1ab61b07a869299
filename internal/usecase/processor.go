package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/config"
	"gitlab.com/timkado/api/meta-lead-sync/internal/ingestion"
	"gitlab.com/timkado/api/meta-lead-sync/internal/ingestion/handler"
	"gitlab.com/timkado/api/meta-lead-sync/internal/jetstream"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/storage"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/utils"
)

// Processor wires the trigger consumer, router and handler together
type Processor struct {
	consumer       ingestion.ConsumerInterface
	eventRouter    ingestion.RouterInterface
	triggerHandler handler.EventHandlerInterface
}

// NewProcessor creates a new processor with all components wired up
func NewProcessor(service handler.TriggerService, jsClient jetstream.ClientInterface, exhausted storage.ExhaustedTriggerRepo, cfg *config.Config) *Processor {
	router := ingestion.NewRouter()
	return newProcessor(
		ingestion.NewTriggerConsumer(jsClient, router, exhausted, cfg.NATS.Triggers),
		router,
		handler.NewTriggerHandler(service),
	)
}

func newProcessor(consumer ingestion.ConsumerInterface, router ingestion.RouterInterface, triggerHandler handler.EventHandlerInterface) *Processor {
	return &Processor{
		consumer:       consumer,
		eventRouter:    router,
		triggerHandler: triggerHandler,
	}
}

// GetRouter returns the processor's event router.
func (p *Processor) GetRouter() ingestion.RouterInterface {
	return p.eventRouter
}

// Setup registers the trigger handlers and sets up the consumer
func (p *Processor) Setup() error {
	for _, eventType := range model.KnownEventTypes() {
		p.eventRouter.Register(eventType, p.triggerHandler.HandleEvent)
	}

	p.eventRouter.RegisterDefault(func(ctx context.Context, eventType model.EventType, metadata *model.MessageMetadata, rawEvent []byte) error {
		logger.FromContext(ctx).Warn("Unhandled trigger type",
			zap.String("type", string(eventType)),
			zap.String("subject", metadata.MessageSubject),
		)
		return nil
	})

	if err := p.consumer.Setup(); err != nil {
		return fmt.Errorf("failed to setup trigger consumer: %w", err)
	}

	logger.Log.Info("Processor setup complete")
	return nil
}

// Start starts the trigger consumer
func (p *Processor) Start() error {
	logger.Log.Info("Starting trigger processor...")

	defer utils.RecoverWithLog(context.Background(), "processor start")

	if err := p.consumer.Start(); err != nil {
		return fmt.Errorf("failed to start trigger consumer: %w", err)
	}

	logger.Log.Info("Trigger consumer started successfully")
	return nil
}

// Stop stops the trigger consumer
func (p *Processor) Stop() {
	logger.Log.Info("Stopping trigger processor...")
	p.consumer.Stop()
	logger.Log.Info("Trigger consumer stopped")
}
