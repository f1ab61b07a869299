package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/storage"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
)

// Publisher publishes a trigger back onto the stream.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, headers map[string]string) error
}

// ExhaustedService inspects and replays triggers that ran out of deliveries.
type ExhaustedService struct {
	repo      storage.ExhaustedTriggerRepo
	publisher Publisher
}

// NewExhaustedService creates a new exhausted trigger service
func NewExhaustedService(repo storage.ExhaustedTriggerRepo, publisher Publisher) *ExhaustedService {
	return &ExhaustedService{repo: repo, publisher: publisher}
}

// ListUnresolved returns up to limit unresolved triggers, oldest first.
func (s *ExhaustedService) ListUnresolved(ctx context.Context, limit int) ([]model.ExhaustedTrigger, error) {
	return s.repo.ListUnresolved(ctx, limit)
}

// Resolve marks a trigger resolved without replaying it.
func (s *ExhaustedService) Resolve(ctx context.Context, id uint, notes string) error {
	return s.repo.Resolve(ctx, id, notes)
}

// Replay republishes every unresolved trigger to its source subject and resolves
// the ones that were accepted by the stream. It returns the number replayed.
func (s *ExhaustedService) Replay(ctx context.Context, limit int) (int, error) {
	if s.publisher == nil {
		return 0, errors.New("replay needs a NATS connection")
	}
	log := logger.FromContext(ctx)

	triggers, err := s.repo.ListUnresolved(ctx, limit)
	if err != nil {
		return 0, err
	}

	replayed := 0
	for _, t := range triggers {
		headers := map[string]string{nats.MsgIdHdr: fmt.Sprintf("replay-%d", t.ID)}
		if err := s.publisher.Publish(ctx, t.SourceSubject, []byte(t.Payload), headers); err != nil {
			log.Error("Failed to replay exhausted trigger", zap.Uint("id", t.ID), zap.String("subject", t.SourceSubject), zap.Error(err))
			return replayed, err
		}
		if err := s.repo.Resolve(ctx, t.ID, "replayed"); err != nil {
			return replayed, err
		}
		replayed++
		log.Info("Replayed exhausted trigger", zap.Uint("id", t.ID), zap.String("subject", t.SourceSubject))
	}
	return replayed, nil
}
