package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/panjf2000/ants/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/observer"
	"gitlab.com/timkado/api/meta-lead-sync/internal/usecase"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
)

type simulateOptions struct {
	Subjects    []string
	Rate        int
	Duration    time.Duration
	Concurrency int
	BatchSize   int
	MetricsPort int
}

// simulatedMessage is one generated trigger.
type simulatedMessage struct {
	BaseSubject string
	Subject     string
	Payload     []byte
}

// simulationBatch is the unit handed to a publishing worker.
type simulationBatch struct {
	Messages  []simulatedMessage
	Publisher usecase.Publisher
}

type simulationStats struct {
	attempted atomic.Int64
	published atomic.Int64
	failed    atomic.Int64
}

func newSimulateCmd(e *env) *cobra.Command {
	opts := simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Publish fake triggers at a fixed rate for load checks",
		Long: `Publish fake triggers at a fixed rate for load checks.

Status changes are generated with random records and statuses, sync runs
with random cadences. Publishing happens in batches on a worker pool.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Rate <= 0 {
				return fmt.Errorf("rate must be positive")
			}
			if opts.Concurrency <= 0 {
				opts.Concurrency = 1
			}
			if opts.BatchSize <= 0 {
				opts.BatchSize = 50
			}
			for _, s := range opts.Subjects {
				if _, ok := model.MapToBaseEventType(s); !ok {
					return fmt.Errorf("unknown trigger subject %q", s)
				}
			}

			b, err := e.backend(cmd.Context(), Needs{NATS: true})
			if err != nil {
				return err
			}
			defer b.Close()

			if opts.MetricsPort > 0 {
				observer.InitMetrics(true)
				srv := startMetricsServer(opts.MetricsPort)
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(ctx)
				}()
			}

			stats, err := runSimulation(cmd.Context(), b.Publisher, opts, commandLogger(cmd))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "attempted %d, published %d, failed %d\n",
				stats.attempted.Load(), stats.published.Load(), stats.failed.Load())
			return err
		},
	}
	cmd.Flags().StringSliceVar(&opts.Subjects, "subjects", []string{string(model.V1LeadStatus)}, "Base subjects to publish to")
	cmd.Flags().IntVar(&opts.Rate, "rate", 10, "Target messages per second (total)")
	cmd.Flags().DurationVar(&opts.Duration, "duration", time.Minute, "How long to publish for")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 4, "Number of publishing workers")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", 50, "Messages handed to a worker at once")
	cmd.Flags().IntVar(&opts.MetricsPort, "metrics-port", 0, "Serve loadgen metrics on this port, 0 disables")
	return cmd
}

func startMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("Metrics server error", zap.Error(err))
		}
	}()
	return server
}

// runSimulation generates messages on a ticker until the duration elapses or
// ctx is canceled, then waits for every submitted batch to be published.
func runSimulation(ctx context.Context, pub usecase.Publisher, opts simulateOptions, log *zap.Logger) (*simulationStats, error) {
	stats := &simulationStats{}
	var wg sync.WaitGroup

	pool, err := ants.NewPoolWithFunc(opts.Concurrency, func(data interface{}) {
		publishBatch(ctx, data.(simulationBatch), stats, &wg, log)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create publisher pool: %w", err)
	}
	defer pool.Release()

	ticker := time.NewTicker(time.Second / time.Duration(opts.Rate))
	defer ticker.Stop()
	deadline := time.NewTimer(opts.Duration)
	defer deadline.Stop()

	batch := make([]simulatedMessage, 0, opts.BatchSize)
	submit := func() {
		if len(batch) == 0 {
			return
		}
		wg.Add(len(batch))
		if err := pool.Invoke(simulationBatch{Messages: batch, Publisher: pub}); err != nil {
			log.Warn("Failed to invoke publisher pool", zap.Int("batch_size", len(batch)), zap.Error(err))
			wg.Add(-len(batch))
			for _, m := range batch {
				stats.failed.Add(1)
				observer.IncLoadgenPublishErrors(m.BaseSubject)
			}
		}
		batch = make([]simulatedMessage, 0, opts.BatchSize)
	}

	log.Info("Starting simulation",
		zap.Strings("subjects", opts.Subjects),
		zap.Int("rate_per_sec", opts.Rate),
		zap.Duration("duration", opts.Duration),
		zap.Int("concurrency", opts.Concurrency))

	counter := 0
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline.C:
			break loop
		case <-ticker.C:
			base := opts.Subjects[counter%len(opts.Subjects)]
			counter++
			msg, err := generateMessage(model.EventType(base))
			if err != nil {
				log.Error("Failed to generate message", zap.String("subject", base), zap.Error(err))
				stats.failed.Add(1)
				continue
			}
			stats.attempted.Add(1)
			observer.IncLoadgenMessagesAttempted(base)
			batch = append(batch, msg)
			if len(batch) >= opts.BatchSize {
				submit()
			}
		}
	}
	submit()
	wg.Wait()
	return stats, nil
}

func publishBatch(ctx context.Context, batch simulationBatch, stats *simulationStats, wg *sync.WaitGroup, log *zap.Logger) {
	for _, m := range batch.Messages {
		func(m simulatedMessage) {
			defer wg.Done()
			if err := batch.Publisher.Publish(ctx, m.Subject, m.Payload, nil); err != nil {
				log.Error("Failed to publish simulated message", zap.String("subject", m.Subject), zap.Error(err))
				stats.failed.Add(1)
				observer.IncLoadgenPublishErrors(m.BaseSubject)
				return
			}
			stats.published.Add(1)
			observer.IncLoadgenMessagesPublished(m.BaseSubject)
		}(m)
	}
}

// generateMessage builds a fake payload for base.
func generateMessage(base model.EventType) (simulatedMessage, error) {
	var (
		payload interface{}
		subject = string(base)
	)
	switch base {
	case model.V1LeadStatus:
		payload = model.NewStatusChange()
	case model.V1SyncRun:
		cadences := model.Cadences()
		cadence := cadences[gofakeit.Number(0, len(cadences)-1)]
		subject = base.Subject(cadence.Slug())
		payload = model.SyncRunPayload{RequestedBy: "synctl simulate"}
	case model.V1SyncSetting:
		payload = model.SyncRunPayload{Setting: model.NewSyncSetting().Name, RequestedBy: "synctl simulate"}
	case model.V1FormsRefresh:
		payload = model.FormsRefreshPayload{Setting: model.NewSyncSetting().Name}
	default:
		return simulatedMessage{}, fmt.Errorf("unsupported subject %q", base)
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return simulatedMessage{}, err
	}
	return simulatedMessage{BaseSubject: string(base), Subject: subject, Payload: b}, nil
}
