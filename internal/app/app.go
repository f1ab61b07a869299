// Package app wires the sync pipeline from configuration. Both the daemon and
// synctl build their components here.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/config"
	"gitlab.com/timkado/api/meta-lead-sync/internal/graph"
	"gitlab.com/timkado/api/meta-lead-sync/internal/jetstream"
	"gitlab.com/timkado/api/meta-lead-sync/internal/mapping"
	"gitlab.com/timkado/api/meta-lead-sync/internal/storage"
	"gitlab.com/timkado/api/meta-lead-sync/internal/usecase"
)

// App holds the wired components. JS is nil when built without NATS.
type App struct {
	Config *config.Config
	Repo   *storage.PostgresRepo
	JS     *jetstream.Client

	Records   storage.RecordStore
	Settings  storage.SettingRepo
	Pages     storage.PageRepo
	Notes     storage.NoteRepo
	Exhausted storage.ExhaustedTriggerRepo

	EventSync      *usecase.EventSync
	Orchestrator   *usecase.Orchestrator
	SettingService *usecase.SettingService
	StatusTrigger  *usecase.StatusTrigger
	SyncWorker     *usecase.SyncWorker
	SyncService    *usecase.SyncService
	ExhaustedSvc   *usecase.ExhaustedService
}

// Options selects the optional parts of the wiring.
type Options struct {
	// ConnectNATS dials cfg.NATS.URL and wires trigger publishing and replay.
	ConnectNATS bool
	// ClientName identifies the NATS connection.
	ClientName string
}

// New connects to Postgres (and NATS when asked to) and wires every service.
func New(cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	if cfg.Database.PostgresDSN == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}
	repo, err := storage.NewPostgresRepo(cfg.Database.PostgresDSN, cfg.Database.PostgresAutoMigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
	}
	log.Info("Initialized PostgreSQL repository")

	a := &App{
		Config:    cfg,
		Repo:      repo,
		Records:   storage.NewRecordStoreAdapter(repo),
		Settings:  storage.NewSettingRepoAdapter(repo),
		Pages:     storage.NewPageRepoAdapter(repo),
		Notes:     storage.NewNoteRepoAdapter(repo),
		Exhausted: storage.NewExhaustedTriggerRepoAdapter(repo),
	}

	if opts.ConnectNATS {
		js, err := jetstream.NewClient(cfg.NATS.URL, opts.ClientName)
		if err != nil {
			_ = repo.Close(context.Background())
			return nil, fmt.Errorf("failed to create JetStream client: %w", err)
		}
		a.JS = js
	}

	graphClient := graph.NewClient(cfg.Graph)
	tokens := graph.NewTokenService(graphClient)
	fetcher := graph.NewLeadFetcher(graphClient, cfg.Graph.LeadFields, cfg.Graph.FormFields)

	a.EventSync = usecase.NewEventSync(graph.NewPixelClient(graphClient), a.Notes, cfg.Sync.Dispatch)
	ingestor := usecase.NewLeadIngestor(a.Records, a.EventSync, cfg.Sync.DefaultStatus)
	a.Orchestrator = usecase.NewOrchestrator(a.Settings, a.Pages, tokens, graph.NewWalker(fetcher), ingestor, cfg.Graph, cfg.Sync)
	a.SettingService = usecase.NewSettingService(a.Settings, tokens, fetcher, mapping.New(cfg.Sync.PhoneField), cfg.Graph)
	a.StatusTrigger = usecase.NewStatusTrigger(a.Records, a.Pages, a.EventSync, cfg.Sync)

	worker, err := usecase.NewSyncWorker(cfg.WorkerPools.Sync, a.Orchestrator, a.SettingService, log)
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}
	a.SyncWorker = worker
	a.SyncService = usecase.NewSyncService(worker, a.StatusTrigger)

	if a.JS != nil {
		a.ExhaustedSvc = usecase.NewExhaustedService(a.Exhausted, a.JS)
	} else {
		a.ExhaustedSvc = usecase.NewExhaustedService(a.Exhausted, nil)
	}
	return a, nil
}

// Close releases the worker pool and connections.
func (a *App) Close(ctx context.Context) {
	if a.SyncWorker != nil {
		a.SyncWorker.Stop()
	}
	if a.JS != nil {
		a.JS.Close()
	}
	if a.Repo != nil {
		_ = a.Repo.Close(ctx)
	}
}
