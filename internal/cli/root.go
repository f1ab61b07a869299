// Package cli implements synctl, the operator and scheduler command line for
// the lead sync service.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/app"
	"gitlab.com/timkado/api/meta-lead-sync/internal/config"
	"gitlab.com/timkado/api/meta-lead-sync/internal/jetstream"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/usecase"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
)

// SettingManager maintains sync settings.
type SettingManager interface {
	RefreshForms(ctx context.Context, name string, opts usecase.RefreshOptions) (*model.SyncSetting, error)
	Activate(ctx context.Context, name string) (*model.SyncSetting, error)
	Deactivate(ctx context.Context, name string) (*model.SyncSetting, error)
}

// StatusHandler evaluates a record status change.
type StatusHandler interface {
	Handle(ctx context.Context, change model.StatusChange) (usecase.TriggerOutcome, error)
}

// ExhaustedManager inspects and replays exhausted triggers.
type ExhaustedManager interface {
	ListUnresolved(ctx context.Context, limit int) ([]model.ExhaustedTrigger, error)
	Resolve(ctx context.Context, id uint, notes string) error
	Replay(ctx context.Context, limit int) (int, error)
}

// Backend is what the commands operate on. Fields not asked for in Needs may be nil.
type Backend struct {
	Runs      usecase.RunExecutor
	Settings  SettingManager
	Status    StatusHandler
	Exhausted ExhaustedManager
	Publisher usecase.Publisher
	Close     func()
}

// Needs says which connections a command requires.
type Needs struct {
	Store bool
	NATS  bool
}

// BackendFactory builds a Backend from configuration.
type BackendFactory func(ctx context.Context, cfg *config.Config, needs Needs) (*Backend, error)

// GlobalFlags contains flags available to every command.
type GlobalFlags struct {
	ConfigPath string
	LogLevel   string
	NATSURL    string
}

type env struct {
	flags      GlobalFlags
	cfg        *config.Config
	loadConfig func(path string) (*config.Config, error)
	newBackend BackendFactory
}

// Option customizes the root command.
type Option func(*env)

// WithBackendFactory replaces the Postgres/NATS backed implementation.
func WithBackendFactory(f BackendFactory) Option {
	return func(e *env) {
		e.newBackend = f
	}
}

// WithConfigLoader replaces config.LoadConfig.
func WithConfigLoader(f func(path string) (*config.Config, error)) Option {
	return func(e *env) {
		e.loadConfig = f
	}
}

// NewRootCommand builds the synctl command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	e := &env{
		loadConfig: config.LoadConfig,
		newBackend: defaultBackend,
	}
	for _, opt := range opts {
		opt(e)
	}

	root := &cobra.Command{
		Use:   "synctl",
		Short: "Operate the Facebook lead sync",
		Long: `synctl runs lead syncs, maintains sync settings and replays triggers.

A cron scheduler calls "synctl run <cadence>" on each cadence's schedule
(see "synctl cadences"). The same runs can be queued on the worker through
NATS with "synctl publish".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := e.loadConfig(e.flags.ConfigPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if e.flags.LogLevel != "" {
				cfg.LogLevel = e.flags.LogLevel
			}
			if e.flags.NATSURL != "" {
				cfg.NATS.URL = e.flags.NATSURL
			}
			if err := logger.Initialize(cfg.LogLevel); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			e.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&e.flags.ConfigPath, "config", "", "Directory holding default.yaml")
	root.PersistentFlags().StringVar(&e.flags.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&e.flags.NATSURL, "nats-url", "", "NATS server URL, overrides configuration")

	root.AddCommand(
		newRunCmd(e),
		newSyncCmd(e),
		newFormsCmd(e),
		newSettingsCmd(e),
		newCadencesCmd(e),
		newPublishCmd(e),
		newStatusCmd(e),
		newExhaustedCmd(e),
		newSimulateCmd(e),
	)
	return root
}

// backend builds the backend for one command invocation.
func (e *env) backend(ctx context.Context, needs Needs) (*Backend, error) {
	b, err := e.newBackend(ctx, e.cfg, needs)
	if err != nil {
		return nil, err
	}
	if b.Close == nil {
		b.Close = func() {}
	}
	return b, nil
}

func defaultBackend(ctx context.Context, cfg *config.Config, needs Needs) (*Backend, error) {
	if !needs.Store {
		js, err := jetstream.NewClient(cfg.NATS.URL, "synctl")
		if err != nil {
			return nil, fmt.Errorf("failed to create JetStream client: %w", err)
		}
		return &Backend{Publisher: js, Close: js.Close}, nil
	}

	a, err := app.New(cfg, logger.Log, app.Options{ConnectNATS: needs.NATS, ClientName: "synctl"})
	if err != nil {
		return nil, err
	}
	b := &Backend{
		Runs:      a.Orchestrator,
		Settings:  a.SettingService,
		Status:    a.StatusTrigger,
		Exhausted: a.ExhaustedSvc,
		Close:     func() { a.Close(context.Background()) },
	}
	if a.JS != nil {
		b.Publisher = a.JS
	}
	return b, nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func commandLogger(cmd *cobra.Command) *zap.Logger {
	return logger.FromContext(cmd.Context()).With(zap.String("command", cmd.CommandPath()))
}
