package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/config"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/observer"
	"gitlab.com/timkado/api/meta-lead-sync/internal/runctx"
	"gitlab.com/timkado/api/meta-lead-sync/internal/storage"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/utils"
)

// RunState is the phase a setting run is in.
type RunState string

const (
	StateIdle          RunState = "idle"
	StateTokenAcquired RunState = "token_acquired"
	StateFetching      RunState = "fetching"
	StateIngesting     RunState = "ingesting"
	StateDone          RunState = "done"
	StateAborted       RunState = "aborted"
)

// FormReport is the outcome of one form within a run.
type FormReport struct {
	FormID    string       `json:"form_id"`
	FormName  string       `json:"form_name,omitempty"`
	Pages     int          `json:"pages"`
	Truncated bool         `json:"truncated"`
	Error     string       `json:"error,omitempty"`
	Result    IngestResult `json:"result"`
}

// RunReport is the outcome of a setting run.
type RunReport struct {
	RunID      string       `json:"run_id"`
	Setting    string       `json:"setting"`
	Trigger    string       `json:"trigger"`
	State      RunState     `json:"state"`
	Forms      []FormReport `json:"forms"`
	Totals     IngestResult `json:"totals"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Run triggers
const (
	TriggerCadence = "cadence"
	TriggerManual  = "manual"
)

// Ingestor is what the orchestrator feeds lead batches into.
type Ingestor interface {
	Ingest(ctx context.Context, leads []model.RawLead, ic IngestContext) IngestResult
}

// Orchestrator drives token acquisition, lead pagination and ingestion for sync settings.
type Orchestrator struct {
	settings          storage.SettingRepo
	pages             storage.PageRepo
	tokens            TokenProvider
	walker            LeadWalker
	ingestor          Ingestor
	graph             config.GraphConfig
	defaultRecordType string
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	settings storage.SettingRepo,
	pages storage.PageRepo,
	tokens TokenProvider,
	walker LeadWalker,
	ingestor Ingestor,
	graphCfg config.GraphConfig,
	syncCfg config.SyncConfig,
) *Orchestrator {
	recordType := syncCfg.DefaultRecordType
	if recordType == "" {
		recordType = model.RecordStatusLead
	}
	return &Orchestrator{
		settings:          settings,
		pages:             pages,
		tokens:            tokens,
		walker:            walker,
		ingestor:          ingestor,
		graph:             graphCfg,
		defaultRecordType: recordType,
	}
}

// RunCadence runs every active setting scheduled at cadence, one after the
// other. A failing setting does not stop the others; all failures are joined
// into the returned error.
func (o *Orchestrator) RunCadence(ctx context.Context, cadence model.Cadence) ([]*RunReport, error) {
	if !cadence.Valid() {
		return nil, fmt.Errorf("%w: unknown cadence %q", apperrors.ErrValidation, string(cadence))
	}
	log := logger.FromContext(ctx).With(zap.String("cadence", string(cadence)))

	settings, err := o.settings.FindActiveByCadence(ctx, cadence)
	if err != nil {
		return nil, fmt.Errorf("list settings for cadence %s: %w", cadence, err)
	}
	log.Info("Starting cadence run", zap.Int("settings", len(settings)))

	reports := make([]*RunReport, 0, len(settings))
	var errs []error
	for idx := range settings {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report, err := o.run(ctx, &settings[idx], TriggerCadence)
		reports = append(reports, report)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return reports, errors.Join(errs...)
}

// RunSetting runs a single setting by name regardless of its cadence.
func (o *Orchestrator) RunSetting(ctx context.Context, name string) (*RunReport, error) {
	setting, err := o.settings.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, setting, TriggerManual)
}

func (o *Orchestrator) run(ctx context.Context, setting *model.SyncSetting, trigger string) (*RunReport, error) {
	report := &RunReport{
		RunID:     uuid.NewString(),
		Setting:   setting.Name,
		Trigger:   trigger,
		State:     StateIdle,
		StartedAt: utils.Now(),
	}
	ctx = runctx.WithSetting(runctx.WithRunID(ctx, report.RunID), setting.Name)
	log := logger.FromContext(ctx)
	log.Info("Sync run started", zap.String("trigger", trigger), zap.Int("forms", len(setting.Forms)))

	err := o.execute(ctx, setting, report)
	report.FinishedAt = utils.Now()
	duration := report.FinishedAt.Sub(report.StartedAt)

	if err != nil {
		report.State = StateAborted
		observer.ObserveSyncRun(trigger, "aborted", duration)
		log.Error("Sync run aborted", zap.Duration("duration", duration), zap.Error(err))
		return report, fmt.Errorf("sync setting %s: %w", setting.Name, err)
	}

	report.State = StateDone
	observer.ObserveSyncRun(trigger, "done", duration)
	if markErr := o.settings.MarkRun(ctx, setting.Name, report.FinishedAt); markErr != nil {
		log.Warn("Failed to record last run time", zap.Error(markErr))
	}
	log.Info("Sync run finished",
		zap.Duration("duration", duration),
		zap.Int("created", report.Totals.Created),
		zap.Int("existing", report.Totals.Existing),
		zap.Int("failed", report.Totals.Failed))
	return report, nil
}

func (o *Orchestrator) execute(ctx context.Context, setting *model.SyncSetting, report *RunReport) error {
	log := logger.FromContext(ctx)

	page, err := o.pages.FindByPageID(ctx, setting.PageID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return fmt.Errorf("%w: no page configuration for page %s", apperrors.ErrConfiguration, setting.PageID)
		}
		return fmt.Errorf("load page configuration: %w", err)
	}

	token, err := o.tokens.GetPageAccessToken(ctx, model.PageCredentials{
		BaseURL:        o.graph.BaseURL,
		Version:        o.graph.Version,
		PageID:         setting.PageID,
		AppAccessToken: o.graph.AppAccessToken,
	})
	if err != nil {
		return fmt.Errorf("acquire page access token: %w", err)
	}
	report.State = StateTokenAcquired

	recordType := setting.RecordType
	if recordType == "" {
		recordType = o.defaultRecordType
	}

	for _, form := range setting.Forms {
		if err := ctx.Err(); err != nil {
			log.Warn("Sync run stopped before remaining forms", zap.Error(err))
			break
		}
		report.Forms = append(report.Forms, o.syncForm(ctx, token, form, IngestContext{
			RecordType: recordType,
			Setting:    setting.Name,
			PageID:     setting.PageID,
			FormID:     form.ID,
			Mappings:   setting.Mappings,
			Page:       page,
		}, report))
	}
	return nil
}

// syncForm walks and ingests one form. Failures are recorded in the form report only.
func (o *Orchestrator) syncForm(ctx context.Context, token string, form model.LeadForm, ic IngestContext, report *RunReport) FormReport {
	log := logger.FromContext(ctx).With(zap.String("form_id", form.ID))
	fr := FormReport{FormID: form.ID, FormName: form.Name}
	report.State = StateFetching

	summary, err := o.walker.Walk(ctx, token, form.ID, func(ctx context.Context, leads []model.RawLead) {
		report.State = StateIngesting
		res := o.ingestor.Ingest(ctx, leads, ic)
		fr.Result.Add(res)
		report.Totals.Add(res)
		report.State = StateFetching
	})
	fr.Pages = summary.Pages
	fr.Truncated = summary.Truncated
	if summary.Err != nil {
		fr.Error = summary.Err.Error()
	}
	if err != nil {
		fr.Error = err.Error()
		log.Error("Failed to sync form", zap.String("form_name", form.Name), zap.Error(err))
		return fr
	}

	log.Info("Form synced",
		zap.Int("pages", fr.Pages),
		zap.Bool("truncated", fr.Truncated),
		zap.Int("created", fr.Result.Created))
	return fr
}
