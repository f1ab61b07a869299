package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/config"
	"gitlab.com/timkado/api/meta-lead-sync/internal/mapping"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/storage"
	"gitlab.com/timkado/api/meta-lead-sync/internal/validator"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
)

// RefreshOptions controls RefreshForms.
type RefreshOptions struct {
	// ForceFetch replaces the stored forms with the ones currently on the page.
	ForceFetch bool
	// RebuildMappings derives the field mappings again from all forms.
	RebuildMappings bool
}

// SettingService maintains sync settings: form discovery, mappings and activation.
type SettingService struct {
	settings storage.SettingRepo
	tokens   TokenProvider
	forms    FormLister
	mapper   *mapping.Mapper
	graph    config.GraphConfig
}

// NewSettingService creates a SettingService.
func NewSettingService(settings storage.SettingRepo, tokens TokenProvider, forms FormLister, mapper *mapping.Mapper, graphCfg config.GraphConfig) *SettingService {
	return &SettingService{settings: settings, tokens: tokens, forms: forms, mapper: mapper, graph: graphCfg}
}

// RefreshForms re-discovers the leadgen forms of a setting's page. Without
// ForceFetch, forms are only filled in when the setting has none. Mappings are
// rebuilt when asked to or when the setting has none yet.
func (s *SettingService) RefreshForms(ctx context.Context, name string, opts RefreshOptions) (*model.SyncSetting, error) {
	log := logger.FromContext(ctx).With(zap.String("sync_setting", name))

	setting, err := s.settings.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}

	if opts.ForceFetch || len(setting.Forms) == 0 {
		token, err := s.tokens.GetPageAccessToken(ctx, model.PageCredentials{
			BaseURL:        s.graph.BaseURL,
			Version:        s.graph.Version,
			PageID:         setting.PageID,
			AppAccessToken: s.graph.AppAccessToken,
		})
		if err != nil {
			return nil, fmt.Errorf("acquire page access token: %w", err)
		}
		forms, err := s.forms.FetchLeadForms(ctx, token, setting.PageID)
		if err != nil {
			return nil, err
		}
		setting.Forms = forms
		log.Info("Lead forms refreshed", zap.Int("forms", len(forms)))
	}

	if opts.RebuildMappings || len(setting.Mappings) == 0 {
		setting.Mappings = s.mapper.DeriveMappings(setting.AllQuestions())
		log.Info("Field mappings rebuilt", zap.Int("mappings", len(setting.Mappings)))
	}

	if err := s.settings.Save(ctx, setting); err != nil {
		return nil, err
	}
	return setting, nil
}

// ValidateSetting checks a setting can be scheduled.
func (s *SettingService) ValidateSetting(setting *model.SyncSetting) error {
	if err := validator.Validate(setting); err != nil {
		return err
	}
	if !setting.HasMappingFor(string(model.FieldFirstName)) {
		return fmt.Errorf("%w: please map First Name field", apperrors.ErrValidation)
	}
	if setting.EventFrequency == "" {
		return fmt.Errorf("%w: please set an event frequency", apperrors.ErrValidation)
	}
	return nil
}

// Activate validates a setting and marks it active.
func (s *SettingService) Activate(ctx context.Context, name string) (*model.SyncSetting, error) {
	setting, err := s.settings.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateSetting(setting); err != nil {
		return nil, err
	}
	setting.Status = model.SettingStatusActive
	if err := s.settings.Save(ctx, setting); err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Info("Sync setting activated",
		zap.String("sync_setting", name),
		zap.String("cadence", string(setting.EventFrequency)))
	return setting, nil
}

// Deactivate marks a setting inactive so cadence runs skip it.
func (s *SettingService) Deactivate(ctx context.Context, name string) (*model.SyncSetting, error) {
	setting, err := s.settings.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	setting.Status = model.SettingStatusInactive
	if err := s.settings.Save(ctx, setting); err != nil {
		return nil, err
	}
	return setting, nil
}
