package integration_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/model"
	"gitlab.com/timkado/api/meta-lead-sync/internal/storage"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/utils"
)

type RepositoryTestSuite struct {
	BaseIntegrationSuite
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func (s *RepositoryTestSuite) TestCreateRecord_DedupByRecordTypeAndLeadID() {
	records := storage.NewRecordStoreAdapter(s.Repo)
	record := model.NewCrmRecord(&model.CrmRecord{RecordType: "Lead", MetaLeadID: "1200000000000001"})
	record.ID = 0

	s.Require().NoError(records.Create(s.Ctx, record))

	exists, err := records.Exists(s.Ctx, "Lead", "1200000000000001")
	s.Require().NoError(err)
	s.True(exists)

	dup := model.NewCrmRecord(&model.CrmRecord{RecordType: "Lead", MetaLeadID: "1200000000000001"})
	dup.ID = 0
	err = records.Create(s.Ctx, dup)
	s.Require().Error(err)
	s.True(apperrors.IsDuplicateError(err))

	// the same lead under another record type is a separate record
	other := model.NewCrmRecord(&model.CrmRecord{RecordType: "CRM Lead", MetaLeadID: "1200000000000001"})
	other.ID = 0
	s.Require().NoError(records.Create(s.Ctx, other))

	s.Equal(int64(2), s.CountRows("crm_records", "meta_lead_id = ?", "1200000000000001"))
}

func (s *RepositoryTestSuite) TestFindRecordByMetaLeadID() {
	records := storage.NewRecordStoreAdapter(s.Repo)
	email := "jane@example.test"
	record := model.NewCrmRecord(&model.CrmRecord{RecordType: "Lead", MetaLeadID: "1200000000000002", Status: "Open"})
	record.ID = 0
	record.Email = &email
	s.Require().NoError(records.Create(s.Ctx, record))

	found, err := records.FindByMetaLeadID(s.Ctx, "Lead", "1200000000000002")
	s.Require().NoError(err)
	s.Equal("Open", found.Status)
	s.Require().NotNil(found.Email)
	s.Equal(email, *found.Email)

	_, err = records.FindByMetaLeadID(s.Ctx, "Lead", "missing")
	s.True(apperrors.IsNotFoundError(err))
}

func (s *RepositoryTestSuite) TestSettings_SaveUpsertAndCadenceLookup() {
	settings := storage.NewSettingRepoAdapter(s.Repo)

	hourly := model.NewSyncSetting(&model.SyncSetting{Name: "Hourly page", EventFrequency: model.CadenceHourly})
	hourly.ID = 0
	inactive := model.NewSyncSetting(&model.SyncSetting{Name: "Paused page", EventFrequency: model.CadenceHourly, Status: model.SettingStatusInactive})
	inactive.ID = 0
	daily := model.NewSyncSetting(&model.SyncSetting{Name: "Daily page", EventFrequency: model.CadenceDaily})
	daily.ID = 0

	for _, setting := range []*model.SyncSetting{hourly, inactive, daily} {
		s.Require().NoError(settings.Save(s.Ctx, setting))
	}

	active, err := settings.FindActiveByCadence(s.Ctx, model.CadenceHourly)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal("Hourly page", active[0].Name)
	s.Require().Len(active[0].Forms, 1)
	s.Equal(hourly.Forms[0].ID, active[0].Forms[0].ID)
	s.Len(active[0].Mappings, 3)

	// saving under an existing name overwrites instead of inserting
	update := model.NewSyncSetting(&model.SyncSetting{Name: "Hourly page", EventFrequency: model.CadenceDaily})
	update.ID = 0
	s.Require().NoError(settings.Save(s.Ctx, update))
	s.Equal(int64(1), s.CountRows("sync_settings", "name = ?", "Hourly page"))

	reloaded, err := settings.FindByName(s.Ctx, "Hourly page")
	s.Require().NoError(err)
	s.Equal(model.CadenceDaily, reloaded.EventFrequency)

	at := utils.Now().Truncate(time.Second)
	s.Require().NoError(settings.MarkRun(s.Ctx, "Hourly page", at))
	reloaded, err = settings.FindByName(s.Ctx, "Hourly page")
	s.Require().NoError(err)
	s.Require().NotNil(reloaded.LastRunAt)
	s.True(at.Equal(*reloaded.LastRunAt))

	all, err := settings.List(s.Ctx)
	s.Require().NoError(err)
	s.Len(all, 3)

	_, err = settings.FindByName(s.Ctx, "nope")
	s.True(apperrors.IsNotFoundError(err))
}

func (s *RepositoryTestSuite) TestPagesAndNotes() {
	pages := storage.NewPageRepoAdapter(s.Repo)
	notes := storage.NewNoteRepoAdapter(s.Repo)

	page := model.NewPageConfig(&model.PageConfig{PageID: "100200300", PixelID: "900", PixelAccessToken: "pixel-token"})
	page.ID = 0
	s.Require().NoError(pages.Save(s.Ctx, page))

	found, err := pages.FindByPageID(s.Ctx, "100200300")
	s.Require().NoError(err)
	s.True(found.HasPixel())
	s.Equal("900", found.PixelID)

	note := &model.SyncNote{
		RecordType: "Lead",
		MetaLeadID: "1200000000000003",
		Title:      "Meta Pixel Event Sent",
		Content:    "Lead event sent",
		Payload:    []byte(`{"data":[]}`),
		Response:   []byte(`{"events_received":1}`),
	}
	s.Require().NoError(notes.Save(s.Ctx, note))

	listed, err := notes.List(s.Ctx, "Lead", "1200000000000003")
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal("Meta Pixel Event Sent", listed[0].Title)
	s.JSONEq(`{"events_received":1}`, string(listed[0].Response))
}

func (s *RepositoryTestSuite) TestExhaustedTriggers_ListAndResolve() {
	exhausted := storage.NewExhaustedTriggerRepoAdapter(s.Repo)

	s.Require().NoError(exhausted.Save(s.Ctx, model.ExhaustedTrigger{
		SourceSubject: "v1.leads.status",
		ErrorType:     "fatal",
		LastError:     "invalid status change",
		DeliveryCount: 1,
		Payload:       `{}`,
	}))
	s.Require().NoError(exhausted.Save(s.Ctx, model.ExhaustedTrigger{
		SourceSubject: "v1.sync.run.hourly",
		ErrorType:     "retryable",
		LastError:     "graph timeout",
		DeliveryCount: 5,
	}))

	open, err := exhausted.ListUnresolved(s.Ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(open, 2)
	s.Equal("v1.leads.status", open[0].SourceSubject)

	s.Require().NoError(exhausted.Resolve(s.Ctx, open[0].ID, "bad payload, dropped"))

	open, err = exhausted.ListUnresolved(s.Ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(open, 1)
	s.Equal("v1.sync.run.hourly", open[0].SourceSubject)

	err = exhausted.Resolve(s.Ctx, 9999, "")
	s.True(apperrors.IsNotFoundError(err))
}
