package model

import (
	"encoding/json"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"gitlab.com/timkado/api/meta-lead-sync/pkg/utils"
)

// init ensures gofakeit is seeded.
func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// NewQuestions returns the usual full name / email / phone trio plus one custom question.
func NewQuestions() []Question {
	return []Question{
		{ID: gofakeit.DigitN(15), Key: "full_name", Label: "Full name", Type: QuestionTypeFullName},
		{ID: gofakeit.DigitN(15), Key: "email", Label: "Email", Type: QuestionTypeEmail},
		{ID: gofakeit.DigitN(15), Key: "phone_number", Label: "Phone number", Type: QuestionTypePhone},
		{ID: gofakeit.DigitN(15), Key: "budget", Label: "Budget", Type: "CUSTOM"},
	}
}

// NewLeadForm creates a LeadForm with fake data.
func NewLeadForm(overrideDefaults ...*LeadForm) LeadForm {
	pageID := gofakeit.DigitN(15)
	base := LeadForm{
		ID:          gofakeit.DigitN(16),
		Name:        gofakeit.BS() + " form",
		CreatedTime: utils.Now().Add(-time.Duration(gofakeit.Number(1, 400)) * time.Hour).Format(utils.GraphTimeLayout),
		LeadsCount:  gofakeit.Number(0, 500),
		Page:        &FormPage{ID: pageID, Name: gofakeit.Company()},
		PageID:      pageID,
		Questions:   NewQuestions(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.Page != nil {
			base.Page = ovr.Page
			base.PageID = ovr.Page.ID
		}
		if ovr.Questions != nil {
			base.Questions = ovr.Questions
		}
	}
	return base
}

// NewRawLead creates a RawLead answering the questions of NewQuestions.
func NewRawLead(overrideDefaults ...*RawLead) RawLead {
	base := RawLead{
		ID:          gofakeit.DigitN(16),
		AdID:        gofakeit.DigitN(15),
		CampaignID:  gofakeit.DigitN(15),
		FormID:      gofakeit.DigitN(16),
		CreatedTime: utils.Now().Add(-time.Duration(gofakeit.Number(1, 48)) * time.Hour).Format(utils.GraphTimeLayout),
		Platform:    gofakeit.RandomString([]string{"fb", "ig"}),
		FieldData: []FieldDatum{
			{Name: "full_name", Values: []string{gofakeit.Name()}},
			{Name: "email", Values: []string{gofakeit.Email()}},
			{Name: "phone_number", Values: []string{gofakeit.Phone()}},
		},
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		base.ID = ovr.ID
		if ovr.FormID != "" {
			base.FormID = ovr.FormID
		}
		if ovr.FieldData != nil {
			base.FieldData = ovr.FieldData
		}
	}
	return base
}

// NewRawLeads creates n leads with distinct ids.
func NewRawLeads(n int) []RawLead {
	out := make([]RawLead, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, NewRawLead())
	}
	return out
}

// NewLeadPageJSON renders a Graph leads response, with next as the paging cursor when non-empty.
func NewLeadPageJSON(leads []RawLead, next string) []byte {
	page := LeadPage{Data: leads}
	if next != "" {
		page.Paging = &Paging{Next: next}
	}
	b, _ := json.Marshal(page)
	return b
}

// NewSyncSetting creates an active SyncSetting with one form and derived-looking mappings.
func NewSyncSetting(overrideDefaults ...*SyncSetting) *SyncSetting {
	form := NewLeadForm()
	base := &SyncSetting{
		ID:             uint(gofakeit.Number(1, 10000)),
		Name:           gofakeit.Company() + " leads",
		PageID:         form.PageID,
		RecordType:     "Lead",
		EventFrequency: CadenceHourly,
		Status:         SettingStatusActive,
		Forms:          []LeadForm{form},
		Mappings: []FieldMapping{
			{LeadField: string(FieldFirstName), FormField: "full_name", FormFieldLabel: "Full name", FormFieldType: QuestionTypeFullName},
			{LeadField: string(FieldEmail), FormField: "email", FormFieldLabel: "Email", FormFieldType: QuestionTypeEmail},
			{LeadField: string(FieldMobileNo), FormField: "phone_number", FormFieldLabel: "Phone number", FormFieldType: QuestionTypePhone},
		},
		CreatedAt: utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt: utils.Now(),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != 0 {
			base.ID = ovr.ID
		}
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.PageID != "" {
			base.PageID = ovr.PageID
		}
		if ovr.RecordType != "" {
			base.RecordType = ovr.RecordType
		}
		if ovr.EventFrequency != "" {
			base.EventFrequency = ovr.EventFrequency
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if ovr.Forms != nil {
			base.Forms = ovr.Forms
		}
		if ovr.Mappings != nil {
			base.Mappings = ovr.Mappings
		}
	}
	return base
}

// NewPageConfig creates a PageConfig with pixel credentials.
func NewPageConfig(overrideDefaults ...*PageConfig) *PageConfig {
	base := &PageConfig{
		ID:               uint(gofakeit.Number(1, 10000)),
		PageID:           gofakeit.DigitN(15),
		PageName:         gofakeit.Company(),
		PixelID:          gofakeit.DigitN(16),
		PixelAccessToken: "EAA" + gofakeit.LetterN(40),
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.PageID != "" {
			base.PageID = ovr.PageID
		}
		// pixel fields may be overridden with empty values to model a page without a pixel
		base.PixelID = ovr.PixelID
		base.PixelAccessToken = ovr.PixelAccessToken
	}
	return base
}

// NewCrmRecord creates a stored CrmRecord with fake mapped values.
func NewCrmRecord(overrideDefaults ...*CrmRecord) *CrmRecord {
	name := gofakeit.Name()
	email := gofakeit.Email()
	mobile := gofakeit.Phone()
	base := &CrmRecord{
		ID:          uint(gofakeit.Number(1, 100000)),
		RecordType:  "Lead",
		MetaLeadID:  gofakeit.DigitN(16),
		Status:      gofakeit.RandomString([]string{"Lead", "Open", "Replied", "Interested", "Converted"}),
		PageID:      gofakeit.DigitN(15),
		FirstName:   &name,
		Email:       &email,
		MobileNo:    &mobile,
		CreatedAt:   utils.Now().Add(-time.Duration(gofakeit.Number(1, 100)) * time.Hour),
		UpdatedAt:   utils.Now(),
		SyncSetting: gofakeit.Company() + " leads",
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.RecordType != "" {
			base.RecordType = ovr.RecordType
		}
		base.MetaLeadID = ovr.MetaLeadID
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if ovr.PageID != "" {
			base.PageID = ovr.PageID
		}
	}
	return base
}

// NewStatusChange creates a status change on an existing record that moved between two statuses.
func NewStatusChange(overrideDefaults ...*StatusChange) StatusChange {
	statuses := []string{"Lead", "Open", "Replied", "Opportunity", "Interested", "Converted", "Do Not Contact"}
	from := gofakeit.RandomString(statuses)
	to := gofakeit.RandomString(statuses)
	for to == from {
		to = gofakeit.RandomString(statuses)
	}
	metaID := gofakeit.DigitN(16)
	pageID := gofakeit.DigitN(15)
	base := StatusChange{
		RecordType: gofakeit.RandomString([]string{"Lead", "CRM Lead"}),
		Record:     RecordSnapshot{Name: "CRM-LEAD-" + gofakeit.DigitN(5), MetaLeadID: metaID, Status: to, PageID: pageID},
		Previous:   &RecordSnapshot{MetaLeadID: metaID, Status: from, PageID: pageID},
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.RecordType != "" {
			base.RecordType = ovr.RecordType
		}
		base.IsNew = ovr.IsNew
		if ovr.Record.MetaLeadID != "" || ovr.Record.Status != "" || ovr.Record.PageID != "" {
			base.Record = ovr.Record
		}
		if ovr.Previous != nil {
			base.Previous = ovr.Previous
		}
	}
	return base
}
