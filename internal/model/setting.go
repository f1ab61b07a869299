package model

import (
	"time"

	"gorm.io/datatypes"
)

// Sync setting lifecycle states.
const (
	SettingStatusDraft    = "draft"
	SettingStatusActive   = "active"
	SettingStatusInactive = "inactive"
)

// Question types that have a fixed CRM field.
const (
	QuestionTypeEmail    = "EMAIL"
	QuestionTypeFullName = "FULL_NAME"
	QuestionTypePhone    = "PHONE"
)

// Question is one field of a lead form.
type Question struct {
	ID    string `json:"id,omitempty"`
	Key   string `json:"key" validate:"required"`
	Label string `json:"label,omitempty"`
	Type  string `json:"type"`
}

// FormPage is the page reference embedded in a leadgen form.
type FormPage struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// LeadForm is a Lead-Ads form definition attached to a sync setting.
type LeadForm struct {
	ID          string     `json:"id" validate:"required"`
	Name        string     `json:"name"`
	CreatedTime string     `json:"created_time,omitempty"`
	LeadsCount  int        `json:"leads_count"`
	Page        *FormPage  `json:"page,omitempty"`
	PageID      string     `json:"page_id,omitempty"`
	Questions   []Question `json:"questions" validate:"dive"`
}

// FieldMapping links a form question key to a CRM field.
type FieldMapping struct {
	LeadField      string `json:"lead_field" validate:"required"`
	FormField      string `json:"form_field" validate:"required"`
	FormFieldLabel string `json:"form_field_label,omitempty"`
	FormFieldType  string `json:"form_field_type,omitempty"`
}

// SyncSetting binds a Facebook page and its forms to a cadence and a target record type.
type SyncSetting struct {
	ID             uint                              `json:"id" gorm:"primaryKey"`
	Name           string                            `json:"name" gorm:"type:text;uniqueIndex;not null" validate:"required"`
	PageID         string                            `json:"page_id" gorm:"type:text;index;not null" validate:"required"`
	RecordType     string                            `json:"record_type" gorm:"type:text;not null" validate:"required"`
	EventFrequency Cadence                           `json:"event_frequency" gorm:"type:text;index" validate:"omitempty,cadence"`
	Status         string                            `json:"status" gorm:"type:text;index" validate:"omitempty,oneof=draft active inactive"`
	Forms          datatypes.JSONSlice[LeadForm]     `json:"forms" gorm:"type:jsonb" validate:"dive"`
	Mappings       datatypes.JSONSlice[FieldMapping] `json:"mappings" gorm:"type:jsonb" validate:"dive"`
	LastRunAt      *time.Time                        `json:"last_run_at,omitempty"`
	CreatedAt      time.Time                         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time                         `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the SyncSetting model.
func (SyncSetting) TableName() string {
	return "sync_settings"
}

// IsActive reports whether scheduled runs pick this setting up.
func (s *SyncSetting) IsActive() bool {
	return s.Status == SettingStatusActive
}

// HasMappingFor reports whether some form field is mapped to leadField.
func (s *SyncSetting) HasMappingFor(leadField string) bool {
	for _, m := range s.Mappings {
		if m.LeadField == leadField {
			return true
		}
	}
	return false
}

// AllQuestions flattens the questions of every form, in form order.
func (s *SyncSetting) AllQuestions() []Question {
	var out []Question
	for _, f := range s.Forms {
		out = append(out, f.Questions...)
	}
	return out
}
