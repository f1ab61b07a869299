package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// CrmField names a CRM record field a form answer can land in.
type CrmField string

// Fields with a dedicated column on crm_records. Any other mapped field is kept in Fields.
const (
	FieldFirstName CrmField = "first_name"
	FieldEmail     CrmField = "email"
	FieldMobileNo  CrmField = "mobile_no"
	FieldPhone     CrmField = "phone"
)

// MappedFields is the result of applying a mapping set to a lead.
// A present key with a nil value means the question was answered with no values.
type MappedFields map[CrmField]*string

// Get returns the value of f and whether it was set to a non-null value.
func (m MappedFields) Get(f CrmField) (string, bool) {
	v, ok := m[f]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Record status values
const (
	RecordStatusLead = "Lead"
)

// CrmRecord is a lead-like record created from a Facebook lead.
type CrmRecord struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	RecordType    string         `json:"record_type" gorm:"type:text;not null;uniqueIndex:idx_crm_records_type_meta_lead,priority:1"`
	MetaLeadID    string         `json:"meta_lead_id" gorm:"type:text;not null;uniqueIndex:idx_crm_records_type_meta_lead,priority:2"`
	Status        string         `json:"status" gorm:"type:text;index"`
	PageID        string         `json:"page_id,omitempty" gorm:"type:text;index"`
	FormID        string         `json:"form_id,omitempty" gorm:"type:text"`
	SyncSetting   string         `json:"sync_setting,omitempty" gorm:"type:text;index"`
	FirstName     *string        `json:"first_name,omitempty" gorm:"type:text"`
	Email         *string        `json:"email,omitempty" gorm:"type:text"`
	MobileNo      *string        `json:"mobile_no,omitempty" gorm:"type:text"`
	Phone         *string        `json:"phone,omitempty" gorm:"type:text"`
	Fields        datatypes.JSON `json:"fields,omitempty" gorm:"type:jsonb"`
	LeadJSON      datatypes.JSON `json:"lead_json,omitempty" gorm:"type:jsonb"`
	LeadCreatedAt *time.Time     `json:"lead_created_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for the CrmRecord model.
func (CrmRecord) TableName() string {
	return "crm_records"
}

// ApplyFields copies mapped values onto the dedicated columns and stores the
// complete mapping, nulls included, in Fields.
func (r *CrmRecord) ApplyFields(fields MappedFields) error {
	for field, value := range fields {
		switch field {
		case FieldFirstName:
			r.FirstName = value
		case FieldEmail:
			r.Email = value
		case FieldMobileNo:
			r.MobileNo = value
		case FieldPhone:
			r.Phone = value
		}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	r.Fields = datatypes.JSON(b)
	return nil
}

// MappedFields decodes Fields back into a MappedFields value.
func (r *CrmRecord) MappedFields() (MappedFields, error) {
	out := MappedFields{}
	if len(r.Fields) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(r.Fields, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DisplayName is the human label used in audit notes.
func (r *CrmRecord) DisplayName() string {
	if r.FirstName != nil && *r.FirstName != "" {
		return *r.FirstName
	}
	if r.MetaLeadID != "" {
		return r.RecordType + " " + r.MetaLeadID
	}
	return r.RecordType
}
