package model

import (
	"time"

	"gorm.io/datatypes"
)

// SyncNote is an audit entry attached to a CRM record.
type SyncNote struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	RecordType string         `json:"record_type" gorm:"type:text;index:idx_sync_notes_record,priority:1"`
	MetaLeadID string         `json:"meta_lead_id" gorm:"type:text;index:idx_sync_notes_record,priority:2"`
	Title      string         `json:"title" gorm:"type:text;not null"`
	Content    string         `json:"content" gorm:"type:text"`
	Public     bool           `json:"public"`
	Payload    datatypes.JSON `json:"payload,omitempty" gorm:"type:jsonb"`
	Response   datatypes.JSON `json:"response,omitempty" gorm:"type:jsonb"`
	CreatedAt  time.Time      `json:"created_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for the SyncNote model.
func (SyncNote) TableName() string {
	return "sync_notes"
}
