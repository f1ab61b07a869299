package model

import "time"

// ExhaustedTrigger stores a trigger message that could not be processed after all
// delivery attempts, or that failed fatally.
type ExhaustedTrigger struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
	SourceSubject string     `json:"source_subject" gorm:"type:text;not null;index"`
	MessageID     string     `json:"message_id,omitempty" gorm:"type:text"`
	ErrorType     string     `json:"error_type,omitempty" gorm:"type:text"`
	LastError     string     `json:"last_error" gorm:"type:text"`
	DeliveryCount int        `json:"delivery_count"`
	Payload       string     `json:"payload" gorm:"type:text"`
	Resolved      bool       `json:"resolved" gorm:"index"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	Notes         string     `json:"notes,omitempty" gorm:"type:text"`
}

// TableName specifies the table name for the ExhaustedTrigger model.
func (ExhaustedTrigger) TableName() string {
	return "exhausted_triggers"
}
