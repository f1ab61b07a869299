package model

// SyncRunPayload triggers a cadence or single-setting run.
type SyncRunPayload struct {
	Cadence     string `json:"cadence,omitempty"`
	Setting     string `json:"setting,omitempty"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// RecordSnapshot is the subset of a CRM record the status trigger inspects.
type RecordSnapshot struct {
	Name       string `json:"name,omitempty"`
	MetaLeadID string `json:"meta_lead_id,omitempty"`
	Status     string `json:"status"`
	PageID     string `json:"page_id,omitempty"`
}

// StatusChange is published by the record store after every save of a lead-like record.
// Previous is the pre-save snapshot and is nil for a new record.
type StatusChange struct {
	RecordType string          `json:"record_type" validate:"required"`
	IsNew      bool            `json:"is_new"`
	Record     RecordSnapshot  `json:"record"`
	Previous   *RecordSnapshot `json:"previous,omitempty"`
}

// StatusChanged reports whether the status differs from the pre-save snapshot.
// Without a snapshot there is nothing to compare against and it reports false.
func (c StatusChange) StatusChanged() bool {
	if c.Previous == nil {
		return false
	}
	return c.Previous.Status != c.Record.Status
}

// ToRecord converts the post-save snapshot into a CrmRecord for dispatch.
func (c StatusChange) ToRecord() CrmRecord {
	return CrmRecord{
		RecordType: c.RecordType,
		MetaLeadID: c.Record.MetaLeadID,
		Status:     c.Record.Status,
		PageID:     c.Record.PageID,
	}
}

// FormsRefreshPayload asks for a setting's forms to be re-discovered.
type FormsRefreshPayload struct {
	Setting         string `json:"setting" validate:"required"`
	ForceFetch      bool   `json:"force_fetch"`
	RebuildMappings bool   `json:"rebuild_mappings"`
}
