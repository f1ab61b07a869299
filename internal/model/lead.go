package model

import (
	"encoding/json"
	"time"

	"gitlab.com/timkado/api/meta-lead-sync/pkg/utils"
)

// FieldDatum is one answered question of a lead.
type FieldDatum struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// RawLead is a lead as returned by the Graph API. Raw keeps the exact bytes
// received so the archived copy matches the source.
type RawLead struct {
	ID           string          `json:"id"`
	AdID         string          `json:"ad_id,omitempty"`
	AdName       string          `json:"ad_name,omitempty"`
	AdsetID      string          `json:"adset_id,omitempty"`
	CampaignID   string          `json:"campaign_id,omitempty"`
	CampaignName string          `json:"campaign_name,omitempty"`
	FormID       string          `json:"form_id,omitempty"`
	CreatedTime  string          `json:"created_time,omitempty"`
	IsOrganic    bool            `json:"is_organic,omitempty"`
	Platform     string          `json:"platform,omitempty"`
	FieldData    []FieldDatum    `json:"field_data"`
	Raw          json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes the known fields and retains the original payload.
func (l *RawLead) UnmarshalJSON(data []byte) error {
	type alias RawLead
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*l = RawLead(a)
	l.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// JSON returns the archival form of the lead.
func (l RawLead) JSON() json.RawMessage {
	if len(l.Raw) > 0 {
		return l.Raw
	}
	type alias RawLead
	b, err := json.Marshal(alias(l))
	if err != nil {
		return nil
	}
	return b
}

// CreatedAt parses CreatedTime, returning nil when absent or malformed.
func (l RawLead) CreatedAt() *time.Time {
	if l.CreatedTime == "" {
		return nil
	}
	t, err := utils.ParseGraphTime(l.CreatedTime)
	if err != nil {
		return nil
	}
	return &t
}

// Paging is the cursor block of a Graph list response.
type Paging struct {
	Cursors *struct {
		Before string `json:"before,omitempty"`
		After  string `json:"after,omitempty"`
	} `json:"cursors,omitempty"`
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
}

// LeadPage is one page of a form's leads.
type LeadPage struct {
	Data   []RawLead `json:"data"`
	Paging *Paging   `json:"paging,omitempty"`
}

// NextCursor returns the fully qualified next page URL, or "" on the last page.
func (p *LeadPage) NextCursor() string {
	if p == nil || p.Paging == nil {
		return ""
	}
	return p.Paging.Next
}

// FormPageList is one page of a page's leadgen forms.
type FormPageList struct {
	Data   []LeadForm `json:"data"`
	Paging *Paging    `json:"paging,omitempty"`
}
