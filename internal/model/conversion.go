package model

import "encoding/json"

// EventUserData identifies the lead the conversion refers to.
type EventUserData struct {
	LeadID string `json:"lead_id"`
}

// EventCustomData tags the origin of the conversion.
type EventCustomData struct {
	EventSource     string `json:"event_source"`
	LeadEventSource string `json:"lead_event_source"`
}

// ConversionEvent is a single pixel event. Built per dispatch, never stored
// outside the audit note.
type ConversionEvent struct {
	EventName    string          `json:"event_name"`
	EventTime    int64           `json:"event_time"`
	ActionSource string          `json:"action_source"`
	UserData     EventUserData   `json:"user_data"`
	CustomData   EventCustomData `json:"custom_data"`
}

// EventPayload is the request body of the pixel events endpoint.
type EventPayload struct {
	Data []ConversionEvent `json:"data"`
}

// DispatchStatus is the outcome of a dispatch.
type DispatchStatus string

const (
	DispatchSent    DispatchStatus = "sent"
	DispatchSkipped DispatchStatus = "skipped"
	DispatchFailed  DispatchStatus = "failed"
)

// Dispatch error kinds
const (
	DispatchErrTimeout       = "timeout"
	DispatchErrNetwork       = "network_error"
	DispatchErrAPI           = "api_error"
	DispatchErrConfiguration = "configuration"
	DispatchErrCanceled      = "canceled"
)

// DispatchResult is the structured outcome of EventSync. Failures are reported
// here instead of as errors.
type DispatchResult struct {
	Status   DispatchStatus  `json:"status"`
	Error    string          `json:"error,omitempty"`
	Message  string          `json:"message,omitempty"`
	Attempts int             `json:"attempts"`
	Response json.RawMessage `json:"response,omitempty"`
}

// OK reports whether the event was accepted by the API.
func (r DispatchResult) OK() bool {
	return r.Status == DispatchSent
}
