package model

import (
	"strings"
	"time"
)

// EventType represents the trigger subjects the worker consumes
type EventType string

// Trigger event type constants (with versioning). Published subjects carry
// one extra token after the base type, e.g. "v1.sync.run.hourly".
const (
	V1SyncRun      EventType = "v1.sync.run"
	V1SyncSetting  EventType = "v1.sync.setting"
	V1LeadStatus   EventType = "v1.leads.status"
	V1FormsRefresh EventType = "v1.forms.refresh"
)

// KnownEventTypes lists every base subject, in stream configuration order.
func KnownEventTypes() []EventType {
	return []EventType{V1SyncRun, V1SyncSetting, V1LeadStatus, V1FormsRefresh}
}

func isKnownEventType(e EventType) bool {
	switch e {
	case V1SyncRun, V1SyncSetting, V1LeadStatus, V1FormsRefresh:
		return true
	}
	return false
}

// MapToBaseEventType attempts to map an input subject (potentially with a trailing
// token) back to a known base EventType constant.
// It returns the mapped EventType and true if successful, or an empty EventType ("")
// and false if no mapping is found.
func MapToBaseEventType(input string) (EventType, bool) {
	if isKnownEventType(EventType(input)) {
		return EventType(input), true
	}

	lastDotIndex := strings.LastIndex(input, ".")
	if lastDotIndex <= 0 {
		return "", false
	}

	base := EventType(input[:lastDotIndex])
	if isKnownEventType(base) {
		return base, true
	}
	return "", false
}

// Subject builds the publish subject for this event type with the given trailing token.
// An empty token yields the base subject.
func (e EventType) Subject(token string) string {
	if token == "" {
		return string(e)
	}
	return string(e) + "." + token
}

// GetVersion extracts the version from an event type
// Returns the version string (e.g., "v1") or an empty string if no version specified
func (e EventType) GetVersion() string {
	parts := strings.SplitN(string(e), ".", 2)
	if len(parts) < 2 {
		return ""
	}

	if len(parts[0]) >= 2 && parts[0][0] == 'v' {
		return parts[0]
	}

	return ""
}

// MessageMetadata is the JetStream delivery information attached to a trigger.
type MessageMetadata struct {
	ConsumerSequence uint64
	StreamSequence   uint64
	NumDelivered     uint64
	NumPending       uint64
	Timestamp        time.Time
	Stream           string
	Consumer         string
	Domain           string
	MessageID        string
	MessageSubject   string
}

// SubjectToken returns the last subject token when the subject extends a base type,
// e.g. "hourly" for "v1.sync.run.hourly".
func (m MessageMetadata) SubjectToken() string {
	base, ok := MapToBaseEventType(m.MessageSubject)
	if !ok || string(base) == m.MessageSubject {
		return ""
	}
	return strings.TrimPrefix(m.MessageSubject, string(base)+".")
}
