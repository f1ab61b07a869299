package model

import (
	"fmt"
	"strings"
)

// Cadence is the event frequency label attached to a sync setting.
type Cadence string

const (
	CadenceAll            Cadence = "All"
	CadenceHourly         Cadence = "Hourly"
	CadenceDaily          Cadence = "Daily"
	CadenceWeekly         Cadence = "Weekly"
	CadenceMonthly        Cadence = "Monthly"
	CadenceEvery5Minutes  Cadence = "Every 5 Minutes"
	CadenceEvery10Minutes Cadence = "Every 10 Minutes"
	CadenceEvery15Minutes Cadence = "Every 15 Minutes"
	CadenceEvery30Minutes Cadence = "Every 30 Minutes"
)

type cadenceInfo struct {
	cadence Cadence
	slug    string
	cron    string
}

var cadenceTable = []cadenceInfo{
	{CadenceAll, "all", "* * * * *"},
	{CadenceHourly, "hourly", "0 * * * *"},
	{CadenceDaily, "daily", "0 0 * * *"},
	{CadenceWeekly, "weekly", "0 0 * * 0"},
	{CadenceMonthly, "monthly", "0 0 1 * *"},
	{CadenceEvery5Minutes, "every_5_minutes", "*/5 * * * *"},
	{CadenceEvery10Minutes, "every_10_minutes", "*/10 * * * *"},
	{CadenceEvery15Minutes, "every_15_minutes", "*/15 * * * *"},
	{CadenceEvery30Minutes, "every_30_minutes", "*/30 * * * *"},
}

// Cadences returns every supported cadence in scheduling order.
func Cadences() []Cadence {
	out := make([]Cadence, 0, len(cadenceTable))
	for _, c := range cadenceTable {
		out = append(out, c.cadence)
	}
	return out
}

func normalizeCadence(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// ParseCadence accepts either the display name ("Every 5 Minutes") or the
// subject slug ("every_5_minutes"), case-insensitively.
func ParseCadence(s string) (Cadence, error) {
	n := normalizeCadence(s)
	for _, c := range cadenceTable {
		if c.slug == n {
			return c.cadence, nil
		}
	}
	return "", fmt.Errorf("unknown cadence %q", s)
}

func (c Cadence) info() (cadenceInfo, bool) {
	for _, ci := range cadenceTable {
		if ci.cadence == c {
			return ci, true
		}
	}
	return cadenceInfo{}, false
}

// Valid reports whether c is one of the supported cadences.
func (c Cadence) Valid() bool {
	_, ok := c.info()
	return ok
}

// Slug is the NATS-safe token used in v1.sync.run.<slug> subjects.
func (c Cadence) Slug() string {
	ci, _ := c.info()
	return ci.slug
}

// CronSpec is the five-field schedule an external scheduler should publish this cadence on.
func (c Cadence) CronSpec() string {
	ci, _ := c.info()
	return ci.cron
}

func (c Cadence) String() string {
	return string(c)
}
