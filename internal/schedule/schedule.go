// Package schedule computes the absolute send time for a scheduled email
// from a template's trigger rule, applying workday and send-window
// constraints.
package schedule

import (
	"strconv"
	"strings"
	"time"
)

// Schedule types.
const (
	TypeImmediate         = "immediate"
	TypeBeforeAppointment = "before_appointment"
	TypeAfterAppointment  = "after_appointment"
)

// Offset units.
const (
	UnitHours  = "hours"
	UnitDays   = "days"
	UnitWeeks  = "weeks"
	UnitMonths = "months"
)

// Rule describes when a template's message should be sent relative to the
// appointment. WindowStart/WindowEnd are optional "HH:MM" strings.
type Rule struct {
	Type         string
	Value        int
	Unit         string
	OnlyWorkdays bool
	WindowStart  string
	WindowEnd    string
}

// SendTime computes the instant a message becomes due. The offset is applied
// first, then the workday clamp, then the send window. Weekend dates always
// shift forward so a message is never sent earlier than the rule intends.
// The result is computed once at scheduling time and never recomputed.
func SendTime(appointmentStart, now time.Time, r Rule) time.Time {
	var t time.Time
	switch r.Type {
	case TypeBeforeAppointment:
		t = applyOffset(appointmentStart, -r.Value, r.Unit)
	case TypeAfterAppointment:
		t = applyOffset(appointmentStart, r.Value, r.Unit)
	default:
		t = now
	}

	if r.OnlyWorkdays {
		t = nextWorkday(t)
	}

	if h, m, ok := parseClock(r.WindowStart); ok {
		t = withClock(t, h, m)
	}

	// A computed time past the end of the send window rolls over to the
	// start of the window on the following day.
	if endH, endM, ok := parseClock(r.WindowEnd); ok {
		end := withClock(t, endH, endM)
		if t.After(end) {
			t = t.AddDate(0, 0, 1)
			if h, m, ok := parseClock(r.WindowStart); ok {
				t = withClock(t, h, m)
			}
			if r.OnlyWorkdays {
				t = nextWorkday(t)
			}
		}
	}

	return t
}

// applyOffset shifts t by value units. Months use calendar arithmetic, not a
// fixed day count.
func applyOffset(t time.Time, value int, unit string) time.Time {
	switch unit {
	case UnitHours:
		return t.Add(time.Duration(value) * time.Hour)
	case UnitDays:
		return t.AddDate(0, 0, value)
	case UnitWeeks:
		return t.AddDate(0, 0, 7*value)
	case UnitMonths:
		return t.AddDate(0, value, 0)
	default:
		return t
	}
}

// nextWorkday shifts a weekend date forward onto Monday.
func nextWorkday(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	case time.Saturday:
		return t.AddDate(0, 0, 2)
	default:
		return t
	}
}

func withClock(t time.Time, hour, minute int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, 0, 0, t.Location())
}

func parseClock(value string) (hour, minute int, ok bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, 0, false
	}
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
