package schedule

import (
	"testing"
	"time"
)

var now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestSendTimeImmediate(t *testing.T) {
	start := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)
	got := SendTime(start, now, Rule{Type: TypeImmediate})
	if !got.Equal(now) {
		t.Fatalf("immediate should send now, got %v", got)
	}
}

func TestSendTimeBeforeAppointmentHours(t *testing.T) {
	start := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)
	got := SendTime(start, now, Rule{Type: TypeBeforeAppointment, Value: 24, Unit: UnitHours})
	want := time.Date(2024, 5, 9, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSendTimeAfterAppointmentDays(t *testing.T) {
	start := time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC)
	got := SendTime(start, now, Rule{Type: TypeAfterAppointment, Value: 3, Unit: UnitDays})
	want := time.Date(2024, 5, 13, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSendTimeMonthsUseCalendarArithmetic(t *testing.T) {
	start := time.Date(2024, 3, 31, 10, 0, 0, 0, time.UTC)
	got := SendTime(start, now, Rule{Type: TypeBeforeAppointment, Value: 1, Unit: UnitMonths})
	// Go calendar arithmetic: March 31 minus one month normalizes past February
	want := start.AddDate(0, -1, 0)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	start = time.Date(2024, 5, 15, 8, 0, 0, 0, time.UTC)
	got = SendTime(start, now, Rule{Type: TypeAfterAppointment, Value: 2, Unit: UnitMonths})
	want = time.Date(2024, 7, 15, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSendTimeWorkdayShift(t *testing.T) {
	// 2024-05-12 is a Sunday
	sundayStart := time.Date(2024, 5, 13, 10, 0, 0, 0, time.UTC)
	got := SendTime(sundayStart, now, Rule{
		Type: TypeBeforeAppointment, Value: 1, Unit: UnitDays, OnlyWorkdays: true,
	})
	want := time.Date(2024, 5, 13, 10, 0, 0, 0, time.UTC) // Monday
	if !got.Equal(want) {
		t.Fatalf("sunday shift: got %v, want %v", got, want)
	}

	// 2024-05-11 is a Saturday
	saturdayStart := time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC)
	got = SendTime(saturdayStart, now, Rule{
		Type: TypeBeforeAppointment, Value: 1, Unit: UnitDays, OnlyWorkdays: true,
	})
	if got.Weekday() != time.Monday {
		t.Fatalf("saturday shift: expected Monday, got %v (%v)", got.Weekday(), got)
	}
	if !got.Equal(time.Date(2024, 5, 13, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("saturday shifts forward two days, got %v", got)
	}
}

func TestSendTimeWindowStartOverridesClock(t *testing.T) {
	start := time.Date(2024, 5, 10, 16, 45, 0, 0, time.UTC)
	got := SendTime(start, now, Rule{
		Type: TypeBeforeAppointment, Value: 2, Unit: UnitDays, WindowStart: "08:30",
	})
	want := time.Date(2024, 5, 8, 8, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestSendTimeWindowEndRollsOver(t *testing.T) {
	// offset lands at 19:00, after the 18:00 window end
	start := time.Date(2024, 5, 9, 19, 0, 0, 0, time.UTC)
	got := SendTime(start, now, Rule{
		Type: TypeBeforeAppointment, Value: 1, Unit: UnitDays,
		WindowEnd: "18:00", WindowStart: "",
	})
	if got.Day() != 9 {
		t.Fatalf("expected roll-over to the next day, got %v", got)
	}

	got = SendTime(start, now, Rule{
		Type: TypeBeforeAppointment, Value: 1, Unit: UnitDays,
		WindowStart: "08:00", WindowEnd: "18:00",
	})
	want := time.Date(2024, 5, 8, 8, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("window start keeps the time inside the window, got %v, want %v", got, want)
	}
}

func TestSendTimeWorkdayKeptOnWeekday(t *testing.T) {
	// 2024-05-08 is a Wednesday
	start := time.Date(2024, 5, 9, 10, 0, 0, 0, time.UTC)
	got := SendTime(start, now, Rule{
		Type: TypeBeforeAppointment, Value: 1, Unit: UnitDays, OnlyWorkdays: true,
	})
	want := time.Date(2024, 5, 8, 10, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("weekday should be untouched, got %v, want %v", got, want)
	}
}
