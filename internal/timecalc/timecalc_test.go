package timecalc_test

import (
	"testing"
	"time"

	"commitclock/internal/timecalc"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{time.Minute, "1m"},
		{90 * time.Second, "1m"},
		{time.Hour, "1h 0m"},
		{time.Hour + time.Minute + time.Second, "1h 1m"},
		{90 * time.Minute, "1h 30m"},
	}
	for _, tt := range tests {
		got := timecalc.FormatDuration(tt.d)
		if got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestFormatHours(t *testing.T) {
	if got := timecalc.FormatHours(0.3333333); got != "0.33h" {
		t.Errorf("FormatHours = %q, want 0.33h", got)
	}
	if got := timecalc.FormatHours(4); got != "4.00h" {
		t.Errorf("FormatHours = %q, want 4.00h", got)
	}
}

func TestSameDay(t *testing.T) {
	a := time.Date(2026, 3, 2, 23, 50, 0, 0, time.UTC)
	if !timecalc.SameDay(a, a.Add(5*time.Minute)) {
		t.Error("SameDay = false within one day")
	}
	if timecalc.SameDay(a, a.Add(15*time.Minute)) {
		t.Error("SameDay = true across midnight")
	}
}

func TestStartAndEndOfDay(t *testing.T) {
	ts := time.Date(2026, 3, 2, 14, 30, 45, 0, time.UTC)

	start := timecalc.StartOfDay(ts)
	if !start.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("StartOfDay = %v", start)
	}

	end := timecalc.EndOfDay(ts)
	if !end.Equal(time.Date(2026, 3, 2, 23, 59, 59, 0, time.UTC)) {
		t.Errorf("EndOfDay = %v", end)
	}
}
