package ticket

import (
	"context"
	"testing"
	"time"
)

func TestScheduleOpen(t *testing.T) {
	day, err := ParseSchedule("09:00-21:00", "Asia/Shanghai")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	night, err := ParseSchedule("22:00-06:00", "UTC")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	always, err := ParseSchedule("00:00-00:00", "UTC")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	cases := []struct {
		name string
		s    *Schedule
		at   time.Time
		want bool
	}{
		// 01:00 UTC is 09:00 in Shanghai
		{"day start inclusive", day, time.Date(2026, 1, 1, 1, 0, 0, 0, time.UTC), true},
		{"day end exclusive", day, time.Date(2026, 1, 1, 13, 0, 0, 0, time.UTC), false},
		{"day before open", day, time.Date(2026, 1, 1, 0, 59, 0, 0, time.UTC), false},
		{"night late", night, time.Date(2026, 1, 1, 23, 30, 0, 0, time.UTC), true},
		{"night early", night, time.Date(2026, 1, 1, 5, 59, 0, 0, time.UTC), true},
		{"night noon", night, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), false},
		{"always", always, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.s.Open(tc.at); got != tc.want {
				t.Fatalf("Open(%s) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}

	a, _ := day.Availability(context.Background(), "g1", time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC))
	if !a.Available || a.WorkingHours != "09:00-21:00 Asia/Shanghai" {
		t.Fatalf("availability: %+v", a)
	}
}

func TestParseScheduleErrors(t *testing.T) {
	for _, tc := range []struct{ hours, tz string }{
		{"09:00", "UTC"},
		{"9am-5pm", "UTC"},
		{"09:00-17:00", "Mars/Olympus"},
	} {
		if _, err := ParseSchedule(tc.hours, tc.tz); err == nil {
			t.Errorf("ParseSchedule(%q, %q): expected error", tc.hours, tc.tz)
		}
	}
}
