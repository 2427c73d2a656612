package ticket

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Availability tells a connecting player whether agents are on duty.
type Availability struct {
	Available    bool   `json:"available"`
	WorkingHours string `json:"workingHours"`
}

// AvailabilityProvider decides agent availability for a game at a moment.
type AvailabilityProvider interface {
	Availability(ctx context.Context, gameID string, now time.Time) (Availability, error)
}

// Schedule is a daily service window in a fixed timezone. A window whose end is before its start
// spans midnight; equal bounds mean round the clock.
type Schedule struct {
	start, end time.Duration
	loc        *time.Location
	label      string
}

// ParseSchedule parses "HH:MM-HH:MM" in the IANA zone tz.
func ParseSchedule(hours, tz string) (*Schedule, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("service timezone: %w", err)
	}
	from, to, ok := strings.Cut(strings.TrimSpace(hours), "-")
	if !ok {
		return nil, fmt.Errorf("service hours %q: want HH:MM-HH:MM", hours)
	}
	start, err := clockOffset(from)
	if err != nil {
		return nil, err
	}
	end, err := clockOffset(to)
	if err != nil {
		return nil, err
	}
	return &Schedule{
		start: start,
		end:   end,
		loc:   loc,
		label: fmt.Sprintf("%s-%s %s", strings.TrimSpace(from), strings.TrimSpace(to), loc.String()),
	}, nil
}

func clockOffset(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("service hours %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Open reports whether now falls inside the window.
func (s *Schedule) Open(now time.Time) bool {
	local := now.In(s.loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)
	at := local.Sub(midnight)
	switch {
	case s.start == s.end:
		return true
	case s.start < s.end:
		return at >= s.start && at < s.end
	default:
		return at >= s.start || at < s.end
	}
}

func (s *Schedule) String() string { return s.label }

func (s *Schedule) Availability(_ context.Context, _ string, now time.Time) (Availability, error) {
	return Availability{Available: s.Open(now), WorkingHours: s.label}, nil
}
