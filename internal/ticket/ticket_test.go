package ticket

import (
	"errors"
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusWaiting, StatusInProgress}:  true,
		{StatusInProgress, StatusResolved}: true,
		{StatusWaiting, StatusResolved}:    true,
	}
	all := []Status{StatusWaiting, StatusInProgress, StatusResolved}
	for _, from := range all {
		for _, to := range all {
			if got := CanTransition(from, to); got != allowed[[2]Status{from, to}] {
				t.Errorf("%s -> %s: got %v", from, to, got)
			}
		}
	}
}

func TestTransitionResolvedIsTerminal(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tk := &Ticket{ID: "t1", Status: StatusWaiting}
	if err := tk.Transition(StatusInProgress, "", now); err != nil {
		t.Fatalf("waiting -> in progress: %v", err)
	}
	if err := tk.Transition(StatusResolved, "agent-7", now); err != nil {
		t.Fatalf("in progress -> resolved: %v", err)
	}
	if tk.ClosedBy != "agent-7" || tk.ClosedAt == nil || !tk.ClosedAt.Equal(now) {
		t.Fatalf("close metadata not recorded: %+v", tk)
	}
	if tk.Status.Active() {
		t.Fatalf("resolved ticket must not be active")
	}
	err := tk.Transition(StatusWaiting, "", now)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("reopen must fail with ErrInvalidTransition, got %v", err)
	}
}

func TestTransitionSkipNeedsCloser(t *testing.T) {
	now := time.Unix(1700000000, 0)
	tk := &Ticket{ID: "t1", Status: StatusWaiting}
	if err := tk.Transition(StatusResolved, "", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("waiting -> resolved without closedBy must fail, got %v", err)
	}
	if tk.Status != StatusWaiting {
		t.Fatalf("failed transition changed status to %s", tk.Status)
	}
	if err := tk.Transition(StatusResolved, "ops", now); err != nil {
		t.Fatalf("waiting -> resolved with closedBy: %v", err)
	}
	if tk.ClosedBy != "ops" {
		t.Fatalf("closedBy not recorded: %+v", tk)
	}
}

func TestSummaryNil(t *testing.T) {
	var tk *Ticket
	if tk.Summary() != nil {
		t.Fatalf("nil ticket has no summary")
	}
}
