package ticket

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"player-ticket-gateway/internal/apperr"
	"player-ticket-gateway/internal/auth"
)

var gateNow = time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC)

type blockingFinder struct{ release chan struct{} }

func (b blockingFinder) FindActiveTicket(context.Context, string, string, string) (*Ticket, error) {
	<-b.release
	return nil, nil
}

type failingFinder struct{}

func (failingFinder) FindActiveTicket(context.Context, string, string, string) (*Ticket, error) {
	return nil, errors.New("connection refused")
}

type brokenAvailability struct{}

func (brokenAvailability) Availability(context.Context, string, time.Time) (Availability, error) {
	return Availability{}, errors.New("calendar offline")
}

func newGateSessions(t *testing.T) *auth.SessionTokenService {
	t.Helper()
	s, err := auth.NewSessionTokenService(auth.NewMemorySessionStore(), auth.SessionConfig{
		SessionTTL: time.Hour, ChannelTTL: time.Minute, ChannelSecret: "gate-test",
	})
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	return s
}

func player() auth.Resolution {
	return auth.Resolution{Identity: auth.PlayerIdentity{
		GameID: "g1", AreaID: "a1", UID: "u1", PlayerName: "Ann", AuthMethod: auth.MethodSignature,
	}}
}

func TestGateConnectWithActiveTicketThenResolved(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	sessions := newGateSessions(t)
	sched, err := ParseSchedule("09:00-21:00", "Asia/Shanghai")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	gate := NewGate(repo, sessions, sched, time.Second).WithClock(func() time.Time { return gateNow })

	tk, err := repo.Create(ctx, &Ticket{GameID: "g1", AreaID: "a1", UID: "u1", IssueType: "bug", Description: "stuck"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	res, err := gate.Connect(ctx, player())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if res.ActiveTicket == nil || res.ActiveTicket.ID != tk.ID || res.ActiveTicket.Status != StatusWaiting {
		t.Fatalf("active ticket summary: %+v", res.ActiveTicket)
	}
	if res.ActiveTicket.IssueType != "bug" || res.ActiveTicket.Description != "stuck" {
		t.Fatalf("summary fields: %+v", res.ActiveTicket)
	}
	if res.Session.TicketID != tk.ID {
		t.Fatalf("session must be bound to the active ticket, got %q", res.Session.TicketID)
	}
	if !res.Availability.Available || res.Availability.WorkingHours == "" {
		t.Fatalf("availability: %+v", res.Availability)
	}
	id, err := sessions.ValidateChannelToken(res.ChannelToken, gateNow)
	if err != nil || id.UID != "u1" {
		t.Fatalf("channel token: %+v, %v", id, err)
	}

	if _, err := repo.UpdateStatus(ctx, tk.ID, StatusResolved, "agent"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	// reconnect with the session token bound to the old ticket
	res2, err := gate.Connect(ctx, auth.Resolution{Identity: res.Session.Identity(), TicketID: tk.ID})
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if res2.ActiveTicket != nil || res2.Session.TicketID != "" {
		t.Fatalf("resolved ticket must not be surfaced: %+v", res2.ActiveTicket)
	}
	if _, err := sessions.ValidateSession(ctx, res.Session.Token, gateNow); apperr.CodeOf(err) != apperr.SessionNotFound {
		t.Fatalf("reconnect must supersede the old session, got %v", err)
	}
}

func TestGateLookupTimeout(t *testing.T) {
	finder := blockingFinder{release: make(chan struct{})}
	defer close(finder.release)

	gate := NewGate(finder, newGateSessions(t), nil, 20*time.Millisecond)

	start := time.Now()
	_, err := gate.Connect(context.Background(), player())
	if apperr.CodeOf(err) != apperr.TicketLookupTimeout {
		t.Fatalf("want TICKET_LOOKUP_TIMEOUT, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("connect must not hang on a stuck finder")
	}
}

func TestGateLookupFailure(t *testing.T) {
	gate := NewGate(failingFinder{}, newGateSessions(t), nil, time.Second)
	_, err := gate.Connect(context.Background(), player())
	if apperr.CodeOf(err) != apperr.Internal {
		t.Fatalf("want INTERNAL, got %v", err)
	}
}

func TestGateAvailabilityFailureIsNotFatal(t *testing.T) {
	gate := NewGate(newTestRepo(t), newGateSessions(t), brokenAvailability{}, time.Second)
	res, err := gate.Connect(context.Background(), player())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if res.Availability.Available {
		t.Fatalf("unknown availability must read as unavailable")
	}
}

func TestGateConcurrentConnectsLeaveOneSession(t *testing.T) {
	ctx := context.Background()
	sessions := newGateSessions(t)
	gate := NewGate(newTestRepo(t), sessions, nil, time.Second).WithClock(func() time.Time { return gateNow })

	var wg sync.WaitGroup
	tokens := make([]string, 2)
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := gate.Connect(ctx, player())
			if err != nil {
				t.Errorf("connect %d: %v", i, err)
				return
			}
			tokens[i] = res.Session.Token
		}(i)
	}
	wg.Wait()

	valid := 0
	for _, tok := range tokens {
		if _, err := sessions.ValidateSession(ctx, tok, gateNow); err == nil {
			valid++
		}
	}
	if valid != 1 {
		t.Fatalf("want exactly one live session, got %d", valid)
	}
}
