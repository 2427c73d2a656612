package ticket

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"player-ticket-gateway/internal/apperr"
	"player-ticket-gateway/internal/auth"
	"player-ticket-gateway/internal/logx"
)

var gateLogger = logx.GetScope("ticket")

// ConnectResult is what a successfully authenticated player receives.
type ConnectResult struct {
	Identity         auth.PlayerIdentity
	Session          auth.SessionToken
	ChannelToken     string
	ChannelExpiresAt time.Time
	ActiveTicket     *Summary
	Availability     Availability
}

// Gate looks up the player's active ticket and issues the session and channel tokens. It never
// creates or mutates tickets.
type Gate struct {
	finder        Finder
	sessions      *auth.SessionTokenService
	availability  AvailabilityProvider
	lookupTimeout atomic.Int64
	clock         func() time.Time
}

func NewGate(finder Finder, sessions *auth.SessionTokenService, availability AvailabilityProvider, lookupTimeout time.Duration) *Gate {
	g := &Gate{finder: finder, sessions: sessions, availability: availability, clock: time.Now}
	g.SetLookupTimeout(lookupTimeout)
	return g
}

// WithClock replaces the time source.
func (g *Gate) WithClock(clock func() time.Time) *Gate {
	g.clock = clock
	return g
}

// SetLookupTimeout bounds the external calls of subsequent connects.
func (g *Gate) SetLookupTimeout(d time.Duration) {
	g.lookupTimeout.Store(int64(d))
}

// Connect runs the gate for an already resolved player.
func (g *Gate) Connect(ctx context.Context, res auth.Resolution) (ConnectResult, error) {
	id := res.Identity
	now := g.clock()

	lctx, cancel := context.WithTimeout(ctx, time.Duration(g.lookupTimeout.Load()))
	defer cancel()

	active, avail, err := g.lookup(lctx, id, now)
	if err != nil {
		return ConnectResult{}, g.timeoutOr(lctx, err, "ticket lookup")
	}
	if res.TicketID != "" && (active == nil || active.ID != res.TicketID) {
		gateLogger.Info("session ticket no longer active",
			zap.String("game_id", id.GameID), zap.String("uid", id.UID), zap.String("ticket_id", res.TicketID))
	}

	ticketID := ""
	if active != nil {
		ticketID = active.ID
	}
	session, err := g.sessions.IssueSession(lctx, id, ticketID, now)
	if err != nil {
		return ConnectResult{}, g.timeoutOr(lctx, err, "issue session")
	}
	channel, channelExp, err := g.sessions.IssueChannelToken(id, now)
	if err != nil {
		return ConnectResult{}, apperr.Wrap(apperr.Internal, "issue channel token", err)
	}

	return ConnectResult{
		Identity:         id,
		Session:          session,
		ChannelToken:     channel,
		ChannelExpiresAt: channelExp,
		ActiveTicket:     active.Summary(),
		Availability:     avail,
	}, nil
}

// lookup fetches the active ticket and availability concurrently. It returns as soon as ctx is
// done even if a collaborator ignores cancellation.
func (g *Gate) lookup(ctx context.Context, id auth.PlayerIdentity, now time.Time) (*Ticket, Availability, error) {
	type result struct {
		active *Ticket
		avail  Availability
		err    error
	}
	done := make(chan result, 1)

	go func() {
		var r result
		eg, ectx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			t, err := g.finder.FindActiveTicket(ectx, id.GameID, id.AreaID, id.UID)
			if err != nil {
				return err
			}
			if t != nil && !t.Status.Active() {
				return fmt.Errorf("finder returned ticket %s in status %s", t.ID, t.Status)
			}
			r.active = t
			return nil
		})
		if g.availability != nil {
			eg.Go(func() error {
				a, err := g.availability.Availability(ectx, id.GameID, now)
				if err != nil {
					gateLogger.Warn("availability unknown", zap.String("game_id", id.GameID), zap.Error(err))
					return nil
				}
				r.avail = a
				return nil
			})
		}
		r.err = eg.Wait()
		done <- r
	}()

	select {
	case r := <-done:
		return r.active, r.avail, r.err
	case <-ctx.Done():
		return nil, Availability{}, ctx.Err()
	}
}

func (g *Gate) timeoutOr(ctx context.Context, err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Wrap(apperr.TicketLookupTimeout, op+" timed out", err)
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	return apperr.Wrap(apperr.Internal, op, err)
}
