package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"player-ticket-gateway/internal/apperr"
)

// Resolution is a resolved identity plus what the credential said about the player's ticket.
type Resolution struct {
	Identity PlayerIdentity
	// TicketID is the ticket a session token was bound to; empty for other methods.
	TicketID string
}

// IdentityResolver turns a connect request into a PlayerIdentity. Exactly one credential variant
// is evaluated; there is no fallthrough to a lower-priority variant on failure.
type IdentityResolver struct {
	sessions   *SessionTokenService
	gameTokens *GameTokenVerifier
	signatures *SignatureVerifier
	clock      func() time.Time
}

func NewIdentityResolver(sessions *SessionTokenService, gameTokens *GameTokenVerifier, signatures *SignatureVerifier) *IdentityResolver {
	return &IdentityResolver{sessions: sessions, gameTokens: gameTokens, signatures: signatures, clock: time.Now}
}

// WithClock replaces the time source.
func (r *IdentityResolver) WithClock(clock func() time.Time) *IdentityResolver {
	r.clock = clock
	return r
}

func (r *IdentityResolver) Resolve(ctx context.Context, req ConnectRequest) (Resolution, error) {
	creds, err := Classify(req)
	if err != nil {
		return Resolution{}, err
	}
	now := r.clock()

	res, err := r.resolve(ctx, creds, req.PlayerName, now)
	if err != nil {
		authLogger.Warn("identity rejected",
			zap.String("method", string(creds.Method())),
			zap.String("code", string(apperr.CodeOf(err))),
			zap.Error(err))
		return Resolution{}, err
	}
	return res, nil
}

func (r *IdentityResolver) resolve(ctx context.Context, creds Credentials, playerName string, now time.Time) (Resolution, error) {
	switch c := creds.(type) {
	case SessionCredentials:
		tok, err := r.sessions.ValidateSession(ctx, c.Token, now)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Identity: tok.Identity().withName(playerName), TicketID: tok.TicketID}, nil

	case GameTokenCredentials:
		id, err := r.gameTokens.Verify(ctx, c.Token, now)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Identity: id.withName(playerName)}, nil

	case SignatureCredentials:
		signed, err := ParseSigned(c, playerName)
		if err != nil {
			return Resolution{}, err
		}
		id, err := r.signatures.Verify(ctx, signed, now)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Identity: id}, nil

	default:
		return Resolution{}, fmt.Errorf("unsupported credentials %T", creds)
	}
}
