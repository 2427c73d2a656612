package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"player-ticket-gateway/internal/apperr"
)

// ExpiredRetention keeps expired sessions around long enough to answer SESSION_EXPIRED instead of
// SESSION_NOT_FOUND.
const ExpiredRetention = 10 * time.Minute

// SessionToken is an opaque credential bound to one identity and optionally one ticket.
type SessionToken struct {
	Token      string    `json:"token"`
	GameID     string    `json:"gameId"`
	AreaID     string    `json:"areaId"`
	UID        string    `json:"uid"`
	PlayerName string    `json:"playerName,omitempty"`
	TicketID   string    `json:"ticketId,omitempty"`
	IssuedAt   time.Time `json:"issuedAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Identity returns the identity the session was issued for.
func (t SessionToken) Identity() PlayerIdentity {
	return PlayerIdentity{
		GameID:     t.GameID,
		AreaID:     t.AreaID,
		UID:        t.UID,
		PlayerName: t.PlayerName,
		AuthMethod: MethodSessionToken,
	}
}

// Key is the identity key of the session.
func (t SessionToken) Key() string {
	return IdentityKey(t.GameID, t.AreaID, t.UID)
}

// SessionStore persists session tokens. Put makes tok the only live session of its identity and
// returns the token it superseded, if any. Get must not return superseded tokens.
type SessionStore interface {
	Put(ctx context.Context, tok SessionToken, retain time.Duration) (superseded string, err error)
	Get(ctx context.Context, token string) (SessionToken, bool, error)
	Delete(ctx context.Context, token string) error
}

// ErrSessionStore wraps storage failures so callers can tell them from auth failures.
var ErrSessionStore = errors.New("session store")

// SessionTokenService issues and validates session tokens and realtime channel tokens.
type SessionTokenService struct {
	store      SessionStore
	channelKey []byte
	sessionTTL atomic.Int64
	channelTTL atomic.Int64
}

// SessionConfig configures SessionTokenService.
type SessionConfig struct {
	SessionTTL    time.Duration
	ChannelTTL    time.Duration
	ChannelSecret string
}

func NewSessionTokenService(store SessionStore, cfg SessionConfig) (*SessionTokenService, error) {
	if cfg.ChannelSecret == "" {
		return nil, errors.New("channel secret is required")
	}
	key, err := deriveKey(cfg.ChannelSecret, channelKeyInfo)
	if err != nil {
		return nil, err
	}
	s := &SessionTokenService{store: store, channelKey: key}
	s.SetTTLs(cfg.SessionTTL, cfg.ChannelTTL)
	return s, nil
}

// SetTTLs changes the lifetime of tokens issued from now on.
func (s *SessionTokenService) SetTTLs(session, channel time.Duration) {
	s.sessionTTL.Store(int64(session))
	s.channelTTL.Store(int64(channel))
}

func (s *SessionTokenService) SessionTTL() time.Duration { return time.Duration(s.sessionTTL.Load()) }
func (s *SessionTokenService) ChannelTTL() time.Duration { return time.Duration(s.channelTTL.Load()) }

// IssueSession creates a session for id, replacing any session the identity already had.
func (s *SessionTokenService) IssueSession(ctx context.Context, id PlayerIdentity, ticketID string, now time.Time) (SessionToken, error) {
	token, err := newTokenID()
	if err != nil {
		return SessionToken{}, err
	}
	ttl := s.SessionTTL()
	tok := SessionToken{
		Token:      token,
		GameID:     id.GameID,
		AreaID:     id.AreaID,
		UID:        id.UID,
		PlayerName: id.PlayerName,
		TicketID:   ticketID,
		IssuedAt:   now,
		ExpiresAt:  now.Add(ttl),
	}
	superseded, err := s.store.Put(ctx, tok, ttl+ExpiredRetention)
	if err != nil {
		return SessionToken{}, fmt.Errorf("%w: put: %w", ErrSessionStore, err)
	}
	if superseded != "" {
		authLogger.Debug("session superseded",
			zap.String("gameId", id.GameID), zap.String("uid", id.UID))
	}
	return tok, nil
}

// ValidateSession returns the live session for token.
func (s *SessionTokenService) ValidateSession(ctx context.Context, token string, now time.Time) (SessionToken, error) {
	if token == "" {
		return SessionToken{}, apperr.New(apperr.SessionNotFound, "session token is empty")
	}
	tok, ok, err := s.store.Get(ctx, token)
	if err != nil {
		return SessionToken{}, apperr.Wrap(apperr.Internal, "load session", fmt.Errorf("%w: %w", ErrSessionStore, err))
	}
	if !ok {
		return SessionToken{}, apperr.New(apperr.SessionNotFound, "session not found")
	}
	if now.After(tok.ExpiresAt) {
		return SessionToken{}, apperr.New(apperr.SessionExpired, "session expired")
	}
	return tok, nil
}

// RevokeSession deletes token. Revoking an unknown token is not an error.
func (s *SessionTokenService) RevokeSession(ctx context.Context, token string) error {
	if err := s.store.Delete(ctx, token); err != nil {
		return fmt.Errorf("%w: delete: %w", ErrSessionStore, err)
	}
	return nil
}

func newTokenID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu         sync.Mutex
	sessions   map[string]memorySession
	byIdentity map[string]string
}

type memorySession struct {
	tok     SessionToken
	purgeAt time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions:   make(map[string]memorySession),
		byIdentity: make(map[string]string),
	}
}

func (m *MemorySessionStore) Put(_ context.Context, tok SessionToken, retain time.Duration) (string, error) {
	key := tok.Key()

	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.byIdentity[key]
	if prev != "" {
		delete(m.sessions, prev)
	}
	m.sessions[tok.Token] = memorySession{tok: tok, purgeAt: tok.IssuedAt.Add(retain)}
	m.byIdentity[key] = tok.Token
	return prev, nil
}

func (m *MemorySessionStore) Get(_ context.Context, token string) (SessionToken, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok || m.byIdentity[s.tok.Key()] != token {
		return SessionToken{}, false, nil
	}
	return s.tok, true, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[token]
	if !ok {
		return nil
	}
	delete(m.sessions, token)
	if key := s.tok.Key(); m.byIdentity[key] == token {
		delete(m.byIdentity, key)
	}
	return nil
}

// Sweep drops sessions past their retention.
func (m *MemorySessionStore) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for token, s := range m.sessions {
		if now.After(s.purgeAt) {
			delete(m.sessions, token)
			if key := s.tok.Key(); m.byIdentity[key] == token {
				delete(m.byIdentity, key)
			}
			n++
		}
	}
	return n
}
