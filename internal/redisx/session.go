package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"player-ticket-gateway/internal/auth"
)

// SessionStore keeps session:<token> JSON records plus a session:idx:<identity> pointer to the
// identity's live token.
type SessionStore struct {
	rdb *Client
}

func NewSessionStore(rdb *Client) *SessionStore {
	return &SessionStore{rdb: rdb}
}

const (
	sessionPrefix = "session:"
	indexPrefix   = "session:idx:"
)

// putScript swaps the identity's live token and drops the superseded record in one step.
var putScript = redis.NewScript(`
local prev = redis.call('GET', KEYS[2])
if prev and prev ~= ARGV[1] then redis.call('DEL', ARGV[3] .. prev) end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[4])
redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[4])
if prev then return prev end
return ''`)

var deleteScript = redis.NewScript(`
redis.call('DEL', KEYS[1])
if redis.call('GET', KEYS[2]) == ARGV[1] then redis.call('DEL', KEYS[2]) end
return 1`)

func (s *SessionStore) Put(ctx context.Context, tok auth.SessionToken, retain time.Duration) (string, error) {
	payload, err := json.Marshal(tok)
	if err != nil {
		return "", err
	}
	res, err := putScript.Run(ctx, s.rdb,
		[]string{sessionPrefix + tok.Token, indexPrefix + tok.Key()},
		tok.Token, payload, sessionPrefix, retain.Milliseconds(),
	).Text()
	if err != nil {
		return "", fmt.Errorf("put session: %w", err)
	}
	return res, nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (auth.SessionToken, bool, error) {
	raw, err := s.rdb.Get(ctx, sessionPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return auth.SessionToken{}, false, nil
	}
	if err != nil {
		return auth.SessionToken{}, false, fmt.Errorf("get session: %w", err)
	}
	var tok auth.SessionToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return auth.SessionToken{}, false, fmt.Errorf("decode session: %w", err)
	}

	live, err := s.rdb.Get(ctx, indexPrefix+tok.Key()).Result()
	if errors.Is(err, redis.Nil) || (err == nil && live != token) {
		return auth.SessionToken{}, false, nil
	}
	if err != nil {
		return auth.SessionToken{}, false, fmt.Errorf("get session index: %w", err)
	}
	return tok, true, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	tok, ok, err := s.Get(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		return s.rdb.Del(ctx, sessionPrefix+token).Err()
	}
	if err := deleteScript.Run(ctx, s.rdb,
		[]string{sessionPrefix + token, indexPrefix + tok.Key()}, token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var _ auth.SessionStore = (*SessionStore)(nil)
