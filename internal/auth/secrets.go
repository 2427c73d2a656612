package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/samber/lo"
)

var (
	// ErrUnknownGame is returned when no secret is configured for a game id.
	ErrUnknownGame = errors.New("game not registered")
	// ErrGameDisabled is returned when a game's credentials have been switched off.
	ErrGameDisabled = errors.New("game disabled")
)

// SecretRegistry looks up the shared secret a game server signs with.
type SecretRegistry interface {
	SecretFor(ctx context.Context, gameID string) (string, error)
}

// StaticRegistry serves secrets from configuration, falling back to a global secret.
// Replace swaps the table atomically so Apollo updates apply without a restart.
type StaticRegistry struct {
	mu      sync.RWMutex
	secrets map[string]string
	global  string
}

func NewStaticRegistry(secrets map[string]string, global string) *StaticRegistry {
	return &StaticRegistry{secrets: lo.Assign(secrets), global: global}
}

func (r *StaticRegistry) SecretFor(_ context.Context, gameID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.secrets[gameID]; ok && s != "" {
		return s, nil
	}
	if r.global != "" {
		return r.global, nil
	}
	return "", ErrUnknownGame
}

// Replace installs a new secret table.
func (r *StaticRegistry) Replace(secrets map[string]string, global string) {
	next := lo.Assign(secrets)
	r.mu.Lock()
	r.secrets = next
	r.global = global
	r.mu.Unlock()
}

// SQLRegistry reads secrets from the game_secrets table and defers to fallback for games it does
// not know. Rows found are cached for ttl; misses are not cached, so unverified game ids cannot
// grow the cache.
type SQLRegistry struct {
	drv      dialect.Driver
	fallback SecretRegistry
	ttl      time.Duration

	mu    sync.Mutex
	cache map[string]cachedSecret
}

type cachedSecret struct {
	secret  string
	enabled bool
	found   bool
	at      time.Time
}

func NewSQLRegistry(drv dialect.Driver, fallback SecretRegistry, ttl time.Duration) *SQLRegistry {
	return &SQLRegistry{drv: drv, fallback: fallback, ttl: ttl, cache: make(map[string]cachedSecret)}
}

func (r *SQLRegistry) SecretFor(ctx context.Context, gameID string) (string, error) {
	entry, err := r.lookup(ctx, gameID)
	if err != nil {
		return "", err
	}
	switch {
	case entry.found && !entry.enabled:
		return "", ErrGameDisabled
	case entry.found:
		return entry.secret, nil
	case r.fallback != nil:
		return r.fallback.SecretFor(ctx, gameID)
	default:
		return "", ErrUnknownGame
	}
}

// Invalidate drops the cached entry for gameID, or every entry when gameID is empty.
func (r *SQLRegistry) Invalidate(gameID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gameID == "" {
		r.cache = make(map[string]cachedSecret)
		return
	}
	delete(r.cache, gameID)
}

// cached reports the number of cached rows.
func (r *SQLRegistry) cached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}

func (r *SQLRegistry) lookup(ctx context.Context, gameID string) (cachedSecret, error) {
	now := time.Now()
	r.mu.Lock()
	entry, ok := r.cache[gameID]
	r.mu.Unlock()
	if ok && now.Sub(entry.at) < r.ttl {
		return entry, nil
	}

	b := entsql.Dialect(r.drv.Dialect())
	query, args := b.Select("secret", "enabled").
		From(b.Table("game_secrets")).
		Where(entsql.EQ("game_id", gameID)).
		Query()
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return cachedSecret{}, fmt.Errorf("query game secret: %w", err)
	}
	defer rows.Close()

	entry = cachedSecret{at: now}
	if rows.Next() {
		if err := rows.Scan(&entry.secret, &entry.enabled); err != nil {
			return cachedSecret{}, fmt.Errorf("scan game secret: %w", err)
		}
		entry.found = true
	} else if err := rows.Err(); err != nil {
		return cachedSecret{}, fmt.Errorf("query game secret: %w", err)
	}

	r.mu.Lock()
	if entry.found {
		r.cache[gameID] = entry
	} else {
		delete(r.cache, gameID)
	}
	r.mu.Unlock()
	return entry, nil
}
