// Package redisx provides the Redis client and the Redis-backed stores shared by gateway replicas.
package redisx

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"player-ticket-gateway/internal/config"
	"player-ticket-gateway/internal/logx"
)

var redisLogger = logx.GetScope("redis")

// Client is an alias for a Redis client
type Client = redis.Client

// Open creates a new Redis client based on configuration. It returns nil without error when
// REDIS_ADDR is unset.
func Open(cfg *config.Config) (*Client, func(), error) {
	if cfg.Redis.Addr == "" {
		return nil, func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, func() {}, err
	}
	closer := func() { _ = rdb.Close() }
	return rdb, closer, nil
}

// OpenShared opens the Redis that backs the nonce ledger and session store. A configured but
// unreachable Redis is an error outside local development; local runs log it and get a nil client,
// which selects the in-memory stores.
func OpenShared(cfg *config.Config) (*Client, func(), error) {
	rdb, closer, err := Open(cfg)
	if err == nil {
		if rdb == nil && !logx.IsLocalDev(cfg.AppEnv) {
			redisLogger.Warn("REDIS_ADDR unset; nonces and sessions are not shared between replicas")
		}
		return rdb, closer, nil
	}
	if !logx.IsLocalDev(cfg.AppEnv) {
		return nil, closer, fmt.Errorf("redis %s unreachable: %w", cfg.Redis.Addr, err)
	}
	redisLogger.Warn("redis unreachable; using in-memory ledgers", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	return nil, closer, nil
}
