// Package config loads gateway configuration from the environment with optional Apollo overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"player-ticket-gateway/internal/logx"
)

var configLogger = logx.GetScope("config")

// MaxReplayWindow bounds AUTH_REPLAY_WINDOW. Signed requests three hours off are always stale.
const MaxReplayWindow = 3 * time.Hour

// Config holds the application configuration
type Config struct {
	AppEnv string
	Server struct {
		Addr             string
		SocketActivation bool
	}
	Log struct {
		Level  string // debug, info, warn, error
		Format string // text, json
	}
	PG struct {
		URL          string
		MaxOpenConns int
		MaxIdleConns int
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	MQ struct {
		URL      string // RabbitMQ URL
		Exchange string
	}
	ES struct {
		Addrs    string // comma separated
		Username string
		Password string
		Index    string
	}
	Auth struct {
		ReplayWindow  time.Duration
		SignAlgo      string // sha256, md5, blake3
		GlobalSecret  string
		GameSecrets   map[string]string
		SessionTTL    time.Duration
		ChannelTTL    time.Duration
		ChannelSecret string
		GameJWTSecret string
		SweepInterval time.Duration
	}
	Ticket struct {
		LookupTimeout time.Duration
	}
	Schedule struct {
		Hours    string // HH:MM-HH:MM
		Timezone string
	}
	RateLimit struct {
		WindowSec int
		Max       int
	}
	Realtime struct {
		IdleTimeout time.Duration
	}
	Admin struct {
		Token string // bearer token for /api/v1/admin; admin routes are off when empty
	}
	Apollo struct {
		Enable    bool
		AppID     string
		Cluster   string
		Namespace string
		Addrs     string
		AccessKey string
	}
}

// Load loads config from env, and if enabled, overrides with Apollo values.
// Returns config, store, optional apollo closer, and error.
func Load() (*Config, *Store, func(), error) {
	cfg := &Config{}

	cfg.AppEnv = getEnv("APP_ENV", "dev")
	cfg.Server.Addr = getEnv("SERVER_ADDR", ":8080")
	cfg.Server.SocketActivation = getBool("SOCKET_ACTIVATION", false)
	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "text")
	cfg.PG.URL = getEnv("POSTGRES_URL", "")
	cfg.PG.MaxOpenConns = getInt("PG_MAX_OPEN", 10)
	cfg.PG.MaxIdleConns = getInt("PG_MAX_IDLE", 5)

	// Redis
	cfg.Redis.Addr = getEnv("REDIS_ADDR", "")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getInt("REDIS_DB", 0)

	// RabbitMQ
	cfg.MQ.URL = getEnv("RABBITMQ_URL", "")
	cfg.MQ.Exchange = getEnv("RABBITMQ_EXCHANGE", "support.events")

	// Elasticsearch
	cfg.ES.Addrs = getEnv("ES_ADDRS", "")
	cfg.ES.Username = getEnv("ES_USERNAME", "")
	cfg.ES.Password = getEnv("ES_PASSWORD", "")
	cfg.ES.Index = getEnv("ES_CONNECT_INDEX", "player-connects")

	// Auth
	cfg.Auth.ReplayWindow = getDuration("AUTH_REPLAY_WINDOW", 5*time.Minute)
	cfg.Auth.SignAlgo = strings.ToLower(getEnv("AUTH_SIGN_ALGO", "sha256"))
	cfg.Auth.GlobalSecret = getEnv("AUTH_GLOBAL_SECRET", "")
	cfg.Auth.GameSecrets = ParseGameSecrets(getEnv("AUTH_GAME_SECRETS", ""))
	cfg.Auth.SessionTTL = getDuration("AUTH_SESSION_TTL", 2*time.Hour)
	cfg.Auth.ChannelTTL = getDuration("AUTH_CHANNEL_TTL", 2*time.Minute)
	cfg.Auth.ChannelSecret = getEnv("AUTH_CHANNEL_SECRET", "")
	cfg.Auth.GameJWTSecret = getEnv("AUTH_GAME_JWT_SECRET", "")
	cfg.Auth.SweepInterval = getDuration("AUTH_NONCE_SWEEP", time.Minute)

	cfg.Ticket.LookupTimeout = getDuration("TICKET_LOOKUP_TIMEOUT", 3*time.Second)

	cfg.Schedule.Hours = getEnv("SERVICE_HOURS", "09:00-21:00")
	cfg.Schedule.Timezone = getEnv("SERVICE_TZ", "Asia/Shanghai")

	cfg.RateLimit.WindowSec = getInt("RATE_LIMIT_WINDOW_SEC", 60)
	cfg.RateLimit.Max = getInt("RATE_LIMIT_MAX", 30)

	cfg.Realtime.IdleTimeout = getDuration("WS_IDLE_TIMEOUT", time.Minute)

	cfg.Admin.Token = getEnv("ADMIN_TOKEN", "")

	cfg.Apollo.Enable = getBool("APOLLO_ENABLE", false)
	cfg.Apollo.AppID = getEnv("APOLLO_APP_ID", "")
	cfg.Apollo.Cluster = getEnv("APOLLO_CLUSTER", "default")
	cfg.Apollo.Namespace = getEnv("APOLLO_NAMESPACE", "application")
	cfg.Apollo.Addrs = getEnv("APOLLO_ADDRS", "")
	cfg.Apollo.AccessKey = getEnv("APOLLO_ACCESS_KEY", "")

	if err := Validate(cfg); err != nil {
		return nil, nil, nil, err
	}

	store := NewStore(cfg)
	store.AddValidator(func(newCfg *Config, _ map[string]bool) error { return Validate(newCfg) })

	if cfg.Apollo.Enable {
		closer, err := overrideFromApollo(cfg, store)
		if err != nil {
			configLogger.Sugar().Errorf("apollo override failed: %v", err)
			return cfg, store, closer, err
		}
		return store.Get(), store, closer, nil
	}

	return cfg, store, nil, nil
}

// Validate rejects configurations the auth core cannot run safely with.
func Validate(cfg *Config) error {
	if cfg.Auth.ReplayWindow <= 0 || cfg.Auth.ReplayWindow >= MaxReplayWindow {
		return fmt.Errorf("AUTH_REPLAY_WINDOW must be in (0, %s), got %s", MaxReplayWindow, cfg.Auth.ReplayWindow)
	}
	if cfg.Auth.SessionTTL <= 0 {
		return fmt.Errorf("AUTH_SESSION_TTL must be positive, got %s", cfg.Auth.SessionTTL)
	}
	if cfg.Auth.ChannelTTL <= 0 || cfg.Auth.ChannelTTL >= cfg.Auth.SessionTTL {
		return fmt.Errorf("AUTH_CHANNEL_TTL must be positive and shorter than AUTH_SESSION_TTL")
	}
	switch cfg.Auth.SignAlgo {
	case "sha256", "md5", "blake3":
	default:
		return fmt.Errorf("unsupported AUTH_SIGN_ALGO %q", cfg.Auth.SignAlgo)
	}
	if cfg.Ticket.LookupTimeout <= 0 {
		return fmt.Errorf("TICKET_LOOKUP_TIMEOUT must be positive")
	}
	return nil
}

// ParseGameSecrets parses "game1:secret1,game2:secret2". Malformed pairs are skipped.
func ParseGameSecrets(raw string) map[string]string {
	pairs := lo.FilterMap(strings.Split(raw, ","), func(s string, _ int) (lo.Tuple2[string, string], bool) {
		game, secret, ok := strings.Cut(strings.TrimSpace(s), ":")
		game, secret = strings.TrimSpace(game), strings.TrimSpace(secret)
		return lo.T2(game, secret), ok && game != "" && secret != ""
	})
	return lo.SliceToMap(pairs, func(p lo.Tuple2[string, string]) (string, string) { return p.A, p.B })
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	return lo.Ternary(v != "", v, def)
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		configLogger.Sugar().Warnf("invalid duration for %s: %q, using %s", key, v, def)
	}
	return def
}
