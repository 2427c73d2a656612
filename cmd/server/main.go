// Package main is the entry point for the player ticket gateway
//
//	@title			Player Ticket Gateway API
//	@version		1.0
//	@description	Player authentication and support session gateway for in-game customer service
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes		http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in						header
//	@name					Authorization
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"player-ticket-gateway/internal/audit"
	"player-ticket-gateway/internal/auth"
	"player-ticket-gateway/internal/config"
	"player-ticket-gateway/internal/db"
	"player-ticket-gateway/internal/esx"
	"player-ticket-gateway/internal/httpx"
	"player-ticket-gateway/internal/httpx/kit"
	"player-ticket-gateway/internal/logx"
	"player-ticket-gateway/internal/metrics"
	"player-ticket-gateway/internal/mqx"
	"player-ticket-gateway/internal/redisx"
	"player-ticket-gateway/internal/server"
	"player-ticket-gateway/internal/ticket"
)

// secretCacheTTL bounds how long a game_secrets row is served from memory.
const secretCacheTTL = 30 * time.Second

var mainLogger = logx.GetScope("main")

// windowed ledgers follow the replay window on hot reload.
type windowed interface {
	SetWindow(time.Duration)
}

func main() {
	// Load .env if present
	_ = godotenv.Load()

	// Load config (env first; optional Apollo override)
	cfg, store, apClose, err := config.Load()
	if err != nil {
		panic(err)
	}
	if apClose != nil {
		defer apClose()
	}

	logx.Init(cfg.Log.Level, cfg.Log.Format)
	defer func() { _ = logx.Sync() }()

	mainLogger.Info("config loaded",
		zap.String("env", cfg.AppEnv),
		zap.String("addr", cfg.Server.Addr),
		zap.String("log.level", cfg.Log.Level),
		zap.Duration("auth.replay_window", cfg.Auth.ReplayWindow),
		zap.String("auth.sign_algo", cfg.Auth.SignAlgo),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, store); err != nil {
		mainLogger.Fatal("gateway stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, store *config.Store) error {
	// Ticket storage: PostgreSQL, or in-memory SQLite for local runs
	drv, closeDB, err := db.Open(cfg)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if drv == nil {
		if !logx.IsLocalDev(cfg.AppEnv) {
			return errors.New("POSTGRES_URL is required outside local development")
		}
		mainLogger.Warn("POSTGRES_URL unset; using in-memory sqlite")
		if drv, closeDB, err = db.OpenLocal(); err != nil {
			return fmt.Errorf("open local db: %w", err)
		}
	}
	defer closeDB()

	mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	err = db.Migrate(mctx, drv)
	cancel()
	if err != nil {
		return err
	}

	// Optional deps: Redis, MQ, ES
	rdb, closeRedis, err := redisx.OpenShared(cfg)
	if err != nil {
		return err
	}
	defer closeRedis()

	publisher, closeMQ, err := mqx.Open(cfg)
	if err != nil {
		mainLogger.Warn("mq init failed", zap.Error(err))
	}
	defer closeMQ()

	esClient, closeES, err := esx.Open(cfg)
	if err != nil {
		mainLogger.Warn("es init failed", zap.Error(err))
	}
	defer closeES()

	// Auth core
	digest, err := auth.ParseDigest(cfg.Auth.SignAlgo)
	if err != nil {
		return err
	}
	static := auth.NewStaticRegistry(cfg.Auth.GameSecrets, cfg.Auth.GlobalSecret)
	registry := auth.NewSQLRegistry(drv, static, secretCacheTTL)

	var (
		ledger   auth.NonceLedger
		sessions auth.SessionStore
	)
	if rdb != nil {
		ledger = redisx.NewNonceLedger(rdb, cfg.Auth.ReplayWindow)
		sessions = redisx.NewSessionStore(rdb)
	} else {
		memLedger := auth.NewMemoryNonceLedger(cfg.Auth.ReplayWindow)
		memSessions := auth.NewMemorySessionStore()
		go auth.RunSweeper(ctx, "nonces", memLedger, cfg.Auth.SweepInterval, nil)
		go auth.RunSweeper(ctx, "sessions", memSessions, cfg.Auth.SweepInterval, nil)
		ledger, sessions = memLedger, memSessions
	}

	channelSecret, err := channelSecret(cfg)
	if err != nil {
		return err
	}
	tokens, err := auth.NewSessionTokenService(sessions, auth.SessionConfig{
		SessionTTL:    cfg.Auth.SessionTTL,
		ChannelTTL:    cfg.Auth.ChannelTTL,
		ChannelSecret: channelSecret,
	})
	if err != nil {
		return err
	}
	signatures := auth.NewSignatureVerifier(registry, ledger, digest, cfg.Auth.ReplayWindow)
	resolver := auth.NewIdentityResolver(tokens, auth.NewGameTokenVerifier(registry, cfg.Auth.GameJWTSecret), signatures)

	// Ticket gate
	schedule, err := ticket.ParseSchedule(cfg.Schedule.Hours, cfg.Schedule.Timezone)
	if err != nil {
		return err
	}
	repo := ticket.NewRepository(drv)
	gate := ticket.NewGate(repo, tokens, schedule, cfg.Ticket.LookupTimeout)

	// Metrics and audit trail
	m := metrics.New()
	var sinks []audit.Sink
	if publisher != nil {
		sinks = append(sinks, audit.MQSink(publisher))
	}
	if esClient != nil {
		sinks = append(sinks, audit.ESSink(esClient, cfg.ES.Index))
	}
	recorder := audit.NewRecorder(1024, m.IncAuditDropped, sinks...)
	actx, stopAudit := context.WithCancel(context.Background())
	go recorder.Run(actx)

	// Fiber app and routes
	app := fiber.New(fiber.Config{ErrorHandler: kit.ErrorHandler(), DisableStartupMessage: true})
	httpx.RegisterCommonMiddlewares(app)
	httpx.Register(app, httpx.Deps{
		Resolver:           resolver,
		Gate:               gate,
		Sessions:           tokens,
		Tickets:            repo,
		Metrics:            m,
		Audit:              recorder,
		Probes:             httpx.Probes{DB: drv.DB(), Redis: rdb, ES: esClient},
		RDB:                rdb,
		ES:                 esClient,
		ESIndex:            cfg.ES.Index,
		RateLimitWindowSec: cfg.RateLimit.WindowSec,
		RateLimitMax:       cfg.RateLimit.Max,
		AdminToken:         cfg.Admin.Token,
		ChannelIdle:        cfg.Realtime.IdleTimeout,
	})

	// Watch for dynamic config changes (Apollo)
	store.AddValidator(func(newCfg *config.Config, changed map[string]bool) error {
		if changed["pg.max_open"] || changed["pg.max_idle"] {
			if newCfg.PG.MaxIdleConns > newCfg.PG.MaxOpenConns {
				return fmt.Errorf("PG_MAX_IDLE cannot exceed PG_MAX_OPEN")
			}
		}
		return nil
	})
	store.Watch(func(newCfg *config.Config, changed map[string]bool) {
		if changed["auth.replay_window"] {
			signatures.SetWindow(newCfg.Auth.ReplayWindow)
			if w, ok := ledger.(windowed); ok {
				w.SetWindow(newCfg.Auth.ReplayWindow)
			}
			mainLogger.Info("replay window updated", zap.Duration("window", newCfg.Auth.ReplayWindow))
		}
		if changed["auth.session_ttl"] || changed["auth.channel_ttl"] {
			tokens.SetTTLs(newCfg.Auth.SessionTTL, newCfg.Auth.ChannelTTL)
			mainLogger.Info("token ttls updated",
				zap.Duration("session", newCfg.Auth.SessionTTL),
				zap.Duration("channel", newCfg.Auth.ChannelTTL))
		}
		if changed["auth.game_secrets"] || changed["auth.global_secret"] {
			static.Replace(newCfg.Auth.GameSecrets, newCfg.Auth.GlobalSecret)
			registry.Invalidate("")
			mainLogger.Info("game secrets reloaded", zap.Int("games", len(newCfg.Auth.GameSecrets)))
		}
		if changed["ticket.lookup_timeout"] {
			gate.SetLookupTimeout(newCfg.Ticket.LookupTimeout)
		}
		if changed["pg.max_open"] || changed["pg.max_idle"] {
			db.UpdatePool(newCfg.PG.MaxOpenConns, newCfg.PG.MaxIdleConns)
			mainLogger.Info("db pool updated",
				zap.Int("max_open", newCfg.PG.MaxOpenConns),
				zap.Int("max_idle", newCfg.PG.MaxIdleConns),
			)
		}
		if changed["server.addr"] || changed["pg.url"] || changed["schedule.hours"] || changed["ratelimit.max"] {
			mainLogger.Warn("setting changed; restart required to take effect")
		}
		if changed["log.level"] || changed["log.format"] {
			logx.Init(newCfg.Log.Level, newCfg.Log.Format)
			mainLogger.Info("logger reconfigured",
				zap.String("level", newCfg.Log.Level),
				zap.String("format", newCfg.Log.Format),
			)
		}
	})

	ln, err := server.GetListener(cfg.Server.Addr, cfg.Server.SocketActivation)
	if err != nil {
		stopAudit()
		return fmt.Errorf("listener: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- app.Listener(ln) }()
	mainLogger.Info("server started", zap.String("addr", ln.Addr().String()))

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		mainLogger.Error("fiber exit", zap.Error(err))
	}

	mainLogger.Info("shutting down...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		mainLogger.Warn("http shutdown", zap.Error(err))
	}
	stopAudit()
	select {
	case <-recorder.Done():
	case <-time.After(5 * time.Second):
		mainLogger.Warn("audit queue not drained")
	}
	return nil
}

// channelSecret returns the channel signing secret. Local runs get a random one so that a
// missing setting does not block development; channel tokens then do not survive a restart.
func channelSecret(cfg *config.Config) (string, error) {
	if cfg.Auth.ChannelSecret != "" {
		return cfg.Auth.ChannelSecret, nil
	}
	if !logx.IsLocalDev(cfg.AppEnv) {
		return "", errors.New("AUTH_CHANNEL_SECRET is required outside local development")
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	mainLogger.Warn("AUTH_CHANNEL_SECRET unset; using a random per-process secret")
	return hex.EncodeToString(b), nil
}
