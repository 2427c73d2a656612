// Package httpx wires the gateway's HTTP surface onto a Fiber app.
package httpx

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"player-ticket-gateway/internal/audit"
	"player-ticket-gateway/internal/auth"
	"player-ticket-gateway/internal/esx"
	"player-ticket-gateway/internal/httpx/admin"
	"player-ticket-gateway/internal/httpx/mw"
	"player-ticket-gateway/internal/httpx/player"
	"player-ticket-gateway/internal/httpx/realtime"
	"player-ticket-gateway/internal/metrics"
	"player-ticket-gateway/internal/redisx"
	"player-ticket-gateway/internal/ticket"
)

// Deps are the services behind the routes. Tickets, Metrics, Audit and the probes may be nil.
type Deps struct {
	Resolver *auth.IdentityResolver
	Gate     *ticket.Gate
	Sessions *auth.SessionTokenService
	Tickets  *ticket.Repository
	Metrics  *metrics.Metrics
	Audit    *audit.Recorder

	Probes  Probes
	RDB     *redisx.Client
	ES      *esx.Client
	ESIndex string

	RateLimitWindowSec int
	RateLimitMax       int
	AdminToken         string
	ChannelIdle        time.Duration
}

// Register mounts every route on app.
func Register(app *fiber.App, d Deps) {
	app.Get("/health", HealthHandler)
	app.Get("/ready", ReadyHandler(d.Probes))
	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}

	ph := &player.Handlers{
		Resolver: d.Resolver,
		Gate:     d.Gate,
		Sessions: d.Sessions,
		Metrics:  d.Metrics,
		Audit:    d.Audit,
	}
	if d.Tickets != nil {
		ph.Tickets = d.Tickets
	}
	requireSession := mw.RequireSession(d.Sessions, nil)

	v1 := app.Group("/api/v1")
	pg := v1.Group("/player")
	pg.Post("/connect", mw.RateLimit(d.RDB, d.RateLimitWindowSec, d.RateLimitMax, mw.ConnectKey), ph.Connect)
	pg.Get("/session", requireSession, ph.CurrentSession)
	pg.Delete("/session", requireSession, ph.Logout)
	pg.Post("/tickets", requireSession, ph.CreateTicket)

	ch := &realtime.Channel{Sessions: d.Sessions, Metrics: d.Metrics, IdleTimeout: d.ChannelIdle}
	app.Use("/ws", ch.Upgrade)
	app.Get("/ws", ch.Handler())

	if d.AdminToken == "" {
		httpxLogger.Warn("ADMIN_TOKEN unset; admin routes disabled")
		return
	}
	ag := v1.Group("/admin", mw.RequireAdminToken(d.AdminToken))
	ag.Get("/connects", admin.ConnectsHandler(d.ES, d.ESIndex))
	if d.Tickets != nil {
		ag.Get("/tickets/:id", admin.GetTicketHandler(d.Tickets))
		ag.Patch("/tickets/:id/status", admin.UpdateStatusHandler(d.Tickets))
	}
}
