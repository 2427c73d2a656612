// Package player serves the player-facing connect and session endpoints.
package player

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"player-ticket-gateway/internal/apperr"
	"player-ticket-gateway/internal/audit"
	"player-ticket-gateway/internal/auth"
	"player-ticket-gateway/internal/httpx/kit"
	"player-ticket-gateway/internal/httpx/mw"
	"player-ticket-gateway/internal/metrics"
	"player-ticket-gateway/internal/ticket"
)

// TicketCreator opens tickets.
type TicketCreator interface {
	Create(ctx context.Context, t *ticket.Ticket) (*ticket.Ticket, error)
}

// Handlers bundles what the player endpoints depend on. Metrics and Audit may be nil.
type Handlers struct {
	Resolver *auth.IdentityResolver
	Gate     *ticket.Gate
	Sessions *auth.SessionTokenService
	Tickets  TicketCreator
	Metrics  *metrics.Metrics
	Audit    *audit.Recorder
}

// Connect authenticates a player and opens a support session.
//
//	@Summary      Player connect
//	@Description  Resolve the player from a session token, a game JWT or signed fields, then issue session and channel tokens
//	@Tags         player
//	@Accept       json
//	@Produce      json
//	@Param        body  body      auth.ConnectRequest  true  "credentials"
//	@Success      200   {object}  player.ConnectResponse
//	@Failure      400   {object}  map[string]interface{}
//	@Failure      401   {object}  map[string]interface{}
//	@Failure      409   {object}  map[string]interface{}  "replayed nonce"
//	@Failure      429   {object}  map[string]interface{}
//	@Failure      504   {object}  map[string]interface{}  "ticket lookup timed out"
//	@Router       /api/v1/player/connect [post]
func (h *Handlers) Connect(c *fiber.Ctx) error {
	var req auth.ConnectRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return kit.BadRequest("malformed connect body", err.Error())
		}
	} else if err := c.QueryParser(&req); err != nil {
		return kit.BadRequest("malformed connect query", err.Error())
	}
	if req.SessionToken == "" {
		req.SessionToken = strings.TrimSpace(c.Get("X-Session-Token"))
	}
	method := string(auth.MethodOf(req))

	res, err := h.Resolver.Resolve(c.Context(), req)
	if err != nil {
		h.Metrics.ObserveAuth(method, string(apperr.CodeOf(err)))
		h.Audit.Record(audit.Event{
			Type: audit.EventRejected, GameID: req.GameID, AreaID: req.AreaID, UID: req.UID,
			AuthMethod: method, Code: string(apperr.CodeOf(err)), RemoteIP: c.IP(), RequestID: kit.RequestID(c),
		})
		return err
	}
	h.Metrics.ObserveAuth(method, "OK")

	start := time.Now()
	out, err := h.Gate.Connect(c.Context(), res)
	h.Metrics.ObserveGate(time.Since(start))
	if err != nil {
		return err
	}
	h.Metrics.IncSessions()

	id := out.Identity
	h.Audit.Record(audit.Event{
		Type: audit.EventConnected, GameID: id.GameID, AreaID: id.AreaID, UID: id.UID,
		AuthMethod: string(id.AuthMethod), TicketID: out.Session.TicketID, RemoteIP: c.IP(), RequestID: kit.RequestID(c),
	})
	return kit.OK(c, newConnectResponse(out))
}

// CurrentSession returns the caller's session.
//
//	@Summary      Current session
//	@Tags         player
//	@Produce      json
//	@Param        X-Session-Token  header    string  true  "session token"
//	@Success      200              {object}  player.SessionResponse
//	@Failure      401              {object}  map[string]interface{}
//	@Router       /api/v1/player/session [get]
func (h *Handlers) CurrentSession(c *fiber.Ctx) error {
	tok := mw.Session(c)
	return kit.OK(c, SessionResponse{
		Player:    tok.Identity(),
		TicketID:  tok.TicketID,
		IssuedAt:  tok.IssuedAt,
		ExpiresAt: tok.ExpiresAt,
	})
}

// Logout revokes the caller's session.
//
//	@Summary      Revoke session
//	@Tags         player
//	@Produce      json
//	@Param        X-Session-Token  header  string  true  "session token"
//	@Success      204
//	@Failure      401  {object}  map[string]interface{}
//	@Router       /api/v1/player/session [delete]
func (h *Handlers) Logout(c *fiber.Ctx) error {
	if err := h.Sessions.RevokeSession(c.Context(), mw.Session(c).Token); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CreateTicket opens a ticket for the session's player.
//
//	@Summary      Open ticket
//	@Tags         player
//	@Accept       json
//	@Produce      json
//	@Param        X-Session-Token  header    string                      true  "session token"
//	@Param        body             body      player.CreateTicketRequest  true  "ticket"
//	@Success      201              {object}  ticket.Summary
//	@Failure      400              {object}  map[string]interface{}
//	@Failure      401              {object}  map[string]interface{}
//	@Failure      409              {object}  map[string]interface{}  "an active ticket already exists"
//	@Router       /api/v1/player/tickets [post]
func (h *Handlers) CreateTicket(c *fiber.Ctx) error {
	if h.Tickets == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "ticket storage is not configured")
	}
	var req CreateTicketRequest
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.IssueType) == "" {
		return kit.BadRequest("issueType required", nil)
	}
	tok := mw.Session(c)
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	t, err := h.Tickets.Create(ctx, &ticket.Ticket{
		GameID:      tok.GameID,
		AreaID:      tok.AreaID,
		UID:         tok.UID,
		PlayerName:  tok.PlayerName,
		IssueType:   strings.TrimSpace(req.IssueType),
		Description: req.Description,
	})
	if errors.Is(err, ticket.ErrActiveTicketExists) {
		return kit.Conflict("E_ACTIVE_TICKET", "player already has an active ticket", t.Summary())
	}
	if err != nil {
		return kit.InternalError("create ticket failed", nil)
	}
	return kit.Created(c, t.Summary())
}
