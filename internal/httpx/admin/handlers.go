// Package admin serves operator endpoints: connect audit search and ticket status changes.
package admin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"player-ticket-gateway/internal/esx"
	"player-ticket-gateway/internal/httpx/kit"
	"player-ticket-gateway/internal/ticket"
)

// TicketStore is the part of the ticket repository operators use.
type TicketStore interface {
	Get(ctx context.Context, id string) (*ticket.Ticket, error)
	UpdateStatus(ctx context.Context, id string, next ticket.Status, closedBy string) (*ticket.Ticket, error)
}

// StatusRequest moves a ticket through its lifecycle.
type StatusRequest struct {
	Status   ticket.Status `json:"status"`
	ClosedBy string        `json:"closedBy"`
}

// ConnectsHandler searches the connect audit trail.
//
//	@Summary      Search connects
//	@Description  Connect attempts recorded in Elasticsearch, newest first by default
//	@Tags         admin
//	@Produce      json
//	@Security     BearerAuth
//	@Param        gameid  query     string  true   "game id"
//	@Param        uid     query     string  false  "player uid"
//	@Param        event   query     string  false  "player.connected or auth.rejected"
//	@Param        limit   query     int     false  "page size (1-100)"
//	@Param        offset  query     int     false  "offset"
//	@Param        sort    query     string  false  "at:asc or at:desc"
//	@Success      200     {array}   esx.ConnectDoc
//	@Failure      400     {object}  map[string]interface{}
//	@Failure      401     {object}  map[string]interface{}
//	@Router       /api/v1/admin/connects [get]
func ConnectsHandler(es *esx.Client, index string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		gameID := strings.TrimSpace(c.Query("gameid"))
		if gameID == "" {
			return kit.BadRequest("gameid required", nil)
		}
		pg, err := kit.ParsePaging(c)
		if err != nil {
			return err
		}
		sort, err := kit.ParseSort(pg.Sort, kit.SortSpec{Field: "at", Asc: false}, "at")
		if err != nil {
			return err
		}
		if es == nil {
			return kit.List(c, []esx.ConnectDoc{}, pg.Meta(0))
		}
		ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
		defer cancel()
		docs, err := esx.SearchConnects(ctx, es, index, esx.ConnectQuery{
			GameID: gameID,
			UID:    strings.TrimSpace(c.Query("uid")),
			Event:  strings.TrimSpace(c.Query("event")),
			From:   pg.Offset,
			Size:   pg.Limit,
			Asc:    sort.Asc,
		})
		if err != nil {
			return kit.InternalError("es search failed", nil)
		}
		return kit.List(c, docs, pg.Meta(len(docs)))
	}
}

// GetTicketHandler returns one ticket.
//
//	@Summary      Get ticket
//	@Tags         admin
//	@Produce      json
//	@Security     BearerAuth
//	@Param        id   path      string  true  "ticket id"
//	@Success      200  {object}  ticket.Ticket
//	@Failure      404  {object}  map[string]interface{}
//	@Router       /api/v1/admin/tickets/{id} [get]
func GetTicketHandler(store TicketStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()
		t, err := store.Get(ctx, c.Params("id"))
		if err != nil {
			return ticketError(err)
		}
		return kit.OK(c, t)
	}
}

// UpdateStatusHandler applies a ticket state transition.
//
//	@Summary      Change ticket status
//	@Description  WAITING to IN_PROGRESS or RESOLVED, IN_PROGRESS to RESOLVED. Closing a WAITING ticket requires closedBy.
//	@Tags         admin
//	@Accept       json
//	@Produce      json
//	@Security     BearerAuth
//	@Param        id    path      string               true  "ticket id"
//	@Param        body  body      admin.StatusRequest  true  "target status"
//	@Success      200   {object}  ticket.Ticket
//	@Failure      400   {object}  map[string]interface{}
//	@Failure      404   {object}  map[string]interface{}
//	@Failure      409   {object}  map[string]interface{}
//	@Router       /api/v1/admin/tickets/{id}/status [patch]
func UpdateStatusHandler(store TicketStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req StatusRequest
		if err := c.BodyParser(&req); err != nil || !req.Status.Valid() {
			return kit.BadRequest("valid status required", req.Status)
		}
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()
		t, err := store.UpdateStatus(ctx, c.Params("id"), req.Status, strings.TrimSpace(req.ClosedBy))
		if err != nil {
			return ticketError(err)
		}
		return kit.OK(c, t)
	}
}

func ticketError(err error) error {
	switch {
	case errors.Is(err, ticket.ErrNotFound):
		return kit.NotFound("ticket not found")
	case errors.Is(err, ticket.ErrInvalidTransition):
		return kit.Conflict("E_INVALID_TRANSITION", err.Error(), nil)
	case errors.Is(err, ticket.ErrStatusChanged):
		return kit.Conflict("E_STATUS_CHANGED", "ticket status changed concurrently", nil)
	default:
		return kit.InternalError("ticket store failed", nil)
	}
}
