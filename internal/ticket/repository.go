package ticket

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
)

// Finder looks up a player's active ticket. It returns (nil, nil) when the player has none.
type Finder interface {
	FindActiveTicket(ctx context.Context, gameID, areaID, uid string) (*Ticket, error)
}

// Repository stores tickets through an Ent dialect driver. Queries are built with the dialect's
// SQL builder, so the same code serves PostgreSQL and SQLite.
type Repository struct {
	drv dialect.Driver
	now func() time.Time
}

func NewRepository(drv dialect.Driver) *Repository {
	return &Repository{drv: drv, now: time.Now}
}

const ticketsTable = "tickets"

var ticketColumns = []string{
	"id", "game_id", "area_id", "uid", "player_name", "status", "issue_type", "description",
	"closed_by", "created_at", "updated_at", "closed_at",
}

func (r *Repository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

// queryOne runs a select and scans its first row. It returns (nil, nil) when nothing matches.
func (r *Repository) queryOne(ctx context.Context, sel *entsql.Selector) (*Ticket, error) {
	query, args := sel.Query()
	rows := &entsql.Rows{}
	if err := r.drv.Query(ctx, query, args, rows); err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanTicket(rows)
}

func (r *Repository) exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	var res sql.Result
	if err := r.drv.Exec(ctx, query, args, &res); err != nil {
		return nil, err
	}
	return res, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*Ticket, error) {
	var (
		t                Ticket
		status           string
		created, updated int64
		closedAt         sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.GameID, &t.AreaID, &t.UID, &t.PlayerName, &status, &t.IssueType,
		&t.Description, &t.ClosedBy, &created, &updated, &closedAt); err != nil {
		return nil, err
	}
	t.Status = Status(status)
	t.CreatedAt = time.UnixMilli(created)
	t.UpdatedAt = time.UnixMilli(updated)
	if closedAt.Valid {
		at := time.UnixMilli(closedAt.Int64)
		t.ClosedAt = &at
	}
	return &t, nil
}

// Create inserts a new WAITING ticket. A player may hold only one active ticket.
func (r *Repository) Create(ctx context.Context, t *Ticket) (*Ticket, error) {
	if existing, err := r.FindActiveTicket(ctx, t.GameID, t.AreaID, t.UID); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, ErrActiveTicketExists
	}

	now := r.now()
	created := *t
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	created.Status = StatusWaiting
	created.CreatedAt = now
	created.UpdatedAt = now
	created.ClosedAt = nil
	created.ClosedBy = ""

	query, args := r.builder().Insert(ticketsTable).
		Columns(ticketColumns...).
		Values(created.ID, created.GameID, created.AreaID, created.UID, created.PlayerName, string(created.Status),
			created.IssueType, created.Description, created.ClosedBy, now.UnixMilli(), now.UnixMilli(), nil).
		Query()
	if _, err := r.exec(ctx, query, args); err != nil {
		// the partial unique index rejects a concurrent second active ticket
		if existing, ferr := r.FindActiveTicket(ctx, t.GameID, t.AreaID, t.UID); ferr == nil && existing != nil {
			return existing, ErrActiveTicketExists
		}
		return nil, fmt.Errorf("insert ticket: %w", err)
	}
	return &created, nil
}

// Get returns the ticket with id.
func (r *Repository) Get(ctx context.Context, id string) (*Ticket, error) {
	b := r.builder()
	t, err := r.queryOne(ctx, b.Select(ticketColumns...).
		From(b.Table(ticketsTable)).
		Where(entsql.EQ("id", id)))
	if err != nil {
		return nil, fmt.Errorf("get ticket: %w", err)
	}
	if t == nil {
		return nil, ErrNotFound
	}
	return t, nil
}

func (r *Repository) FindActiveTicket(ctx context.Context, gameID, areaID, uid string) (*Ticket, error) {
	b := r.builder()
	t, err := r.queryOne(ctx, b.Select(ticketColumns...).
		From(b.Table(ticketsTable)).
		Where(entsql.And(
			entsql.EQ("game_id", gameID),
			entsql.EQ("area_id", areaID),
			entsql.EQ("uid", uid),
			entsql.NEQ("status", string(StatusResolved)),
		)).
		OrderBy(entsql.Desc("created_at")).
		Limit(1))
	if err != nil {
		return nil, fmt.Errorf("find active ticket: %w", err)
	}
	return t, nil
}

// UpdateStatus applies a state machine transition. The update is conditional on the status read,
// so two racing transitions cannot both win.
func (r *Repository) UpdateStatus(ctx context.Context, id string, next Status, closedBy string) (*Ticket, error) {
	t, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := t.Status
	if err := t.Transition(next, closedBy, r.now()); err != nil {
		return nil, err
	}

	var closedAt any
	if t.ClosedAt != nil {
		closedAt = t.ClosedAt.UnixMilli()
	}
	query, args := r.builder().Update(ticketsTable).
		Set("status", string(t.Status)).
		Set("closed_by", t.ClosedBy).
		Set("updated_at", t.UpdatedAt.UnixMilli()).
		Set("closed_at", closedAt).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("status", string(prev)))).
		Query()
	res, err := r.exec(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("update ticket status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrStatusChanged
	}
	return t, nil
}
