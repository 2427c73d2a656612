// Package ticket holds the support ticket model, its status state machine, the SQL repository and
// the TicketGate that turns an authenticated player into a connect result.
package ticket

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusWaiting    Status = "WAITING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
)

var (
	ErrNotFound           = errors.New("ticket not found")
	ErrInvalidTransition  = errors.New("invalid ticket status transition")
	ErrActiveTicketExists = errors.New("player already has an active ticket")
	ErrStatusChanged      = errors.New("ticket status changed concurrently")
)

// transitions lists the allowed moves. WAITING -> RESOLVED skips a step and is only taken by an
// operator closing an unstarted ticket, so it requires closedBy.
var transitions = map[Status][]Status{
	StatusWaiting:    {StatusInProgress, StatusResolved},
	StatusInProgress: {StatusResolved},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusInProgress, StatusResolved:
		return true
	}
	return false
}

// Active reports whether a ticket in status s counts as the player's active ticket.
func (s Status) Active() bool {
	return s.Valid() && s != StatusResolved
}

// CanTransition reports whether from -> to is allowed. RESOLVED is terminal.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Ticket is a player's support case.
type Ticket struct {
	ID          string     `json:"id"`
	GameID      string     `json:"gameId"`
	AreaID      string     `json:"areaId"`
	UID         string     `json:"uid"`
	PlayerName  string     `json:"playerName,omitempty"`
	Status      Status     `json:"status"`
	IssueType   string     `json:"issueType"`
	Description string     `json:"description"`
	ClosedBy    string     `json:"closedBy,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	ClosedAt    *time.Time `json:"closedAt,omitempty"`
}

// Summary is the part of an active ticket a reconnecting player is shown.
type Summary struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	IssueType   string    `json:"issueType"`
	Description string    `json:"description"`
}

func (t *Ticket) Summary() *Summary {
	if t == nil {
		return nil
	}
	return &Summary{
		ID:          t.ID,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		IssueType:   t.IssueType,
		Description: t.Description,
	}
}

// Transition moves t to status next, recording who closed it when next is RESOLVED.
func (t *Ticket) Transition(next Status, closedBy string, now time.Time) error {
	if !CanTransition(t.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	if t.Status == StatusWaiting && next == StatusResolved && closedBy == "" {
		return fmt.Errorf("%w: closing a %s ticket requires closedBy", ErrInvalidTransition, t.Status)
	}
	t.Status = next
	t.UpdatedAt = now
	if next == StatusResolved {
		t.ClosedBy = closedBy
		t.ClosedAt = &now
	}
	return nil
}
