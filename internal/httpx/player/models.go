package player

import (
	"time"

	"player-ticket-gateway/internal/auth"
	"player-ticket-gateway/internal/ticket"
)

// ConnectResponse is the payload of a successful connect.
type ConnectResponse struct {
	SessionToken     string              `json:"sessionToken"`
	SessionExpiresAt time.Time           `json:"sessionExpiresAt"`
	ChannelToken     string              `json:"channelToken"`
	ChannelExpiresAt time.Time           `json:"channelExpiresAt"`
	Player           auth.PlayerIdentity `json:"player"`
	ActiveTicket     *ticket.Summary     `json:"activeTicket"`
	HasActiveTicket  bool                `json:"hasActiveTicket"`
	Available        bool                `json:"available"`
	WorkingHours     string              `json:"workingHours,omitempty"`
}

func newConnectResponse(r ticket.ConnectResult) ConnectResponse {
	return ConnectResponse{
		SessionToken:     r.Session.Token,
		SessionExpiresAt: r.Session.ExpiresAt,
		ChannelToken:     r.ChannelToken,
		ChannelExpiresAt: r.ChannelExpiresAt,
		Player:           r.Identity,
		ActiveTicket:     r.ActiveTicket,
		HasActiveTicket:  r.ActiveTicket != nil,
		Available:        r.Availability.Available,
		WorkingHours:     r.Availability.WorkingHours,
	}
}

// SessionResponse describes the caller's current session.
type SessionResponse struct {
	Player    auth.PlayerIdentity `json:"player"`
	TicketID  string              `json:"ticketId,omitempty"`
	IssuedAt  time.Time           `json:"issuedAt"`
	ExpiresAt time.Time           `json:"expiresAt"`
}

// CreateTicketRequest opens a ticket for the session's player.
type CreateTicketRequest struct {
	IssueType   string `json:"issueType"`
	Description string `json:"description"`
}
