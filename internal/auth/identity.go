// Package auth resolves which credential a player connects with, verifies it, and issues the
// session and realtime-channel tokens derived from a successful authentication.
package auth

import "strings"

// AuthMethod names the credential a PlayerIdentity was resolved from.
type AuthMethod string

const (
	MethodSessionToken AuthMethod = "SESSION_TOKEN"
	MethodJWT          AuthMethod = "JWT"
	MethodSignature    AuthMethod = "SIGNATURE"
)

// PlayerIdentity is the canonical result of authentication. It is built once per request and never mutated.
type PlayerIdentity struct {
	GameID     string     `json:"gameId"`
	AreaID     string     `json:"areaId"`
	UID        string     `json:"uid"`
	PlayerName string     `json:"playerName,omitempty"`
	AuthMethod AuthMethod `json:"authMethod"`
}

// Key identifies the player across auth methods; one live session exists per key.
func (p PlayerIdentity) Key() string {
	return IdentityKey(p.GameID, p.AreaID, p.UID)
}

// IdentityKey joins the identity triple with a separator that cannot appear in trimmed ids.
func IdentityKey(gameID, areaID, uid string) string {
	return strings.Join([]string{gameID, areaID, uid}, "\x1f")
}

func (p PlayerIdentity) withName(name string) PlayerIdentity {
	if name = strings.TrimSpace(name); name != "" {
		p.PlayerName = name
	}
	return p
}
