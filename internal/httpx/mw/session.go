package mw

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"player-ticket-gateway/internal/auth"
)

const sessionLocal = "session"

// SessionToken reads the session token from X-Session-Token, a bearer Authorization header or
// the sessionToken query parameter.
func SessionToken(c *fiber.Ctx) string {
	if tok := strings.TrimSpace(c.Get("X-Session-Token")); tok != "" {
		return tok
	}
	if authz := c.Get("Authorization"); len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return strings.TrimSpace(c.Query("sessionToken"))
}

// RequireSession validates the caller's session token and stores it for the handler.
func RequireSession(sessions *auth.SessionTokenService, clock func() time.Time) fiber.Handler {
	if clock == nil {
		clock = time.Now
	}
	return func(c *fiber.Ctx) error {
		tok, err := sessions.ValidateSession(c.Context(), SessionToken(c), clock())
		if err != nil {
			return err
		}
		c.Locals(sessionLocal, &tok)
		return c.Next()
	}
}

// Session returns the session stored by RequireSession.
func Session(c *fiber.Ctx) *auth.SessionToken {
	tok, _ := c.Locals(sessionLocal).(*auth.SessionToken)
	return tok
}
