package mw

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// RequireAdminToken enforces a static bearer token on operator routes.
func RequireAdminToken(token string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get("Authorization")
		if len(authz) <= 7 || !strings.EqualFold(authz[:7], "bearer ") {
			return fiber.ErrUnauthorized
		}
		got := strings.TrimSpace(authz[7:])
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return fiber.ErrForbidden
		}
		return c.Next()
	}
}
