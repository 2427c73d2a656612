package mw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"player-ticket-gateway/internal/auth"
	"player-ticket-gateway/internal/httpx/kit/testutil"
)

func hit(t *testing.T, app *fiber.App, req *http.Request) int {
	t.Helper()
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return res.StatusCode
}

func connectReq(game string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/connect", strings.NewReader(`{"gameid":"`+game+`"}`))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRateLimitInMemory(t *testing.T) {
	app := testutil.NewApp(func(app *fiber.App) {
		app.Post("/connect", RateLimit(nil, 60, 2, ConnectKey), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })
	})
	for i := 0; i < 2; i++ {
		if code := hit(t, app, connectReq("g1")); code != http.StatusNoContent {
			t.Fatalf("request %d: status %d", i, code)
		}
	}
	if code := hit(t, app, connectReq("g1")); code != http.StatusTooManyRequests {
		t.Fatalf("third request: status %d", code)
	}
	if code := hit(t, app, connectReq("g2")); code != http.StatusNoContent {
		t.Fatalf("other game has its own budget: status %d", code)
	}
}

func TestRateLimitRedis(t *testing.T) {
	mini := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	defer rdb.Close()

	app := testutil.NewApp(func(app *fiber.App) {
		app.Post("/connect", RateLimit(rdb, 60, 1, ConnectKey), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })
	})
	if code := hit(t, app, connectReq("g1")); code != http.StatusNoContent {
		t.Fatalf("first request: status %d", code)
	}
	res, err := app.Test(connectReq("g1"))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if res.StatusCode != http.StatusTooManyRequests || res.Header.Get("Retry-After") != "60" {
		t.Fatalf("second request: status %d, retry-after %q", res.StatusCode, res.Header.Get("Retry-After"))
	}
	mini.FastForward(61 * time.Second)
	if code := hit(t, app, connectReq("g1")); code != http.StatusNoContent {
		t.Fatalf("after window: status %d", code)
	}
}

func TestRequireSession(t *testing.T) {
	sessions, err := auth.NewSessionTokenService(auth.NewMemorySessionStore(), auth.SessionConfig{
		SessionTTL: time.Hour, ChannelTTL: time.Minute, ChannelSecret: "mw",
	})
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	tok, err := sessions.IssueSession(context.Background(), auth.PlayerIdentity{GameID: "g", UID: "u"}, "", time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	app := testutil.NewApp(func(app *fiber.App) {
		app.Get("/me", RequireSession(sessions, nil), func(c *fiber.Ctx) error {
			return c.SendString(Session(c).UID)
		})
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-Session-Token", tok.Token)
	if code := hit(t, app, req); code != http.StatusOK {
		t.Fatalf("valid session: status %d", code)
	}

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	if code := hit(t, app, req); code != http.StatusOK {
		t.Fatalf("bearer session: status %d", code)
	}

	if code := hit(t, app, httptest.NewRequest(http.MethodGet, "/me?sessionToken=nope", nil)); code != http.StatusUnauthorized {
		t.Fatalf("unknown session: status %d", code)
	}
}

func TestRequireAdminToken(t *testing.T) {
	app := testutil.NewApp(func(app *fiber.App) {
		app.Get("/admin", RequireAdminToken("s3cret"), func(c *fiber.Ctx) error { return c.SendStatus(http.StatusNoContent) })
	})
	cases := map[string]int{
		"":              http.StatusUnauthorized,
		"Basic abc":     http.StatusUnauthorized,
		"Bearer wrong":  http.StatusForbidden,
		"Bearer s3cret": http.StatusNoContent,
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		if code := hit(t, app, req); code != want {
			t.Errorf("Authorization %q: status %d, want %d", header, code, want)
		}
	}
}
