package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"player-ticket-gateway/internal/config"
	"player-ticket-gateway/internal/db"
	"player-ticket-gateway/internal/esx"
	"player-ticket-gateway/internal/httpx/kit/testutil"
	"player-ticket-gateway/internal/httpx/mw"
	"player-ticket-gateway/internal/ticket"
)

const adminToken = "ops"

func newRepo(t *testing.T) *ticket.Repository {
	t.Helper()
	drv, closeDB, err := db.OpenLocal()
	require.NoError(t, err)
	t.Cleanup(closeDB)
	require.NoError(t, db.Migrate(context.Background(), drv))
	return ticket.NewRepository(drv)
}

func newApp(repo TicketStore, es *esx.Client) *fiber.App {
	return testutil.NewApp(func(app *fiber.App) {
		g := app.Group("/admin", mw.RequireAdminToken(adminToken))
		g.Get("/connects", ConnectsHandler(es, "player-connects"))
		g.Get("/tickets/:id", GetTicketHandler(repo))
		g.Patch("/tickets/:id/status", UpdateStatusHandler(repo))
	})
}

func call(t *testing.T, app *fiber.App, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	res, err := app.Test(req)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

func TestUpdateStatusLifecycle(t *testing.T) {
	repo := newRepo(t)
	app := newApp(repo, nil)
	tk, err := repo.Create(context.Background(), &ticket.Ticket{GameID: "g1", AreaID: "a1", UID: "u1", IssueType: "bug"})
	require.NoError(t, err)

	code, body := call(t, app, http.MethodPatch, "/admin/tickets/"+tk.ID+"/status", StatusRequest{Status: ticket.StatusInProgress})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "IN_PROGRESS", body["data"].(map[string]any)["status"])

	code, body = call(t, app, http.MethodPatch, "/admin/tickets/"+tk.ID+"/status", StatusRequest{Status: ticket.StatusWaiting})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "E_INVALID_TRANSITION", body["errorCode"])

	code, body = call(t, app, http.MethodPatch, "/admin/tickets/"+tk.ID+"/status", StatusRequest{Status: ticket.StatusResolved, ClosedBy: "agent-7"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "agent-7", body["data"].(map[string]any)["closedBy"])

	code, body = call(t, app, http.MethodGet, "/admin/tickets/"+tk.ID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "RESOLVED", body["data"].(map[string]any)["status"])

	code, _ = call(t, app, http.MethodPatch, "/admin/tickets/nope/status", StatusRequest{Status: ticket.StatusResolved})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, app, http.MethodPatch, "/admin/tickets/"+tk.ID+"/status", map[string]string{"status": "CLOSED"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCloseWaitingTicketNeedsCloser(t *testing.T) {
	repo := newRepo(t)
	app := newApp(repo, nil)
	tk, err := repo.Create(context.Background(), &ticket.Ticket{GameID: "g1", AreaID: "a1", UID: "u1"})
	require.NoError(t, err)

	code, body := call(t, app, http.MethodPatch, "/admin/tickets/"+tk.ID+"/status", StatusRequest{Status: ticket.StatusResolved, ClosedBy: "  "})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "E_INVALID_TRANSITION", body["errorCode"])

	code, body = call(t, app, http.MethodPatch, "/admin/tickets/"+tk.ID+"/status", StatusRequest{Status: ticket.StatusResolved, ClosedBy: "ops"})
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, "RESOLVED", body["data"].(map[string]any)["status"])
}

func TestConnectsSearch(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		b, _ := io.ReadAll(r.Body)
		seen = r.URL.RawQuery + " " + string(b)
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_source":{"id":"e1","event":"auth.rejected","game_id":"g1","uid":"u1","code":"REPLAY_DETECTED","at":"2026-03-01T12:00:00Z"}}]}}`))
	}))
	defer srv.Close()
	cfg := &config.Config{}
	cfg.ES.Addrs = srv.URL
	es, _, err := esx.Open(cfg)
	require.NoError(t, err)

	app := newApp(newRepo(t), es)
	code, body := call(t, app, http.MethodGet, "/admin/connects?gameid=g1&uid=u1&limit=5&offset=10&sort=at:asc", nil)
	require.Equal(t, http.StatusOK, code, body)
	items := body["data"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "REPLAY_DETECTED", items[0].(map[string]any)["code"])
	assert.Contains(t, seen, "from=10")
	assert.Contains(t, seen, "size=5")
	assert.True(t, strings.Contains(seen, `"at":"asc"`), seen)

	code, _ = call(t, app, http.MethodGet, "/admin/connects?gameid=g1&sort=uid:asc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = call(t, app, http.MethodGet, "/admin/connects", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestConnectsWithoutElasticsearch(t *testing.T) {
	app := newApp(newRepo(t), nil)
	code, body := call(t, app, http.MethodGet, "/admin/connects?gameid=g1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["data"])
}
