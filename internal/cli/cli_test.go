package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"player-ticket-gateway/internal/auth"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSignMatchesVerifierCanonicalForm(t *testing.T) {
	out, err := execute(t, "sign", "-o", "json", "--game", "g1", "--uid", "u1", "--area", "a1",
		"--secret", "s1", "--nonce", "n1", "--ts", "1700000000000", "--algo", "blake3")
	require.NoError(t, err)

	var req auth.ConnectRequest
	require.NoError(t, json.Unmarshal([]byte(out), &req))
	assert.Equal(t, "1700000000000", req.Timestamp)
	assert.Equal(t, auth.Sign(auth.DigestBLAKE3, "g1", "u1", "a1", 1700000000000, "n1", "s1"), req.Sign)
}

func TestSignRequiresSecret(t *testing.T) {
	t.Setenv("GAME_SECRET", "")
	_, err := execute(t, "sign", "--game", "g1", "--uid", "u1")
	assert.ErrorContains(t, err, "secret")
}

func TestConnectPostsSignedFields(t *testing.T) {
	var got auth.ConnectRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/player/connect", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":true,"data":{"sessionToken":"st","channelToken":"ct","hasActiveTicket":false,"available":true}}`))
	}))
	defer srv.Close()

	out, err := execute(t, "connect", "--server", srv.URL, "--game", "g1", "--uid", "u1", "--secret", "s1")
	require.NoError(t, err)
	assert.Contains(t, out, "sessionToken: st")
	assert.Equal(t, "g1", got.GameID)
	assert.NotEmpty(t, got.Nonce)
	ts, err := strconv.ParseInt(got.Timestamp, 10, 64)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), time.UnixMilli(ts), time.Minute)
}

func TestConnectSurfacesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"result":false,"error":"nonce already used","errorCode":"REPLAY_DETECTED","request_id":"r1"}`))
	}))
	defer srv.Close()

	_, err := execute(t, "connect", "--server", srv.URL, "--session", "abc")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "REPLAY_DETECTED", apiErr.Code)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
}

func TestChannelInspect(t *testing.T) {
	sessions, err := auth.NewSessionTokenService(auth.NewMemorySessionStore(), auth.SessionConfig{
		SessionTTL: time.Hour, ChannelTTL: time.Minute, ChannelSecret: "cli",
	})
	require.NoError(t, err)
	now := time.Now()
	tok, _, err := sessions.IssueChannelToken(auth.PlayerIdentity{GameID: "g1", UID: "u1", AuthMethod: auth.MethodJWT}, now)
	require.NoError(t, err)

	info, err := InspectChannelToken(tok, now)
	require.NoError(t, err)
	assert.Equal(t, "HS256", info.Algorithm)
	assert.Equal(t, "ws", info.Type)
	assert.Empty(t, info.AreaID)
	assert.True(t, info.AreaDefault)
	assert.Equal(t, "JWT", info.Method)
	assert.False(t, info.Expired)
	assert.NotEmpty(t, info.ExpiresIn)

	info, err = InspectChannelToken(tok, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, info.Expired)

	_, err = execute(t, "channel", "inspect", "not-a-token")
	assert.Error(t, err)
}

func TestAdminRequiresToken(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "")
	_, err := execute(t, "admin", "connects", "--game", "g1")
	assert.ErrorContains(t, err, "admin-token")
}

func TestAdminStatusSendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ops", r.Header.Get("Authorization"))
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/tickets/t1/status"))
		_, _ = w.Write([]byte(`{"result":true,"data":{"id":"t1","status":"RESOLVED","closedBy":"agent"}}`))
	}))
	defer srv.Close()

	out, err := execute(t, "admin", "status", "t1", "RESOLVED", "--by", "agent", "--server", srv.URL, "--admin-token", "ops", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "RESOLVED"`)
}
