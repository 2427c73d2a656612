// Package realtime serves the player websocket channel opened with a channel token.
package realtime

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"player-ticket-gateway/internal/apperr"
	"player-ticket-gateway/internal/auth"
	"player-ticket-gateway/internal/logx"
	"player-ticket-gateway/internal/metrics"
)

var wsLogger = logx.GetScope("realtime")

const (
	identityLocal = "ws.identity"
	rejectLocal   = "ws.reject"
)

// Message is the frame exchanged on the channel.
type Message struct {
	Event   string `json:"event"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// Channel validates channel tokens and keeps the player's socket open.
type Channel struct {
	Sessions    *auth.SessionTokenService
	Metrics     *metrics.Metrics
	IdleTimeout time.Duration
	Clock       func() time.Time
}

func (ch *Channel) now() time.Time {
	if ch.Clock != nil {
		return ch.Clock()
	}
	return time.Now()
}

// channelToken reads the token from the token query parameter or a bearer Authorization header.
func channelToken(c *fiber.Ctx) string {
	if tok := strings.TrimSpace(c.Query("token")); tok != "" {
		return tok
	}
	if authz := c.Get("Authorization"); len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

// Upgrade validates the channel token before the protocol switch. A rejected token still upgrades
// so the client receives the error as a channel event.
func (ch *Channel) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	id, err := ch.Sessions.ValidateChannelToken(channelToken(c), ch.now())
	if err != nil {
		c.Locals(rejectLocal, err)
	} else {
		c.Locals(identityLocal, id)
	}
	return c.Next()
}

// Handler returns the websocket endpoint; mount it after Upgrade.
//
//	@Summary      Realtime channel
//	@Description  Websocket upgrade authenticated by a channel token from connect
//	@Tags         realtime
//	@Param        token  query  string  true  "channel token"
//	@Success      101
//	@Failure      426  {object}  map[string]interface{}
//	@Router       /ws [get]
func (ch *Channel) Handler() fiber.Handler {
	return websocket.New(ch.serve)
}

func (ch *Channel) serve(conn *websocket.Conn) {
	defer conn.Close()

	if err, ok := conn.Locals(rejectLocal).(error); ok {
		code := apperr.CodeOf(err)
		ch.Metrics.ObserveHandshake(string(code))
		wsLogger.Info("channel rejected", zap.String("code", string(code)), zap.Error(err))
		_ = conn.WriteJSON(Message{Event: "error", Code: string(code), Message: apperr.MessageOf(err)})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, string(code)), time.Now().Add(time.Second))
		return
	}
	id, _ := conn.Locals(identityLocal).(auth.PlayerIdentity)
	ch.Metrics.ObserveHandshake("OK")
	log := wsLogger.With(zap.String("game_id", id.GameID), zap.String("uid", id.UID))
	log.Debug("channel open")

	if err := conn.WriteJSON(Message{Event: "connected", Data: id}); err != nil {
		return
	}

	idle := ch.IdleTimeout
	if idle <= 0 {
		idle = time.Minute
	}
	for {
		_ = conn.SetReadDeadline(time.Now().Add(idle))
		mt, raw, err := conn.ReadMessage()
		if err != nil {
			log.Debug("channel closed", zap.Error(err))
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			_ = conn.WriteJSON(Message{Event: "error", Code: string(apperr.ParseFailed), Message: "malformed frame"})
			continue
		}
		if msg.Event == "ping" {
			if err := conn.WriteJSON(Message{Event: "pong"}); err != nil {
				return
			}
		}
	}
}
