package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"player-ticket-gateway/internal/apperr"
)

// GameClaims are the claims of an identity JWT minted by a game server.
type GameClaims struct {
	GameID     string `json:"gameid"`
	AreaID     string `json:"areaid"`
	UID        string `json:"uid"`
	PlayerName string `json:"playername,omitempty"`
	Type       string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// GameTokenVerifier verifies game-server JWTs with the per-game secret, falling back to a shared
// JWT secret when the game has none.
type GameTokenVerifier struct {
	secrets  SecretRegistry
	fallback string
}

func NewGameTokenVerifier(secrets SecretRegistry, fallback string) *GameTokenVerifier {
	return &GameTokenVerifier{secrets: secrets, fallback: fallback}
}

// Verify parses raw and returns the identity it asserts.
func (v *GameTokenVerifier) Verify(ctx context.Context, raw string, now time.Time) (PlayerIdentity, error) {
	if raw == "" {
		return PlayerIdentity{}, apperr.New(apperr.EmptyToken, "token is empty")
	}

	claims := &GameClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	_, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return v.keyFor(ctx, t.Claims.(*GameClaims).GameID)
	})
	if err != nil {
		return PlayerIdentity{}, tokenError(err)
	}
	if claims.Type == ChannelTokenType {
		return PlayerIdentity{}, apperr.New(apperr.WrongTokenType, "channel tokens cannot be used to connect")
	}

	var missing []string
	if strings.TrimSpace(claims.GameID) == "" {
		missing = append(missing, "gameid")
	}
	if strings.TrimSpace(claims.UID) == "" {
		missing = append(missing, "uid")
	}
	if len(missing) > 0 {
		return PlayerIdentity{}, missingFieldsError("token", missing)
	}

	return PlayerIdentity{
		GameID:     strings.TrimSpace(claims.GameID),
		AreaID:     strings.TrimSpace(claims.AreaID),
		UID:        strings.TrimSpace(claims.UID),
		PlayerName: claims.PlayerName,
		AuthMethod: MethodJWT,
	}, nil
}

func (v *GameTokenVerifier) keyFor(ctx context.Context, gameID string) ([]byte, error) {
	if gameID != "" && v.secrets != nil {
		secret, err := v.secrets.SecretFor(ctx, gameID)
		switch {
		case err == nil:
			return []byte(secret), nil
		case errors.Is(err, ErrGameDisabled):
			return nil, err
		case !errors.Is(err, ErrUnknownGame):
			return nil, fmt.Errorf("load game secret: %w", err)
		}
	}
	if v.fallback == "" {
		return nil, ErrUnknownGame
	}
	return []byte(v.fallback), nil
}
