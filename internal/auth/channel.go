package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/crypto/hkdf"

	"player-ticket-gateway/internal/apperr"
)

const (
	// ChannelTokenType is the discriminant carried by every channel token.
	ChannelTokenType = "ws"
	channelKeyInfo = "player-ticket-gateway/channel-token/v1"
)

// ChannelClaims are the claims of a realtime channel token. A player without an area carries
// AreaDefault instead of an areaid, so every area id round-trips unchanged.
type ChannelClaims struct {
	GameID      string  `json:"gameid,omitempty"`
	AreaID      string  `json:"areaid,omitempty"`
	AreaDefault bool    `json:"area_default,omitempty"`
	UID         string  `json:"uid,omitempty"`
	Type        *string `json:"type,omitempty"`
	Method      string  `json:"amr,omitempty"`
	jwt.RegisteredClaims
}

func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("derive %s key: %w", info, err)
	}
	return key, nil
}

// IssueChannelToken signs a short-lived token that opens the realtime channel for id.
func (s *SessionTokenService) IssueChannelToken(id PlayerIdentity, now time.Time) (string, time.Time, error) {
	exp := now.Add(s.ChannelTTL())
	claims := ChannelClaims{
		GameID:      id.GameID,
		AreaID:      id.AreaID,
		AreaDefault: id.AreaID == "",
		UID:         id.UID,
		Type:        lo.ToPtr(ChannelTokenType),
		Method:      string(id.AuthMethod),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.channelKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign channel token: %w", err)
	}
	return signed, exp, nil
}

// ValidateChannelToken checks, in order: presence, signature and expiry, the type discriminant,
// then the identity fields.
func (s *SessionTokenService) ValidateChannelToken(raw string, now time.Time) (PlayerIdentity, error) {
	if raw == "" {
		return PlayerIdentity{}, apperr.New(apperr.EmptyToken, "channel token is empty")
	}

	claims := &ChannelClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return s.channelKey, nil
	})
	if err != nil {
		return PlayerIdentity{}, tokenError(err)
	}

	if claims.Type != nil && *claims.Type != ChannelTokenType {
		return PlayerIdentity{}, apperr.Newf(apperr.WrongTokenType, "token type %q is not a channel token", *claims.Type)
	}

	missing := lo.FilterMap([]lo.Tuple2[string, bool]{
		lo.T2("gameid", claims.GameID != ""),
		lo.T2("areaid", claims.AreaID != "" || claims.AreaDefault),
		lo.T2("uid", claims.UID != ""),
	}, func(f lo.Tuple2[string, bool], _ int) (string, bool) {
		return f.A, !f.B
	})
	if len(missing) > 0 {
		return PlayerIdentity{}, missingFieldsError("channel token", missing)
	}

	return PlayerIdentity{
		GameID:     claims.GameID,
		AreaID:     claims.AreaID,
		UID:        claims.UID,
		AuthMethod: AuthMethod(claims.Method),
	}, nil
}

// tokenError maps a jwt parse error to TOKEN_EXPIRED or PARSE_FAILED, keeping the parser's message.
func tokenError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return apperr.Wrap(apperr.TokenExpired, "token expired", err)
	}
	return apperr.Newf(apperr.ParseFailed, "%v", err)
}
