package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"player-ticket-gateway/internal/apperr"
)

func signChannelClaims(t *testing.T, key []byte, claims ChannelClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	require.NoError(t, err)
	return raw
}

func TestChannelTokenRoundTrip(t *testing.T) {
	s := newTestSessions(t)

	raw, exp, err := s.IssueChannelToken(testPlayer, testNow)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(time.Minute), exp)

	id, err := s.ValidateChannelToken(raw, testNow.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, PlayerIdentity{GameID: "g1", AreaID: "a1", UID: "u1", AuthMethod: MethodSignature}, id)
}

func TestChannelTokenEmptyArea(t *testing.T) {
	s := newTestSessions(t)
	p := testPlayer
	p.AreaID = ""

	raw, _, err := s.IssueChannelToken(p, testNow)
	require.NoError(t, err)
	id, err := s.ValidateChannelToken(raw, testNow)
	require.NoError(t, err)
	assert.Equal(t, "", id.AreaID)
	assert.Equal(t, p.Key(), id.Key())
}

func TestChannelTokenKeepsLiteralDefaultArea(t *testing.T) {
	s := newTestSessions(t)
	p := testPlayer
	p.AreaID = "default"

	raw, _, err := s.IssueChannelToken(p, testNow)
	require.NoError(t, err)
	id, err := s.ValidateChannelToken(raw, testNow)
	require.NoError(t, err)
	assert.Equal(t, "default", id.AreaID)
	assert.Equal(t, p.Key(), id.Key())
}

func TestChannelTokenCarriesAuthMethod(t *testing.T) {
	s := newTestSessions(t)
	for _, m := range []AuthMethod{MethodSessionToken, MethodJWT, MethodSignature} {
		p := testPlayer
		p.AuthMethod = m
		raw, _, err := s.IssueChannelToken(p, testNow)
		require.NoError(t, err)
		id, err := s.ValidateChannelToken(raw, testNow)
		require.NoError(t, err)
		assert.Equal(t, m, id.AuthMethod)
	}
}

func TestChannelTokenRejections(t *testing.T) {
	s := newTestSessions(t)
	exp := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Minute))}
	issued, _, err := s.IssueChannelToken(testPlayer, testNow)
	require.NoError(t, err)

	other, err := NewSessionTokenService(NewMemorySessionStore(), SessionConfig{
		SessionTTL: time.Hour, ChannelTTL: time.Minute, ChannelSecret: "someone-else",
	})
	require.NoError(t, err)
	foreign, _, err := other.IssueChannelToken(testPlayer, testNow)
	require.NoError(t, err)

	cases := []struct {
		name    string
		raw     string
		at      time.Time
		want    apperr.Code
		message string
	}{
		{name: "empty", raw: "", at: testNow, want: apperr.EmptyToken},
		{name: "garbage", raw: "not-a-jwt", at: testNow, want: apperr.ParseFailed},
		{name: "foreign key", raw: foreign, at: testNow, want: apperr.ParseFailed},
		{name: "expired", raw: issued, at: testNow.Add(2 * time.Minute), want: apperr.TokenExpired},
		{
			name: "wrong type",
			raw: signChannelClaims(t, s.channelKey, ChannelClaims{
				GameID: "g1", AreaID: "a1", UID: "u1", Type: lo.ToPtr("session"), RegisteredClaims: exp,
			}),
			at:   testNow,
			want: apperr.WrongTokenType,
		},
		{
			name:    "only type",
			raw:     signChannelClaims(t, s.channelKey, ChannelClaims{Type: lo.ToPtr(ChannelTokenType), RegisteredClaims: exp}),
			at:      testNow,
			want:    apperr.MissingFields,
			message: "gameid, areaid, uid",
		},
		{
			name: "area default flag is not a game or uid",
			raw: signChannelClaims(t, s.channelKey, ChannelClaims{
				AreaDefault: true, Type: lo.ToPtr(ChannelTokenType), RegisteredClaims: exp,
			}),
			at:      testNow,
			want:    apperr.MissingFields,
			message: "gameid, uid",
		},
		{
			name:    "missing uid without type",
			raw:     signChannelClaims(t, s.channelKey, ChannelClaims{GameID: "g1", AreaID: "a1", RegisteredClaims: exp}),
			at:      testNow,
			want:    apperr.MissingFields,
			message: "uid",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.ValidateChannelToken(tc.raw, tc.at)
			require.Error(t, err)
			assert.Equal(t, tc.want, apperr.CodeOf(err))
			if tc.message != "" {
				assert.Contains(t, apperr.MessageOf(err), tc.message)
			}
		})
	}
}

func TestDeriveKeyIsPurposeBound(t *testing.T) {
	a, err := deriveKey("secret", channelKeyInfo)
	require.NoError(t, err)
	b, err := deriveKey("secret", "something-else")
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
	assert.NotEqual(t, []byte("secret"), a)
}
