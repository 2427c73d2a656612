package redisx

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"player-ticket-gateway/internal/apperr"
	"player-ticket-gateway/internal/auth"
	"player-ticket-gateway/internal/config"
)

type StoreSuite struct {
	suite.Suite
	mini *miniredis.Miniredis
	rdb  *Client
	ctx  context.Context
	now  time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())
	s.rdb = redis.NewClient(&redis.Options{Addr: s.mini.Addr()})
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) TearDownTest() {
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
}

func (s *StoreSuite) sessions(store auth.SessionStore) *auth.SessionTokenService {
	svc, err := auth.NewSessionTokenService(store, auth.SessionConfig{
		SessionTTL: time.Hour, ChannelTTL: time.Minute, ChannelSecret: "redis-test",
	})
	s.Require().NoError(err)
	return svc
}

var player = auth.PlayerIdentity{GameID: "g1", AreaID: "a1", UID: "u1", AuthMethod: auth.MethodSignature}

func (s *StoreSuite) TestOpen() {
	cfg := &config.Config{}
	rdb, closeFn, err := Open(cfg)
	s.Require().NoError(err)
	s.Nil(rdb, "no client without REDIS_ADDR")
	closeFn()

	cfg.Redis.Addr = s.mini.Addr()
	rdb, closeFn, err = Open(cfg)
	s.Require().NoError(err)
	s.NotNil(rdb)
	closeFn()
}

func (s *StoreSuite) TestOpenSharedUnreachable() {
	down := miniredis.RunT(s.T())
	addr := down.Addr()
	down.Close()

	cfg := &config.Config{AppEnv: "production"}
	cfg.Redis.Addr = addr
	rdb, closeFn, err := OpenShared(cfg)
	s.Error(err, "an unreachable redis must fail startup outside local dev")
	s.Nil(rdb)
	closeFn()

	cfg.AppEnv = "local"
	rdb, closeFn, err = OpenShared(cfg)
	s.NoError(err)
	s.Nil(rdb, "local runs fall back to in-memory stores")
	closeFn()

	cfg.AppEnv = "production"
	cfg.Redis.Addr = s.mini.Addr()
	rdb, closeFn, err = OpenShared(cfg)
	s.Require().NoError(err)
	s.NotNil(rdb)
	closeFn()
}

func (s *StoreSuite) TestNonceLedgerRecordsOnce() {
	l := NewNonceLedger(s.rdb, time.Minute)

	ok, err := l.Record(s.ctx, "g1", "n1", s.now)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = l.Record(s.ctx, "g1", "n1", s.now)
	s.Require().NoError(err)
	s.False(ok)

	ok, _ = l.Record(s.ctx, "g1:n", "1", s.now)
	s.True(ok, "game id and nonce boundaries are unambiguous")

	s.mini.FastForward(2*time.Minute + time.Millisecond)
	ok, _ = l.Record(s.ctx, "g1", "n1", s.now)
	s.True(ok, "key expires after the retention")
}

func (s *StoreSuite) TestNonceLedgerConcurrent() {
	l := NewNonceLedger(s.rdb, time.Minute)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := l.Record(s.ctx, "g1", "race", s.now); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
}

func (s *StoreSuite) TestSessionRoundTrip() {
	svc := s.sessions(NewSessionStore(s.rdb))

	tok, err := svc.IssueSession(s.ctx, player, "T-1", s.now)
	s.Require().NoError(err)

	got, err := svc.ValidateSession(s.ctx, tok.Token, s.now.Add(time.Minute))
	s.Require().NoError(err)
	s.Equal("T-1", got.TicketID)
	s.Equal(player.UID, got.UID)
	s.True(got.ExpiresAt.Equal(tok.ExpiresAt))

	_, err = svc.ValidateSession(s.ctx, tok.Token, s.now.Add(time.Hour+time.Second))
	s.Equal(apperr.SessionExpired, apperr.CodeOf(err))

	s.mini.FastForward(time.Hour + auth.ExpiredRetention + time.Second)
	_, err = svc.ValidateSession(s.ctx, tok.Token, s.now.Add(2*time.Hour))
	s.Equal(apperr.SessionNotFound, apperr.CodeOf(err))
}

func (s *StoreSuite) TestSessionSupersede() {
	svc := s.sessions(NewSessionStore(s.rdb))

	first, err := svc.IssueSession(s.ctx, player, "", s.now)
	s.Require().NoError(err)
	second, err := svc.IssueSession(s.ctx, player, "", s.now)
	s.Require().NoError(err)

	_, err = svc.ValidateSession(s.ctx, first.Token, s.now)
	s.Equal(apperr.SessionNotFound, apperr.CodeOf(err))
	s.False(s.mini.Exists(sessionPrefix+first.Token), "superseded record is deleted")

	_, err = svc.ValidateSession(s.ctx, second.Token, s.now)
	s.NoError(err)
}

func (s *StoreSuite) TestSessionConcurrentIssuance() {
	svc := s.sessions(NewSessionStore(s.rdb))

	tokens := make([]string, 8)
	var wg sync.WaitGroup
	for i := range tokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if tok, err := svc.IssueSession(s.ctx, player, "", s.now); err == nil {
				tokens[i] = tok.Token
			}
		}(i)
	}
	wg.Wait()

	valid := 0
	for _, tok := range tokens {
		if _, err := svc.ValidateSession(s.ctx, tok, s.now); err == nil {
			valid++
		}
	}
	s.Equal(1, valid)
}

func (s *StoreSuite) TestSessionDelete() {
	store := NewSessionStore(s.rdb)
	svc := s.sessions(store)

	tok, err := svc.IssueSession(s.ctx, player, "", s.now)
	s.Require().NoError(err)
	s.Require().NoError(svc.RevokeSession(s.ctx, tok.Token))
	s.Require().NoError(svc.RevokeSession(s.ctx, "unknown"))

	_, err = svc.ValidateSession(s.ctx, tok.Token, s.now)
	s.Equal(apperr.SessionNotFound, apperr.CodeOf(err))
	s.False(s.mini.Exists(indexPrefix + tok.Key()))
}
