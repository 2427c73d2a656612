package config

import (
	"strconv"
	"time"

	agollo "github.com/apolloconfig/agollo/v4"
	apconf "github.com/apolloconfig/agollo/v4/env/config"
	"github.com/apolloconfig/agollo/v4/storage"
)

// overrideFromApollo starts Apollo client and overrides config values if present.
// Returns a closer to stop the Apollo client.
func overrideFromApollo(cfg *Config, store *Store) (func(), error) {
	if cfg.Apollo.Addrs == "" || cfg.Apollo.AppID == "" {
		configLogger.Warn("apollo: missing APOLLO_ADDRS or APOLLO_APP_ID; skip")
		return nil, nil
	}

	ns := cfg.Apollo.Namespace
	if ns == "" {
		ns = "application"
	}

	appCfg := &apconf.AppConfig{
		AppID:              cfg.Apollo.AppID,
		Cluster:            cfg.Apollo.Cluster,
		NamespaceName:      ns,
		ApolloConfigServer: cfg.Apollo.Addrs,
		Secret:             cfg.Apollo.AccessKey,
	}

	client, err := agollo.StartWithConfig(func() (*apconf.AppConfig, error) { return appCfg, nil })
	if err != nil {
		return nil, err
	}

	next := cloneConfig(cfg)
	applyApolloOverrides(client.GetConfigCache(ns), next)
	_ = store.UpdateValidated(next, map[string]bool{"apollo.init": true})

	client.AddChangeListener(&changeListener{ns: ns, client: client, store: store})

	closer := func() {
		// agollo v4 does not expose Stop
	}
	return closer, nil
}

// cacheGetter is the read side of an agollo config cache.
type cacheGetter interface {
	Get(key string) (interface{}, error)
}

func applyApolloOverrides(cache cacheGetter, cfg *Config) {
	if cache == nil {
		return
	}
	str := func(key string, dst *string, allowEmpty bool) {
		if v, err := cache.Get(key); err == nil {
			if s, _ := v.(string); s != "" || allowEmpty {
				*dst = s
			}
		}
	}
	num := func(key string, dst *int) {
		var s string
		str(key, &s, false)
		if n, err := strconv.Atoi(s); err == nil {
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		var s string
		str(key, &s, false)
		if d, err := time.ParseDuration(s); err == nil {
			*dst = d
		}
	}

	str("app.env", &cfg.AppEnv, false)
	str("server.addr", &cfg.Server.Addr, false)
	str("log.level", &cfg.Log.Level, false)
	str("log.format", &cfg.Log.Format, false)
	str("pg.url", &cfg.PG.URL, false)
	num("pg.max_open", &cfg.PG.MaxOpenConns)
	num("pg.max_idle", &cfg.PG.MaxIdleConns)
	str("redis.addr", &cfg.Redis.Addr, false)
	str("redis.password", &cfg.Redis.Password, true)
	num("redis.db", &cfg.Redis.DB)
	str("mq.url", &cfg.MQ.URL, false)
	str("es.addrs", &cfg.ES.Addrs, false)
	str("es.username", &cfg.ES.Username, true)
	str("es.password", &cfg.ES.Password, true)

	dur("auth.replay_window", &cfg.Auth.ReplayWindow)
	dur("auth.session_ttl", &cfg.Auth.SessionTTL)
	dur("auth.channel_ttl", &cfg.Auth.ChannelTTL)
	str("auth.global_secret", &cfg.Auth.GlobalSecret, false)
	var secrets string
	str("auth.game_secrets", &secrets, false)
	if secrets != "" {
		cfg.Auth.GameSecrets = ParseGameSecrets(secrets)
	}
	dur("ticket.lookup_timeout", &cfg.Ticket.LookupTimeout)
	str("schedule.hours", &cfg.Schedule.Hours, false)
	num("ratelimit.max", &cfg.RateLimit.Max)
}

type changeListener struct {
	ns     string
	client agollo.Client
	store  *Store
}

func (c *changeListener) OnChange(e *storage.ChangeEvent) {
	configLogger.Sugar().Infof("apollo change: namespace=%s, changes=%d", e.Namespace, len(e.Changes))
	next := cloneConfig(c.store.Get())
	applyApolloOverrides(c.client.GetConfigCache(c.ns), next)
	changed := map[string]bool{}
	for k := range e.Changes {
		changed[k] = true
	}
	_ = c.store.UpdateValidated(next, changed)
}

func (c *changeListener) OnNewestChange(e *storage.FullChangeEvent) {
	configLogger.Sugar().Debugf("apollo snapshot: namespace=%s, keys=%d", e.Namespace, len(e.Changes))
}
