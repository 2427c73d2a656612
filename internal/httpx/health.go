package httpx

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"player-ticket-gateway/internal/esx"
	"player-ticket-gateway/internal/httpx/kit"
	"player-ticket-gateway/internal/redisx"
)

// Probes checks the optional backing services. Nil fields are reported as disabled.
type Probes struct {
	DB    *sql.DB
	Redis *redisx.Client
	ES    *esx.Client
}

func (p Probes) check(ctx context.Context) map[string]string {
	out := map[string]string{"db": "disabled", "redis": "disabled", "es": "disabled"}
	var mu sync.Mutex
	probe := func(name string, ping func() error) func() error {
		return func() error {
			state := "ok"
			if err := ping(); err != nil {
				state = "down"
			}
			mu.Lock()
			out[name] = state
			mu.Unlock()
			return nil
		}
	}

	var eg errgroup.Group
	if p.DB != nil {
		eg.Go(probe("db", func() error { return p.DB.PingContext(ctx) }))
	}
	if p.Redis != nil {
		eg.Go(probe("redis", func() error { return p.Redis.Ping(ctx).Err() }))
	}
	if p.ES != nil {
		eg.Go(probe("es", func() error {
			res, err := p.ES.Ping(p.ES.Ping.WithContext(ctx))
			if err != nil {
				return err
			}
			defer res.Body.Close()
			if res.IsError() {
				return fmt.Errorf("es ping: %s", res.Status())
			}
			return nil
		}))
	}
	_ = eg.Wait()
	return out
}

// HealthHandler reports liveness.
//
//	@Summary      Health check
//	@Description  Liveness of the gateway process
//	@Tags         health
//	@Produce      json
//	@Success      200  {object}  map[string]string  "healthy"
//	@Router       /health [get]
func HealthHandler(c *fiber.Ctx) error {
	return kit.OK(c, fiber.Map{"status": "ok"})
}

// ReadyHandler reports whether every configured backing service answers.
//
//	@Summary      Readiness check
//	@Tags         health
//	@Produce      json
//	@Success      200  {object}  map[string]interface{}
//	@Failure      503  {object}  map[string]interface{}
//	@Router       /ready [get]
func ReadyHandler(p Probes) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
		defer cancel()
		deps := p.check(ctx)
		for _, state := range deps {
			if state == "down" {
				return kit.Fail(c, http.StatusServiceUnavailable, "E_NOT_READY", "dependency unavailable", deps)
			}
		}
		return kit.OK(c, fiber.Map{"status": "ready", "deps": deps})
	}
}
