package auth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"player-ticket-gateway/internal/logx"
)

var authLogger = logx.GetScope("auth")

// Sweeper is implemented by in-memory stores that expire entries lazily.
type Sweeper interface {
	Sweep(now time.Time) int
}

// RunSweeper calls s.Sweep every interval until ctx is done.
func RunSweeper(ctx context.Context, name string, s Sweeper, interval time.Duration, clock func() time.Time) {
	if interval <= 0 {
		return
	}
	if clock == nil {
		clock = time.Now
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(clock()); n > 0 {
				authLogger.Debug("sweep", zap.String("store", name), zap.Int("removed", n))
			}
		}
	}
}
