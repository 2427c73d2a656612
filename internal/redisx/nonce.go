package redisx

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"player-ticket-gateway/internal/auth"
)

// NonceLedger records nonces with SET NX so every replica sees the same ledger. Keys expire on
// their own once the retention has passed.
type NonceLedger struct {
	rdb    *Client
	prefix string
	window atomic.Int64
}

func NewNonceLedger(rdb *Client, window time.Duration) *NonceLedger {
	l := &NonceLedger{rdb: rdb, prefix: "nonce:"}
	l.SetWindow(window)
	return l
}

func (l *NonceLedger) SetWindow(window time.Duration) {
	l.window.Store(int64(window))
}

func (l *NonceLedger) key(gameID, nonce string) string {
	return fmt.Sprintf("%s%d:%s:%s", l.prefix, len(gameID), gameID, nonce)
}

func (l *NonceLedger) Record(ctx context.Context, gameID, nonce string, now time.Time) (bool, error) {
	retention := auth.Retention(time.Duration(l.window.Load()))
	ok, err := l.rdb.SetNX(ctx, l.key(gameID, nonce), now.UnixMilli(), retention).Result()
	if err != nil {
		return false, fmt.Errorf("record nonce: %w", err)
	}
	return ok, nil
}

var _ auth.NonceLedger = (*NonceLedger)(nil)
