package auth

import (
	"context"
	"sync"
	"time"
)

// NonceLedger remembers (gameID, nonce) pairs for the replay window.
//
// Record returns true when the pair has not been seen within the window and atomically records
// it. Concurrent Records of the same pair succeed at most once.
type NonceLedger interface {
	Record(ctx context.Context, gameID, nonce string, now time.Time) (bool, error)
}

// Retention is how long a nonce must be remembered for window. A timestamp may lead the server
// clock by up to one window, so it stays acceptable for twice the window after first use.
func Retention(window time.Duration) time.Duration {
	return 2 * window
}

// purgeEvery bounds how many inserts the memory ledger accepts between opportunistic purges.
const purgeEvery = 1024

// MemoryNonceLedger is a process-local NonceLedger. It is correct for a single gateway instance;
// multi-instance deployments use the redis ledger.
type MemoryNonceLedger struct {
	mu      sync.Mutex
	seen    map[string]time.Time
	window  time.Duration
	inserts int
}

func NewMemoryNonceLedger(window time.Duration) *MemoryNonceLedger {
	return &MemoryNonceLedger{seen: make(map[string]time.Time), window: window}
}

func nonceKey(gameID, nonce string) string {
	return gameID + "\x1f" + nonce
}

func (l *MemoryNonceLedger) Record(_ context.Context, gameID, nonce string, now time.Time) (bool, error) {
	key := nonceKey(gameID, nonce)

	l.mu.Lock()
	defer l.mu.Unlock()

	if at, ok := l.seen[key]; ok && now.Sub(at) <= Retention(l.window) {
		return false, nil
	}
	l.seen[key] = now
	l.inserts++
	if l.inserts >= purgeEvery {
		l.inserts = 0
		l.purgeLocked(now.Add(-Retention(l.window)))
	}
	return true, nil
}

// SetWindow changes the retention used by Record and Sweep.
func (l *MemoryNonceLedger) SetWindow(window time.Duration) {
	l.mu.Lock()
	l.window = window
	l.mu.Unlock()
}

// PurgeOlderThan drops entries recorded before cutoff and returns how many were removed.
func (l *MemoryNonceLedger) PurgeOlderThan(cutoff time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.purgeLocked(cutoff)
}

// Sweep purges entries past their retention as of now.
func (l *MemoryNonceLedger) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.purgeLocked(now.Add(-Retention(l.window)))
}

// Len reports the number of remembered pairs.
func (l *MemoryNonceLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

func (l *MemoryNonceLedger) purgeLocked(cutoff time.Time) int {
	n := 0
	for k, at := range l.seen {
		if at.Before(cutoff) {
			delete(l.seen, k)
			n++
		}
	}
	return n
}
