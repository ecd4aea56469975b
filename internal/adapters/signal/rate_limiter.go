package signal

import (
	"sync"
	"time"

	"github.com/dkeye/CallRelay/internal/domain"
)

// CallRateLimiter is a sliding window limiter keyed by user.
type CallRateLimiter struct {
	mu       sync.Mutex
	history  map[domain.UserID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
	swept    time.Time
}

// NewCallRateLimiter returns nil when limit is not positive, which
// disables limiting.
func NewCallRateLimiter(limit int, interval time.Duration) *CallRateLimiter {
	if limit <= 0 || interval <= 0 {
		return nil
	}
	return &CallRateLimiter{
		history:  make(map[domain.UserID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *CallRateLimiter) Allow(uid domain.UserID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)
	rl.sweep(now, windowStart)

	attempts := rl.history[uid]
	fresh := attempts[:0]
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= rl.limit {
		rl.history[uid] = fresh
		return false
	}

	rl.history[uid] = append(fresh, now)
	return true
}

// sweep forgets users whose attempts have all left the window. It runs at
// most once per interval.
func (rl *CallRateLimiter) sweep(now, windowStart time.Time) {
	if now.Sub(rl.swept) < rl.interval {
		return
	}
	rl.swept = now
	for uid, attempts := range rl.history {
		if len(attempts) == 0 || !attempts[len(attempts)-1].After(windowStart) {
			delete(rl.history, uid)
		}
	}
}
