package app

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/partyhub/internal/app/party"
	"github.com/dkeye/partyhub/internal/domain"
)

const ReasonRateLimited = "party.rateLimited"

// JoinRateLimiter caps how many join attempts a user may make within a
// sliding window, across all parties.
type JoinRateLimiter struct {
	mu       sync.Mutex
	history  map[domain.UserID][]time.Time
	limit    int
	interval time.Duration
	now      func() time.Time
}

func NewJoinRateLimiter(limit int, interval time.Duration) *JoinRateLimiter {
	return &JoinRateLimiter{
		history:  make(map[domain.UserID][]time.Time),
		limit:    limit,
		interval: interval,
		now:      time.Now,
	}
}

func (rl *JoinRateLimiter) Allow(uid domain.UserID) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	windowStart := now.Add(-rl.interval)

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

// Policy denies joins from users over the limit. A limit <= 0 disables it.
func (rl *JoinRateLimiter) Policy() party.JoinPolicy {
	return func(_ context.Context, req party.JoinRequest, current party.Decision) party.Decision {
		if !current.Accepted || rl.limit <= 0 {
			return current
		}
		if !rl.Allow(req.Session.User.ID) {
			return party.Deny(ReasonRateLimited)
		}
		return current
	}
}
