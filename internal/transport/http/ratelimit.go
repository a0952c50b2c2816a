package http

import "time"

// rateLimiter is a fixed one-minute window counter for a single connection.
// It is only used from that connection's read loop.
type rateLimiter struct {
	limit int
	count int
	start time.Time
	now   func() time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{limit: limit, now: time.Now}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	now := r.now()
	if now.Sub(r.start) >= time.Minute {
		r.start = now
		r.count = 0
	}
	r.count++
	return r.count <= r.limit
}
