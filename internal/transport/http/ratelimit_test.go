package http

import (
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := newRateLimiter(2)
	rl.now = func() time.Time { return now }

	if !rl.allow() || !rl.allow() {
		t.Fatal("first two calls should be allowed")
	}
	if rl.allow() {
		t.Fatal("third call in the same window should be rejected")
	}

	now = now.Add(time.Minute)
	if !rl.allow() {
		t.Fatal("a new window should reset the counter")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := newRateLimiter(0)
	for i := 0; i < 1000; i++ {
		if !rl.allow() {
			t.Fatal("limit 0 must never reject")
		}
	}
}
