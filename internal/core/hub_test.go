package core

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"
)

func TestHubRegisterBroadcastsSnapshot(t *testing.T) {
	hub := NewHub(nil)

	alice := NewClient(1, "alice", 8)
	bob := NewClient(2, "bob", 8)

	hub.Register(alice)
	if got := mustSnapshot(t, alice); !slices.Equal(got, []int64{1}) {
		t.Fatalf("unexpected snapshot after first register: %v", got)
	}

	hub.Register(bob)
	for _, c := range []*Client{alice, bob} {
		if got := mustSnapshot(t, c); !slices.Equal(got, []int64{1, 2}) {
			t.Fatalf("unexpected snapshot for %s: %v", c.Name, got)
		}
	}

	if !hub.IsOnline(1) || !hub.IsOnline(2) || hub.IsOnline(3) {
		t.Fatalf("unexpected online state: %v", hub.Snapshot())
	}
}

func TestHubDeregisterExcludesUser(t *testing.T) {
	hub := NewHub(nil)

	alice := NewClient(1, "alice", 8)
	bob := NewClient(2, "bob", 8)
	hub.Register(alice)
	hub.Register(bob)

	if !hub.Deregister(2) {
		t.Fatalf("expected deregister to remove bob")
	}

	snapshot, ok := lastSnapshot(alice)
	if !ok || !slices.Equal(snapshot, []int64{1}) {
		t.Fatalf("expected snapshot [1], got %v", snapshot)
	}
	if hub.IsOnline(2) {
		t.Fatalf("bob should be offline")
	}
}

func TestHubDeregisterUnknownIsNoop(t *testing.T) {
	hub := NewHub(nil)

	alice := NewClient(1, "alice", 8)
	hub.Register(alice)
	_, _ = lastSnapshot(alice)

	if hub.Deregister(42) {
		t.Fatalf("expected no-op for unknown user")
	}
	if _, ok := lastSnapshot(alice); ok {
		t.Fatalf("no-op deregister must not broadcast")
	}
	if !slices.Equal(hub.Snapshot(), []int64{1}) {
		t.Fatalf("unexpected snapshot: %v", hub.Snapshot())
	}
}

func TestHubSupersedesPriorConnection(t *testing.T) {
	hub := NewHub(nil)

	first := NewClient(1, "alice", 8)
	second := NewClient(1, "alice", 8)

	hub.Register(first)
	hub.Register(second)

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatalf("superseded connection was not closed")
	}
	if first.CloseReason() != CloseReasonSuperseded {
		t.Fatalf("unexpected close reason: %s", first.CloseReason())
	}

	// Late disconnect of the old handle must not evict the new one.
	if hub.Unregister(first) {
		t.Fatalf("stale handle should not unregister")
	}
	current, ok := hub.Lookup(1)
	if !ok || current != second {
		t.Fatalf("expected second connection to remain registered")
	}

	if first.Push(&Event{Kind: EventNewMessage}) {
		t.Fatalf("push to a closed handle must fail")
	}
}

func TestHubRunClosesClientsOnShutdown(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	alice := NewClient(1, "alice", 8)
	hub.Register(alice)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("hub did not stop")
	}
	if alice.CloseReason() != CloseReasonShutdown {
		t.Fatalf("unexpected close reason: %s", alice.CloseReason())
	}
	if hub.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", hub.Count())
	}
}

func TestHubConcurrentRegisterDeregister(t *testing.T) {
	hub := NewHub(nil)

	const users = 50
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c := NewClient(id, "", 4)
			hub.Register(c)
			// Odd users leave again.
			if id%2 == 1 {
				hub.Unregister(c)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	var expected []int64
	for i := int64(1); i <= users; i++ {
		if i%2 == 0 {
			expected = append(expected, i)
		}
	}
	if got := hub.Snapshot(); !slices.Equal(got, expected) {
		t.Fatalf("unexpected snapshot: %v", got)
	}
}

func TestHubDeliverOfflineAndFull(t *testing.T) {
	hub := NewHub(nil)

	if err := hub.Deliver(9, &Event{Kind: EventNewMessage}); err != ErrRecipientOffline {
		t.Fatalf("expected ErrRecipientOffline, got %v", err)
	}

	c := NewClient(9, "slow", 1)
	hub.Register(c)
	if !c.Push(&Event{Kind: EventHello}) {
		t.Fatalf("expected the first push to fit")
	}

	if err := hub.Deliver(9, &Event{Kind: EventNewMessage}); err != ErrDeliveryFailed {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
}

func TestHubSlowClientEndsOnLatestSnapshot(t *testing.T) {
	hub := NewHub(nil)

	slow := NewClient(1, "slow", 1)
	hub.Register(slow)
	if !slow.Push(&Event{Kind: EventHello}) {
		t.Fatalf("expected the first push to fit")
	}

	// The event buffer stays full while presence keeps changing.
	for id := int64(2); id <= 5; id++ {
		hub.Register(NewClient(id, "", 1))
	}
	hub.Deregister(3)

	if got := mustSnapshot(t, slow); !slices.Equal(got, []int64{1, 2, 4, 5}) {
		t.Fatalf("expected latest snapshot, got %v", got)
	}
	if _, ok := lastSnapshot(slow); ok {
		t.Fatalf("expected a single coalesced snapshot")
	}
	if ev := mustEvent(t, slow.Events, EventHello); ev == nil {
		t.Fatalf("queued event lost")
	}
}
