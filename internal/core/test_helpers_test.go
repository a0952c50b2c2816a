package core

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/pairchat/internal/store"
	"github.com/vovakirdan/pairchat/internal/store/sqlite"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func mustSnapshot(t *testing.T, c *Client) []int64 {
	t.Helper()

	select {
	case ids := <-c.Presence():
		return ids
	case <-time.After(2 * time.Second):
		t.Fatalf("expected presence snapshot for user %d", c.UserID)
		return nil
	}
}

// lastSnapshot takes the pending presence snapshot, if any.
func lastSnapshot(c *Client) ([]int64, bool) {
	select {
	case ids := <-c.Presence():
		return ids, true
	default:
		return nil, false
	}
}

func newTestStore(t testing.TB) *sqlite.SQLiteStore {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedUser(t testing.TB, st store.UserStore, email, name string) *store.User {
	t.Helper()

	u := &store.User{Email: email, FullName: name, PasswordHash: "hash"}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return u
}
