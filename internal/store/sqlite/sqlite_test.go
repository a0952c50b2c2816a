package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/vovakirdan/pairchat/internal/store"
	"github.com/vovakirdan/pairchat/internal/store/storetest"
)

func newMemoryStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMessageStoreContract(t *testing.T) {
	storetest.RunMessageStore(t, func(t *testing.T) store.MessageStore {
		return newMemoryStore(t)
	})
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	u := &store.User{Email: "alice@example.com", FullName: "Alice", PasswordHash: "hash"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if u.ID == 0 || u.CreatedAt.IsZero() {
		t.Fatalf("expected ID and CreatedAt to be set, got %+v", u)
	}

	dup := &store.User{Email: "alice@example.com", FullName: "Other", PasswordHash: "hash"}
	err := s.CreateUser(ctx, dup)
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGetUser(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	u := &store.User{Email: "bob@example.com", FullName: "Bob", PasswordHash: "hash", Bio: "hi"}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	byID, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.Email != "bob@example.com" || byID.Bio != "hi" {
		t.Errorf("unexpected user: %+v", byID)
	}

	byEmail, err := s.GetUserByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("GetUserByEmail failed: %v", err)
	}
	if byEmail.ID != u.ID {
		t.Errorf("expected ID %d, got %d", u.ID, byEmail.ID)
	}

	if _, err := s.GetUserByID(ctx, 999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListUsers(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	var me int64
	for _, name := range []string{"charlie", "Alice", "bob", "Me"} {
		u := &store.User{Email: name + "@example.com", FullName: name, PasswordHash: "hash"}
		if err := s.CreateUser(ctx, u); err != nil {
			t.Fatalf("failed to create user %s: %v", name, err)
		}
		if name == "Me" {
			me = u.ID
		}
	}

	users, err := s.ListUsers(ctx, me)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}

	expected := []string{"Alice", "bob", "charlie"}
	if len(users) != len(expected) {
		t.Fatalf("expected %d users, got %d", len(expected), len(users))
	}
	for i, u := range users {
		if u.FullName != expected[i] {
			t.Errorf("at index %d expected %s, got %s", i, expected[i], u.FullName)
		}
	}
}

func TestSchemaRejectsEmptyPayload(t *testing.T) {
	s := newMemoryStore(t)

	// Bypass AppendMessage so the table constraint itself is exercised.
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO messages (sender_id, receiver_id, text, image, seen, created_at) VALUES (1, 2, '', '', 0, CURRENT_TIMESTAMP)`)
	if err == nil {
		t.Fatal("expected check constraint to reject a message without text or image")
	}
}
