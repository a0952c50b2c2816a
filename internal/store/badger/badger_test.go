package badger

import (
	"context"
	"testing"

	"github.com/vovakirdan/pairchat/internal/store"
	"github.com/vovakirdan/pairchat/internal/store/storetest"
)

func openTemp(t *testing.T, dir string) *MessageStore {
	t.Helper()

	ms, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("failed to open badger: %v", err)
	}
	return ms
}

func TestMessageStoreContract(t *testing.T) {
	storetest.RunMessageStore(t, func(t *testing.T) store.MessageStore {
		ms := openTemp(t, t.TempDir())
		t.Cleanup(func() { _ = ms.Close() })
		return ms
	})
}

func TestReopenKeepsMessagesAndIDs(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ms := openTemp(t, dir)
	first := &store.Message{SenderID: 1, ReceiverID: 2, Text: "persisted"}
	if err := ms.AppendMessage(ctx, first); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if err := ms.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	ms = openTemp(t, dir)
	defer ms.Close()

	history, err := ms.History(ctx, 2, 1)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || history[0].Text != "persisted" {
		t.Fatalf("unexpected history after reopen: %+v", history)
	}

	second := &store.Message{SenderID: 1, ReceiverID: 2, Text: "after reopen"}
	if err := ms.AppendMessage(ctx, second); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if second.ID <= first.ID {
		t.Fatalf("expected id after reopen to exceed %d, got %d", first.ID, second.ID)
	}
}
