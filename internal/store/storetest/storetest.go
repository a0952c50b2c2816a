// Package storetest holds behavior tests shared by every store.MessageStore backend.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vovakirdan/pairchat/internal/store"
)

// Factory opens a fresh, empty message store for one subtest.
type Factory func(t *testing.T) store.MessageStore

// RunMessageStore exercises the MessageStore contract against newStore.
func RunMessageStore(t *testing.T, newStore Factory) {
	t.Run("append assigns ids and history is ordered", func(t *testing.T) {
		testHistoryOrder(t, newStore(t))
	})
	t.Run("append rejects invalid payload", func(t *testing.T) {
		testAppendRejectsInvalidPayload(t, newStore(t))
	})
	t.Run("get message", func(t *testing.T) {
		testGetMessage(t, newStore(t))
	})
	t.Run("mark seen is scoped and idempotent", func(t *testing.T) {
		testMarkSeen(t, newStore(t))
	})
	t.Run("mark seen through stops at last id", func(t *testing.T) {
		testMarkSeenThrough(t, newStore(t))
	})
	t.Run("mark single message seen", func(t *testing.T) {
		testMarkMessageSeen(t, newStore(t))
	})
	t.Run("peers", func(t *testing.T) {
		testPeers(t, newStore(t))
	})
	t.Run("concurrent appends", func(t *testing.T) {
		testConcurrentAppends(t, newStore(t))
	})
}

func appendText(t *testing.T, ms store.MessageStore, from, to int64, text string) *store.Message {
	t.Helper()
	msg := &store.Message{SenderID: from, ReceiverID: to, Text: text}
	require.NoError(t, ms.AppendMessage(context.Background(), msg))
	return msg
}

func testHistoryOrder(t *testing.T, ms store.MessageStore) {
	ctx := context.Background()

	first := appendText(t, ms, 1, 2, "first")
	second := appendText(t, ms, 2, 1, "second")
	appendText(t, ms, 1, 3, "elsewhere")
	third := appendText(t, ms, 1, 2, "third")

	require.Positive(t, first.ID)
	require.Greater(t, second.ID, first.ID)
	require.Greater(t, third.ID, second.ID)
	require.False(t, first.CreatedAt.IsZero())
	require.False(t, first.Seen)

	// History is symmetric in its arguments.
	for _, pair := range [][2]int64{{1, 2}, {2, 1}} {
		history, err := ms.History(ctx, pair[0], pair[1])
		require.NoError(t, err)
		require.Len(t, history, 3)
		assert.Equal(t, "first", history[0].Text)
		assert.Equal(t, "second", history[1].Text)
		assert.Equal(t, "third", history[2].Text)
	}

	empty, err := ms.History(ctx, 1, 99)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func testAppendRejectsInvalidPayload(t *testing.T, ms store.MessageStore) {
	ctx := context.Background()

	invalid := []*store.Message{
		{SenderID: 1, ReceiverID: 2},
		{SenderID: 1, ReceiverID: 2, Text: "hi", Image: "/media/a.png"},
	}
	for _, msg := range invalid {
		err := ms.AppendMessage(ctx, msg)
		require.ErrorIs(t, err, store.ErrInvalidMessage)
		require.Zero(t, msg.ID)
	}

	history, err := ms.History(ctx, 1, 2)
	require.NoError(t, err)
	require.Empty(t, history)

	// The id sequence is untouched by rejected appends.
	first := appendText(t, ms, 1, 2, "valid")
	require.Positive(t, first.ID)
	counts, err := ms.UnseenCounts(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, 1, counts[1])
}

func testGetMessage(t *testing.T, ms store.MessageStore) {
	ctx := context.Background()

	sent := &store.Message{SenderID: 1, ReceiverID: 2, Image: "/media/cat.png"}
	require.NoError(t, ms.AppendMessage(ctx, sent))

	got, err := ms.GetMessage(ctx, sent.ID)
	require.NoError(t, err)
	assert.Equal(t, sent.ID, got.ID)
	assert.Equal(t, "/media/cat.png", got.Image)
	assert.Empty(t, got.Text)

	_, err = ms.GetMessage(ctx, sent.ID+1000)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func testMarkSeen(t *testing.T, ms store.MessageStore) {
	ctx := context.Background()

	appendText(t, ms, 1, 2, "a")
	appendText(t, ms, 1, 2, "b")
	appendText(t, ms, 3, 2, "c")
	appendText(t, ms, 2, 1, "reply")

	counts, err := ms.UnseenCounts(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{1: 2, 3: 1}, counts)

	changed, err := ms.MarkSeen(ctx, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, changed)

	changed, err = ms.MarkSeen(ctx, 1, 2)
	require.NoError(t, err)
	assert.Zero(t, changed)

	counts, err = ms.UnseenCounts(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{3: 1}, counts)

	// The reverse direction is untouched.
	counts, err = ms.UnseenCounts(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[int64]int{2: 1}, counts)
}

func testMarkSeenThrough(t *testing.T, ms store.MessageStore) {
	ctx := context.Background()

	appendText(t, ms, 1, 2, "a")
	through := appendText(t, ms, 1, 2, "b")
	appendText(t, ms, 1, 2, "late")

	changed, err := ms.MarkSeenThrough(ctx, 1, 2, through.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, changed)

	history, err := ms.History(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.True(t, history[0].Seen)
	assert.True(t, history[1].Seen)
	assert.False(t, history[2].Seen)
}

func testMarkMessageSeen(t *testing.T, ms store.MessageStore) {
	ctx := context.Background()

	msg := appendText(t, ms, 1, 2, "hello")

	ok, err := ms.MarkMessageSeen(ctx, msg.ID, 1)
	require.NoError(t, err)
	assert.False(t, ok, "sender cannot mark their own message")

	ok, err = ms.MarkMessageSeen(ctx, msg.ID+1000, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = ms.MarkMessageSeen(ctx, msg.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ms.MarkMessageSeen(ctx, msg.ID, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := ms.GetMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.Seen)

	counts, err := ms.UnseenCounts(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, counts)
}

func testPeers(t *testing.T, ms store.MessageStore) {
	ctx := context.Background()

	appendText(t, ms, 1, 3, "x")
	appendText(t, ms, 2, 1, "y")
	appendText(t, ms, 1, 3, "z")
	appendText(t, ms, 4, 5, "unrelated")

	peers, err := ms.Peers(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, peers)

	none, err := ms.Peers(ctx, 42)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testConcurrentAppends(t *testing.T, ms store.MessageStore) {
	ctx := context.Background()
	const writers, perWriter = 4, 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(sender int64) {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				msg := &store.Message{SenderID: sender, ReceiverID: 100, Text: "load"}
				assert.NoError(t, ms.AppendMessage(ctx, msg))
			}
		}(int64(w + 1))
	}
	wg.Wait()

	counts, err := ms.UnseenCounts(ctx, 100)
	require.NoError(t, err)
	total := 0
	for _, n := range counts {
		total += n
	}
	assert.Equal(t, writers*perWriter, total)
}
