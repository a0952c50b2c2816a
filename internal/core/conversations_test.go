package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListPeers_OrderedWithPresenceAndUnseen(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	st := newTestStore(t)
	hub := NewHub(nil)
	me := seedUser(t, st, "me@example.com", "Mallory")
	carol := seedUser(t, st, "carol@example.com", "carol")
	alice := seedUser(t, st, "alice@example.com", "Alice")
	bob := seedUser(t, st, "bob@example.com", "Bob")

	dispatcher := NewDispatcher(st, st, nil, hub, nil)
	conversations := NewConversations(st, st, hub, nil)

	hub.Register(NewClient(bob.ID, bob.FullName, 8))
	for i := 0; i < 2; i++ {
		_, err := dispatcher.Send(ctx, carol.ID, me.ID, Payload{Text: "hey"})
		req.NoError(err)
	}

	peers, err := conversations.ListPeers(ctx, me.ID)
	req.NoError(err)
	req.Len(peers, 3)

	req.Equal(alice.ID, peers[0].User.ID)
	req.Equal(bob.ID, peers[1].User.ID)
	req.Equal(carol.ID, peers[2].User.ID)

	req.False(peers[0].Online)
	req.True(peers[1].Online)
	req.Equal(2, peers[2].Unseen)
	req.Zero(peers[0].Unseen)
}

func TestListConversations_OnlyPartners(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	st := newTestStore(t)
	hub := NewHub(nil)
	alice := seedUser(t, st, "alice@example.com", "Alice")
	bob := seedUser(t, st, "bob@example.com", "Bob")
	_ = seedUser(t, st, "carol@example.com", "Carol")

	dispatcher := NewDispatcher(st, st, nil, hub, nil)
	conversations := NewConversations(st, st, hub, nil)

	empty, err := conversations.ListConversations(ctx, alice.ID)
	req.NoError(err)
	req.Empty(empty)

	_, err = dispatcher.Send(ctx, bob.ID, alice.ID, Payload{Text: "hi alice"})
	req.NoError(err)

	peers, err := conversations.ListConversations(ctx, alice.ID)
	req.NoError(err)
	req.Len(peers, 1)
	req.Equal(bob.ID, peers[0].User.ID)
	req.Equal(1, peers[0].Unseen)
}

func TestOpenConversation_UnknownPeerIsEmpty(t *testing.T) {
	st := newTestStore(t)
	alice := seedUser(t, st, "alice@example.com", "Alice")
	conversations := NewConversations(st, st, NewHub(nil), nil)

	history, err := conversations.OpenConversation(context.Background(), alice.ID, 4242)
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestOpenConversation_LeavesOwnMessagesUntouched(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	st := newTestStore(t)
	hub := NewHub(nil)
	alice := seedUser(t, st, "alice@example.com", "Alice")
	bob := seedUser(t, st, "bob@example.com", "Bob")
	dispatcher := NewDispatcher(st, st, nil, hub, nil)
	conversations := NewConversations(st, st, hub, nil)

	_, err := dispatcher.Send(ctx, alice.ID, bob.ID, Payload{Text: "from alice"})
	req.NoError(err)
	_, err = dispatcher.Send(ctx, bob.ID, alice.ID, Payload{Text: "from bob"})
	req.NoError(err)

	history, err := conversations.OpenConversation(ctx, alice.ID, bob.ID)
	req.NoError(err)
	req.Len(history, 2)
	req.False(history[0].Seen, "alice's own message is only seen by bob")
	req.True(history[1].Seen)

	counts, err := conversations.UnseenCounts(ctx, bob.ID)
	req.NoError(err)
	req.Equal(1, counts[alice.ID])
}

func TestMarkMessageSeen_RequiresReceiver(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	st := newTestStore(t)
	hub := NewHub(nil)
	alice := seedUser(t, st, "alice@example.com", "Alice")
	bob := seedUser(t, st, "bob@example.com", "Bob")
	dispatcher := NewDispatcher(st, st, nil, hub, nil)
	conversations := NewConversations(st, st, hub, nil)

	receipt, err := dispatcher.Send(ctx, alice.ID, bob.ID, Payload{Text: "read me"})
	req.NoError(err)

	err = conversations.MarkMessageSeen(ctx, alice.ID, receipt.Message.ID)
	req.ErrorIs(err, ErrNotFound)

	err = conversations.MarkMessageSeen(ctx, bob.ID, 9999)
	req.ErrorIs(err, ErrNotFound)

	req.NoError(conversations.MarkMessageSeen(ctx, bob.ID, receipt.Message.ID))
	req.NoError(conversations.MarkMessageSeen(ctx, bob.ID, receipt.Message.ID))

	counts, err := conversations.UnseenCounts(ctx, bob.ID)
	req.NoError(err)
	req.Zero(counts[alice.ID])
}
