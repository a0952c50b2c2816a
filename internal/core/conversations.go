package core

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/vovakirdan/pairchat/internal/store"
)

// PeerSummary is one sidebar row: a user, their presence, and how many of
// their messages the requester has not seen yet.
type PeerSummary struct {
	User   *store.User
	Online bool
	Unseen int
}

// Conversations is the read side: peer lists, history and seen tracking.
// Unseen counts are always derived from the message store per query.
type Conversations struct {
	users    store.UserStore
	messages store.MessageStore
	presence *Hub
	log      *zerolog.Logger
}

// NewConversations builds the conversation query service.
func NewConversations(users store.UserStore, messages store.MessageStore, presence *Hub, logger *zerolog.Logger) *Conversations {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Conversations{
		users:    users,
		messages: messages,
		presence: presence,
		log:      logger,
	}
}

// ListPeers returns every other user ordered by name with presence and unseen count.
func (s *Conversations) ListPeers(ctx context.Context, requesterID int64) ([]PeerSummary, error) {
	users, err := s.users.ListUsers(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	counts, err := s.messages.UnseenCounts(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("unseen counts: %w", err)
	}

	return lo.Map(users, func(u *store.User, _ int) PeerSummary {
		return PeerSummary{
			User:   u,
			Online: s.presence.IsOnline(u.ID),
			Unseen: counts[u.ID],
		}
	}), nil
}

// ListConversations is ListPeers restricted to users the requester has
// exchanged at least one message with.
func (s *Conversations) ListConversations(ctx context.Context, requesterID int64) ([]PeerSummary, error) {
	peerIDs, err := s.messages.Peers(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list conversation peers: %w", err)
	}
	if len(peerIDs) == 0 {
		return []PeerSummary{}, nil
	}

	peers, err := s.ListPeers(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	active := lo.SliceToMap(peerIDs, func(id int64) (int64, struct{}) { return id, struct{}{} })
	return lo.Filter(peers, func(p PeerSummary, _ int) bool {
		_, ok := active[p.User.ID]
		return ok
	}), nil
}

// UnseenCounts maps peer ID to the number of unseen messages addressed to requesterID.
func (s *Conversations) UnseenCounts(ctx context.Context, requesterID int64) (map[int64]int, error) {
	counts, err := s.messages.UnseenCounts(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("unseen counts: %w", err)
	}
	return counts, nil
}

// OpenConversation returns the history between requester and peer and marks
// the peer's messages in it as seen. An unknown peer yields an empty history.
// Only messages actually returned are marked, so a message arriving between
// the read and the update stays unseen.
func (s *Conversations) OpenConversation(ctx context.Context, requesterID, peerID int64) ([]*store.Message, error) {
	history, err := s.messages.History(ctx, requesterID, peerID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	var lastUnseen int64
	for _, m := range history {
		if m.SenderID == peerID && m.ReceiverID == requesterID && !m.Seen {
			lastUnseen = m.ID
		}
	}
	if lastUnseen == 0 {
		return history, nil
	}

	changed, err := s.messages.MarkSeenThrough(ctx, peerID, requesterID, lastUnseen)
	if err != nil {
		return nil, fmt.Errorf("%w: mark seen: %w", ErrPersistence, err)
	}
	for _, m := range history {
		if m.SenderID == peerID && m.ReceiverID == requesterID {
			m.Seen = true
		}
	}

	s.log.Debug().
		Int64("user_id", requesterID).
		Int64("peer_id", peerID).
		Int64("marked", changed).
		Msg("conversation opened")
	return history, nil
}

// MarkSeen flags every message from peerID to requesterID as seen. Idempotent.
func (s *Conversations) MarkSeen(ctx context.Context, requesterID, peerID int64) (int64, error) {
	changed, err := s.messages.MarkSeen(ctx, peerID, requesterID)
	if err != nil {
		return 0, fmt.Errorf("%w: mark seen: %w", ErrPersistence, err)
	}
	return changed, nil
}

// MarkMessageSeen flags a single message addressed to requesterID as seen.
func (s *Conversations) MarkMessageSeen(ctx context.Context, requesterID, messageID int64) error {
	ok, err := s.messages.MarkMessageSeen(ctx, messageID, requesterID)
	if err != nil {
		return fmt.Errorf("%w: mark message seen: %w", ErrPersistence, err)
	}
	if !ok {
		return fmt.Errorf("message %d: %w", messageID, ErrNotFound)
	}
	return nil
}
