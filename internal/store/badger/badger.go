// Package badger provides a store.MessageStore backed by an embedded BadgerDB.
//
// Key layout:
//
//	msg:{id}                      -> JSON encoded message
//	pair:{lo}:{hi}:{id}           -> empty, conversation index
//	unseen:{receiver}:{sender}:{id} -> empty, present while the message is unseen
//	peer:{user}:{peer}            -> empty, conversation partners
//
// IDs are zero padded to 20 digits so lexicographic order equals numeric order.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/vovakirdan/pairchat/internal/store"
)

const (
	sequenceKey       = "seq:messages"
	sequenceBandwidth = 128
	maxTxnRetries     = 5
)

// MessageStore implements store.MessageStore on top of BadgerDB.
type MessageStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens (or creates) a Badger database at path.
func Open(path string, logger *zerolog.Logger) (*MessageStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(newBadgerLogger(logger))
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	seq, err := db.GetSequence([]byte(sequenceKey), sequenceBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("get sequence: %w", err)
	}

	return &MessageStore{db: db, seq: seq}, nil
}

// Close releases the ID sequence and closes the database.
func (m *MessageStore) Close() error {
	if err := m.seq.Release(); err != nil {
		m.db.Close()
		return fmt.Errorf("release sequence: %w", err)
	}
	return m.db.Close()
}

func msgKey(id int64) []byte {
	return fmt.Appendf(nil, "msg:%020d", id)
}

func pairPrefix(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("pair:%d:%d:", a, b)
}

func unseenPrefix(receiverID int64) string {
	return fmt.Sprintf("unseen:%d:", receiverID)
}

func unseenPairPrefix(receiverID, senderID int64) string {
	return fmt.Sprintf("unseen:%d:%d:", receiverID, senderID)
}

func peerPrefix(userID int64) string {
	return fmt.Sprintf("peer:%d:", userID)
}

func padID(id int64) string {
	return fmt.Sprintf("%020d", id)
}

// update runs fn in a read-write transaction, retrying on optimistic conflicts.
func (m *MessageStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		err = m.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// AppendMessage persists msg together with its index entries in one transaction.
func (m *MessageStore) AppendMessage(_ context.Context, msg *store.Message) error {
	if err := store.CheckMessage(msg); err != nil {
		return err
	}
	next, err := m.seq.Next()
	if err != nil {
		return fmt.Errorf("next id: %w", err)
	}

	stored := *msg
	stored.ID = int64(next) + 1
	stored.Seen = false
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	value, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	id := padID(stored.ID)
	err = m.update(func(txn *badger.Txn) error {
		if err := txn.Set(msgKey(stored.ID), value); err != nil {
			return err
		}
		if err := txn.Set([]byte(pairPrefix(stored.SenderID, stored.ReceiverID)+id), nil); err != nil {
			return err
		}
		if err := txn.Set([]byte(unseenPairPrefix(stored.ReceiverID, stored.SenderID)+id), nil); err != nil {
			return err
		}
		if err := txn.Set(fmt.Appendf(nil, "%s%d", peerPrefix(stored.SenderID), stored.ReceiverID), nil); err != nil {
			return err
		}
		return txn.Set(fmt.Appendf(nil, "%s%d", peerPrefix(stored.ReceiverID), stored.SenderID), nil)
	})
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	*msg = stored
	return nil
}

func getMessage(txn *badger.Txn, id int64) (*store.Message, error) {
	item, err := txn.Get(msgKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("message %d: %w", id, store.ErrNotFound)
		}
		return nil, err
	}
	var msg store.Message
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &msg)
	})
	if err != nil {
		return nil, fmt.Errorf("decode message %d: %w", id, err)
	}
	return &msg, nil
}

func putMessage(txn *badger.Txn, msg *store.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return txn.Set(msgKey(msg.ID), value)
}

// GetMessage retrieves a single message by ID.
func (m *MessageStore) GetMessage(_ context.Context, id int64) (*store.Message, error) {
	var msg *store.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		msg, err = getMessage(txn, id)
		return err
	})
	return msg, err
}

// scanKeys collects the key suffixes under prefix without loading values.
func scanKeys(txn *badger.Txn, prefix string) []string {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var suffixes []string
	for it.Rewind(); it.Valid(); it.Next() {
		suffixes = append(suffixes, strings.TrimPrefix(string(it.Item().Key()), prefix))
	}
	return suffixes
}

func parseIDs(suffixes []string) ([]int64, error) {
	ids := make([]int64, 0, len(suffixes))
	for _, s := range suffixes {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse key %q: %w", s, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// History returns the conversation between userA and userB, oldest first.
func (m *MessageStore) History(_ context.Context, userA, userB int64) ([]*store.Message, error) {
	messages := make([]*store.Message, 0)
	err := m.db.View(func(txn *badger.Txn) error {
		ids, err := parseIDs(scanKeys(txn, pairPrefix(userA, userB)))
		if err != nil {
			return err
		}
		for _, id := range ids {
			msg, err := getMessage(txn, id)
			if err != nil {
				return err
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return messages, nil
}

// MarkSeen flags every unseen message from senderID to receiverID in one transaction.
func (m *MessageStore) MarkSeen(_ context.Context, senderID, receiverID int64) (int64, error) {
	return m.markSeen(senderID, receiverID, 0)
}

// MarkSeenThrough flags unseen messages from senderID to receiverID up to lastID.
func (m *MessageStore) MarkSeenThrough(_ context.Context, senderID, receiverID, lastID int64) (int64, error) {
	if lastID <= 0 {
		return 0, nil
	}
	return m.markSeen(senderID, receiverID, lastID)
}

// markSeen treats lastID == 0 as unbounded.
func (m *MessageStore) markSeen(senderID, receiverID, lastID int64) (int64, error) {
	var changed int64
	err := m.update(func(txn *badger.Txn) error {
		changed = 0
		prefix := unseenPairPrefix(receiverID, senderID)
		ids, err := parseIDs(scanKeys(txn, prefix))
		if err != nil {
			return err
		}
		for _, id := range ids {
			if lastID > 0 && id > lastID {
				break
			}
			msg, err := getMessage(txn, id)
			if err != nil {
				return err
			}
			msg.Seen = true
			if err := putMessage(txn, msg); err != nil {
				return err
			}
			if err := txn.Delete([]byte(prefix + padID(id))); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("mark seen: %w", err)
	}
	return changed, nil
}

// MarkMessageSeen flags one message as seen when receiverID is its receiver.
func (m *MessageStore) MarkMessageSeen(_ context.Context, messageID, receiverID int64) (bool, error) {
	var ok bool
	err := m.update(func(txn *badger.Txn) error {
		ok = false
		msg, err := getMessage(txn, messageID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			return err
		}
		if msg.ReceiverID != receiverID {
			return nil
		}
		ok = true
		if msg.Seen {
			return nil
		}
		msg.Seen = true
		if err := putMessage(txn, msg); err != nil {
			return err
		}
		return txn.Delete([]byte(unseenPairPrefix(msg.ReceiverID, msg.SenderID) + padID(msg.ID)))
	})
	if err != nil {
		return false, fmt.Errorf("mark message seen: %w", err)
	}
	return ok, nil
}

// UnseenCounts maps sender ID to the number of unseen messages addressed to receiverID.
func (m *MessageStore) UnseenCounts(_ context.Context, receiverID int64) (map[int64]int, error) {
	counts := make(map[int64]int)
	err := m.db.View(func(txn *badger.Txn) error {
		for _, suffix := range scanKeys(txn, unseenPrefix(receiverID)) {
			sender, _, found := strings.Cut(suffix, ":")
			if !found {
				return fmt.Errorf("malformed unseen key %q", suffix)
			}
			senderID, err := strconv.ParseInt(sender, 10, 64)
			if err != nil {
				return fmt.Errorf("parse sender %q: %w", sender, err)
			}
			counts[senderID]++
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query unseen counts: %w", err)
	}
	return counts, nil
}

// Peers returns the distinct users userID has exchanged messages with.
func (m *MessageStore) Peers(_ context.Context, userID int64) ([]int64, error) {
	var peers []int64
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		peers, err = parseIDs(scanKeys(txn, peerPrefix(userID)))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("query peers: %w", err)
	}
	slices.Sort(peers)
	return peers, nil
}
