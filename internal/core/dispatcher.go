package core

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
	"github.com/vovakirdan/pairchat/internal/store"
)

const lockStripes = 64

// UserDirectory resolves user identifiers known to the auth collaborator.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
}

// MediaStore turns raw image data into a stable reference.
// Errors wrapping ErrValidation mean the data itself was unacceptable.
// Store returns raw unchanged when it already is a stored reference.
type MediaStore interface {
	Store(ctx context.Context, raw string) (ref string, err error)
	Remove(ctx context.Context, ref string) error
}

// Receipt is the outcome of a send: the persisted message and whether
// a live push reached the receiver's connection.
type Receipt struct {
	Message   *store.Message
	Delivered bool
}

// Dispatcher persists outgoing messages and pushes them to online receivers.
type Dispatcher struct {
	messages store.MessageStore
	users    UserDirectory
	media    MediaStore
	presence *Hub
	log      *zerolog.Logger

	// Sends for the same sender/receiver pair are serialized on a striped lock
	// so persist order and push order match call order.
	locks [lockStripes]sync.Mutex
}

// NewDispatcher builds a dispatcher. users and media may be nil, in which case
// receiver existence is not checked and images are stored as given.
func NewDispatcher(messages store.MessageStore, users UserDirectory, media MediaStore, presence *Hub, logger *zerolog.Logger) *Dispatcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{
		messages: messages,
		users:    users,
		media:    media,
		presence: presence,
		log:      logger,
	}
}

func (d *Dispatcher) pairLock(senderID, receiverID int64) *sync.Mutex {
	var key [16]byte
	binary.BigEndian.PutUint64(key[:8], uint64(senderID))
	binary.BigEndian.PutUint64(key[8:], uint64(receiverID))
	return &d.locks[xxhash.Sum64(key[:])%lockStripes]
}

// Send validates and persists a message from senderID to receiverID, then
// pushes it to the receiver if online. A failed push does not fail the send;
// the message surfaces on the receiver's next history fetch.
func (d *Dispatcher) Send(ctx context.Context, senderID, receiverID int64, p Payload) (*Receipt, error) {
	p = p.Normalize()
	if err := ValidatePayload(p); err != nil {
		return nil, err
	}
	if senderID == receiverID {
		return nil, validationError("cannot send a message to yourself")
	}

	if d.users != nil {
		if _, err := d.users.GetUserByID(ctx, receiverID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("receiver %d: %w", receiverID, ErrNotFound)
			}
			return nil, fmt.Errorf("%w: lookup receiver: %w", ErrPersistence, err)
		}
	}

	var uploaded string
	if p.Image != "" && d.media != nil {
		ref, err := d.media.Store(ctx, p.Image)
		if err != nil {
			if errors.Is(err, ErrValidation) {
				return nil, err
			}
			d.log.Error().Err(err).Int64("sender_id", senderID).Msg("failed to store image")
			return nil, fmt.Errorf("%w: store image: %w", ErrPersistence, err)
		}
		if ref != p.Image {
			uploaded = ref
		}
		p.Image = ref
	}

	mu := d.pairLock(senderID, receiverID)
	mu.Lock()
	defer mu.Unlock()

	msg := &store.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       p.Text,
		Image:      p.Image,
	}
	if err := d.messages.AppendMessage(ctx, msg); err != nil {
		d.discardUpload(uploaded)
		if errors.Is(err, store.ErrInvalidMessage) {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		d.log.Error().Err(err).
			Int64("sender_id", senderID).
			Int64("receiver_id", receiverID).
			Msg("failed to persist message")
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	receipt := &Receipt{Message: msg}

	pushed := *msg
	err := d.presence.Deliver(receiverID, &Event{Kind: EventNewMessage, Message: &pushed})
	switch {
	case err == nil:
		receipt.Delivered = true
	case errors.Is(err, ErrRecipientOffline):
		d.log.Debug().Int64("receiver_id", receiverID).Int64("message_id", msg.ID).Msg("receiver offline, message stored")
	default:
		d.log.Warn().Err(err).
			Int64("receiver_id", receiverID).
			Int64("message_id", msg.ID).
			Msg("live push failed, message stored")
	}

	return receipt, nil
}

// discardUpload removes an image stored for a message that was never persisted.
// A reference the client forwarded belongs to an older message and is kept.
func (d *Dispatcher) discardUpload(ref string) {
	if ref == "" {
		return
	}
	// The request context may already be done; removal must still happen.
	if err := d.media.Remove(context.Background(), ref); err != nil {
		d.log.Warn().Err(err).Str("ref", ref).Msg("failed to remove orphaned image")
	}
}
