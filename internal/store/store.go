package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique constraint would be violated.
	ErrConflict = errors.New("conflict")
	// ErrInvalidMessage is returned by AppendMessage when a message does not
	// carry exactly one of text and image.
	ErrInvalidMessage = errors.New("invalid message")
)

// User represents an account known to the auth collaborator.
type User struct {
	ID           int64
	Email        string
	FullName     string
	PasswordHash string
	ProfilePic   string
	Bio          string
	CreatedAt    time.Time
}

// Message represents a persisted direct message.
// Exactly one of Text and Image is non-empty. Seen only ever moves false -> true.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Text       string
	Image      string
	CreatedAt  time.Time
	Seen       bool
}

// CheckMessage reports ErrInvalidMessage unless exactly one of Text and
// Image is set. Backends call it before assigning an ID.
func CheckMessage(msg *Message) error {
	if (msg.Text == "") == (msg.Image == "") {
		return fmt.Errorf("%w: exactly one of text and image is required", ErrInvalidMessage)
	}
	return nil
}

// UserStore handles user persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, u *User) error

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// ListUsers returns every user except excludeID, ordered by full name.
	ListUsers(ctx context.Context, excludeID int64) ([]*User, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendMessage persists msg, assigning ID and CreatedAt when unset.
	// The write is durable once AppendMessage returns nil. A message without
	// exactly one of text and image fails with ErrInvalidMessage.
	AppendMessage(ctx context.Context, msg *Message) error

	// GetMessage retrieves a single message by ID.
	GetMessage(ctx context.Context, id int64) (*Message, error)

	// History returns every message exchanged between userA and userB
	// ordered by creation ascending.
	History(ctx context.Context, userA, userB int64) ([]*Message, error)

	// MarkSeen flags every unseen message from senderID to receiverID as seen
	// in one atomic step and returns how many changed.
	MarkSeen(ctx context.Context, senderID, receiverID int64) (int64, error)

	// MarkSeenThrough is MarkSeen restricted to messages with ID <= lastID.
	MarkSeenThrough(ctx context.Context, senderID, receiverID, lastID int64) (int64, error)

	// MarkMessageSeen flags a single message as seen if it is addressed to receiverID.
	MarkMessageSeen(ctx context.Context, messageID, receiverID int64) (bool, error)

	// UnseenCounts maps sender ID to the number of unseen messages addressed to receiverID.
	UnseenCounts(ctx context.Context, receiverID int64) (map[int64]int, error)

	// Peers returns the distinct users userID has exchanged messages with.
	Peers(ctx context.Context, userID int64) ([]int64, error)

	// Close releases the underlying storage.
	Close() error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	MessageStore
}
