package core

import "github.com/vovakirdan/pairchat/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventNewMessage is a live push of a persisted message to its receiver.
	EventNewMessage EventKind = iota
	// EventOnlineUsers carries the full presence snapshot.
	EventOnlineUsers
	// EventMessageSent acknowledges a message the client sent over its connection.
	EventMessageSent
	// EventError notifies clients about a domain error.
	EventError
	// EventHello acknowledges a client handshake.
	EventHello
)

func (k EventKind) String() string {
	switch k {
	case EventNewMessage:
		return "new_message"
	case EventOnlineUsers:
		return "online_users"
	case EventMessageSent:
		return "sent"
	case EventError:
		return "error"
	case EventHello:
		return "hello"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind        EventKind
	Message     *store.Message // EventNewMessage, EventMessageSent
	OnlineUsers []int64        // EventOnlineUsers
	Error       *CoreError     // EventError
}
