// Package proto defines the JSON frames exchanged over the chat websocket.
package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello = "hello"
	InboundTypeMsg   = "msg"
	InboundTypeSeen  = "seen"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNewMessage  = "new_message"
	EventOnlineUsers = "online_users"
	EventSent        = "sent"
	EventHello       = "hello"
)

// HelloData lets a client check protocol compatibility. It is optional.
type HelloData struct {
	Protocol int `json:"protocol,omitempty"`
}

// MsgData sends a message to another user. Exactly one of Text and Image is set.
// Image is a base64 data URL.
type MsgData struct {
	To    int64  `json:"to"`
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// SeenData marks every message from Peer as seen.
type SeenData struct {
	Peer int64 `json:"peer"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Message is the wire form of a stored direct message.
type Message struct {
	ID         int64  `json:"id"`
	SenderID   int64  `json:"senderId"`
	ReceiverID int64  `json:"receiverId"`
	Text       string `json:"text,omitempty"`
	Image      string `json:"image,omitempty"`
	Seen       bool   `json:"seen"`
	CreatedAt  int64  `json:"createdAt"`
}

// EventOnlineUsersData is the full presence snapshot.
type EventOnlineUsersData struct {
	Users []int64 `json:"users"`
}

// EventHelloData confirms the negotiated protocol.
type EventHelloData struct {
	Protocol int `json:"protocol"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
