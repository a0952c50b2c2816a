package core

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Close reasons reported to the transport when the core ends a connection.
const (
	CloseReasonSuperseded = "superseded"
	CloseReasonShutdown   = "shutdown"
)

// Client is a live connection handle as seen by the core layer.
// The transport drains Events and Presence and stops when Done is closed.
type Client struct {
	ID          string
	UserID      int64
	Name        string
	ConnectedAt time.Time
	Events      chan *Event

	// presence holds at most the latest undelivered snapshot.
	presence  chan []int64
	done      chan struct{}
	closeOnce sync.Once
	reason    string
}

// NewClient constructs a client handle with a buffered event channel.
func NewClient(userID int64, name string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 8
	}
	return &Client{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		ConnectedAt: time.Now().UTC(),
		Events:      make(chan *Event, buffer),
		presence:    make(chan []int64, 1),
		done:        make(chan struct{}),
	}
}

// Push enqueues ev without blocking. It reports false when the
// handle is closed or its buffer is full.
func (c *Client) Push(ev *Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.Events <- ev:
		return true
	default:
		return false
	}
}

// Presence yields presence snapshots. A snapshot the transport has not
// picked up yet is replaced by a newer one, so the last one always arrives.
func (c *Client) Presence() <-chan []int64 {
	return c.presence
}

// setPresence replaces any pending snapshot with ids.
// Callers must serialize calls; the hub does so under its lock.
func (c *Client) setPresence(ids []int64) {
	select {
	case <-c.presence:
	default:
	}
	c.presence <- ids
}

// Close marks the handle closed. Only the first reason is kept.
func (c *Client) Close(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

// Done is closed once the core no longer wants this connection.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// CloseReason is valid after Done is closed.
func (c *Client) CloseReason() string {
	<-c.done
	return c.reason
}
