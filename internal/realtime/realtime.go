// Package realtime defines the boundary to the ephemeral key/value
// realtime store holding presence and typing state. The essential
// capability, which cannot be emulated client-side, is on-disconnect
// registration: a value the store writes automatically if the client's
// connection drops.
package realtime

import (
	"sync"
	"time"
)

// Well-known path roots, mirroring the persisted realtime layout.
const (
	statusRoot = "status/"
	typingRoot = "typingStatus/"
)

// StatusPath returns the presence record path for a user.
func StatusPath(userID string) string {
	return statusRoot + userID
}

// TypingPath returns the typing record path for a user in a conversation.
func TypingPath(conversationID, userID string) string {
	return typingRoot + conversationID + "/" + userID
}

// Value is the payload stored at a realtime path. State carries the
// presence state for status paths; IsTyping carries the flag for typing
// paths. LastChanged is stamped by the store on write.
type Value struct {
	State       string
	IsTyping    bool
	LastChanged time.Time
}

// Store is the realtime key/value store.
type Store interface {
	// Connect opens a client connection. Writes and on-disconnect
	// registrations are scoped to the connection.
	Connect() Conn

	// Watch observes a path. The current value (nil if absent) is
	// delivered first, then every subsequent write.
	Watch(path string) *Subscription
}

// Conn is one client's connection to the realtime store.
type Conn interface {
	// Set writes a value at path immediately.
	Set(path string, v Value) error

	// OnDisconnect registers a value the store writes at path when this
	// connection drops, however it drops.
	OnDisconnect(path string, v Value) error

	// Connectivity observes this connection's socket state (the
	// connectivity sentinel). Current state first, then changes.
	Connectivity() *BoolSubscription

	// Close drops the connection and applies all registered
	// on-disconnect writes. Idempotent.
	Close() error
}

// Subscription is a cancelable observation of one path.
type Subscription struct {
	Values <-chan *Value

	once   sync.Once
	cancel func()
}

// NewSubscription wraps a value channel and teardown func.
func NewSubscription(values <-chan *Value, cancel func()) *Subscription {
	return &Subscription{Values: values, cancel: cancel}
}

// Cancel releases the observation. Idempotent.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// BoolSubscription is a cancelable observation of a boolean signal.
type BoolSubscription struct {
	Values <-chan bool

	once   sync.Once
	cancel func()
}

// NewBoolSubscription wraps a bool channel and teardown func.
func NewBoolSubscription(values <-chan bool, cancel func()) *BoolSubscription {
	return &BoolSubscription{Values: values, cancel: cancel}
}

// Cancel releases the observation. Idempotent.
func (s *BoolSubscription) Cancel() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}
