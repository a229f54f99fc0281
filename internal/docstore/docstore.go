// Package docstore defines the narrow boundary to the durable document
// store holding users, conversations and messages. Implementations must
// provide atomic multi-document commits, live conversation queries that
// push full snapshots (never deltas), and server-assigned timestamps for
// zero time fields.
package docstore

import (
	"context"
	"errors"
	"sync"

	"github.com/matheus3301/parley/internal/model"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("document not found")

// Unit is one indivisible write: insert a message, set the parent
// conversation's last-message summary, and set the recipient's unread
// counter. Either all three become visible together or none do.
type Unit struct {
	Message     model.Message
	LastMessage model.LastMessage

	// UnreadUserID / UnreadCount set unreadCount[UnreadUserID] to the
	// absolute value UnreadCount. The increment is computed by the caller
	// at commit-construction time.
	UnreadUserID string
	UnreadCount  int
}

// Store is the durable document store.
type Store interface {
	// Users.
	CreateUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	SearchUsers(ctx context.Context, prefix, excludeID string) ([]model.User, error)
	AppendConversationRef(ctx context.Context, userID string, ref model.ConversationRef) error

	// Conversations.
	CreateConversation(ctx context.Context, c model.Conversation) error
	GetConversation(ctx context.Context, id string) (*model.Conversation, error)
	ConversationsFor(ctx context.Context, userID string) ([]model.Conversation, error)
	SetUnreadCount(ctx context.Context, conversationID, userID string, n int) error

	// Messages.
	Commit(ctx context.Context, unit Unit) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error)

	// WatchConversations opens a live query for conversations containing
	// userID. The subscription delivers the current full set immediately
	// and a fresh full set after every relevant mutation.
	WatchConversations(ctx context.Context, userID string) (*Subscription, error)
}

// Subscription is a cancelable live query handle. Snapshots carries
// complete result sets; each snapshot supersedes the previous one.
type Subscription struct {
	Snapshots <-chan []model.Conversation

	once   sync.Once
	cancel func()
}

// NewSubscription wraps a snapshot channel and teardown func.
func NewSubscription(snapshots <-chan []model.Conversation, cancel func()) *Subscription {
	return &Subscription{Snapshots: snapshots, cancel: cancel}
}

// Cancel tears down the underlying live query. Idempotent.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}
