// Package convo maintains the authoritative local view of a user's
// conversations: remote snapshots merged with in-flight optimistic
// writes, exposed in a stable sort order.
package convo

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/parley/internal/bus"
	"github.com/matheus3301/parley/internal/docstore"
	"github.com/matheus3301/parley/internal/model"
	"go.uber.org/zap"
)

// unknownUser is the display name used when a counterpart lookup fails.
const unknownUser = "Unknown User"

// Store holds the merged conversation view for one signed-in user. The
// session identity is fixed at construction; nothing is read from
// ambient state.
type Store struct {
	docs   docstore.Store
	bus    *bus.Bus
	logger *zap.Logger
	userID string

	mu   sync.RWMutex
	byID map[string]model.Conversation
	// names caches counterpart display names for the whole session;
	// display names are assumed stable while signed in.
	names map[string]string
}

// NewStore creates a conversation store for userID.
func NewStore(docs docstore.Store, b *bus.Bus, logger *zap.Logger, userID string) *Store {
	return &Store{
		docs:   docs,
		bus:    b,
		logger: logger,
		userID: userID,
		byID:   make(map[string]model.Conversation),
		names:  make(map[string]string),
	}
}

// Handle is a cancelable subscription. Cancel is idempotent.
type Handle struct {
	once   sync.Once
	cancel func()
}

// Cancel tears down the underlying live query.
func (h *Handle) Cancel() {
	h.once.Do(h.cancel)
}

// Subscribe opens exactly one live query for the session user's
// conversations and folds each pushed snapshot into the store. The
// returned handle must be canceled when the consumer goes away; an
// unreleased handle leaks a server-side listener.
func (s *Store) Subscribe(ctx context.Context) (*Handle, error) {
	sub, err := s.docs.WatchConversations(ctx, s.userID)
	if err != nil {
		return nil, fmt.Errorf("open live query: %w", err)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case snap, ok := <-sub.Snapshots:
				if !ok {
					return
				}
				s.applySnapshot(ctx, snap)
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return &Handle{cancel: func() {
		sub.Cancel()
		close(done)
	}}, nil
}

// Refresh re-reads the server's conversation set and folds it in,
// discarding any optimistic entry that was never confirmed. Used after
// a rejected commit, where no snapshot will arrive on its own because
// nothing was mutated.
func (s *Store) Refresh(ctx context.Context) error {
	snap, err := s.docs.ConversationsFor(ctx, s.userID)
	if err != nil {
		return fmt.Errorf("refresh conversations: %w", err)
	}
	s.applySnapshot(ctx, snap)
	return nil
}

// applySnapshot replaces the merged view wholesale: the snapshot is the
// full current set, so any optimistic entry for a conversation it
// contains is unconditionally superseded — server state always wins.
func (s *Store) applySnapshot(ctx context.Context, snap []model.Conversation) {
	// Resolve counterpart display names not yet cached, outside the lock.
	resolved := make(map[string]string)
	s.mu.RLock()
	for _, c := range snap {
		counterpart := c.Counterpart(s.userID)
		if counterpart == "" {
			continue
		}
		if _, ok := s.names[counterpart]; ok {
			continue
		}
		if _, ok := resolved[counterpart]; ok {
			continue
		}
		resolved[counterpart] = ""
	}
	s.mu.RUnlock()

	for counterpart := range resolved {
		u, err := s.docs.GetUser(ctx, counterpart)
		if err != nil {
			s.logger.Warn("counterpart lookup failed",
				zap.String("user_id", counterpart), zap.Error(err))
			resolved[counterpart] = unknownUser
			continue
		}
		resolved[counterpart] = u.DisplayName
	}

	s.mu.Lock()
	for id, name := range resolved {
		s.names[id] = name
	}
	s.byID = make(map[string]model.Conversation, len(snap))
	for _, c := range snap {
		s.byID[c.ID] = c.Clone()
	}
	s.mu.Unlock()

	s.bus.Publish(bus.Event{
		Kind:      bus.KindConversationUpdated,
		Timestamp: time.Now(),
		Payload:   len(snap),
	})
}

// List returns the merged conversations in display order: unread count
// for the session user descending, then last-message time descending,
// ties broken by conversation id so unchanged input yields unchanged
// output.
func (s *Store) List() []model.Conversation {
	s.mu.RLock()
	out := make([]model.Conversation, 0, len(s.byID))
	for _, c := range s.byID {
		out = append(out, c.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.Conversation) int {
		if n := cmp.Compare(b.UnreadCount[s.userID], a.UnreadCount[s.userID]); n != 0 {
			return n
		}
		if n := b.LastMessage.CreatedAt.Compare(a.LastMessage.CreatedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Get returns one conversation from the merged view.
func (s *Store) Get(conversationID string) (model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[conversationID]
	if !ok {
		return model.Conversation{}, false
	}
	return c.Clone(), true
}

// DisplayName returns the conversation's display name: the counterpart's
// display name, resolved once per session.
func (s *Store) DisplayName(conversationID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.byID[conversationID]
	if !ok {
		return ""
	}
	if name, ok := s.names[c.Counterpart(s.userID)]; ok {
		return name
	}
	return unknownUser
}

// ApplyOptimistic updates the local view as if msg had already been
// committed: new last-message summary with the client clock, counterpart
// unread counter bumped. The next server snapshot replaces this entry
// unconditionally.
func (s *Store) ApplyOptimistic(msg model.Message) {
	at := msg.CreatedAt
	if at.IsZero() {
		at = time.Now()
	}

	s.mu.Lock()
	c, ok := s.byID[msg.ConversationID]
	if !ok {
		s.mu.Unlock()
		return
	}
	c = c.Clone()
	c.LastMessage = model.LastMessage{
		Text:      msg.Preview(),
		CreatedAt: at,
		SenderID:  msg.SenderID,
	}
	c.UnreadCount[c.Counterpart(msg.SenderID)]++
	s.byID[c.ID] = c
	s.mu.Unlock()

	s.bus.Publish(bus.Event{
		Kind:      bus.KindConversationUpdated,
		Timestamp: time.Now(),
		Payload:   1,
	})
}

// MarkRead resets the session user's unread counter on a conversation.
// Read state is not safety-critical: a rejected write is returned to the
// caller, who may retry or ignore it.
func (s *Store) MarkRead(ctx context.Context, conversationID string) error {
	if err := s.docs.SetUnreadCount(ctx, conversationID, s.userID, 0); err != nil {
		s.logger.Warn("mark read rejected",
			zap.String("conversation_id", conversationID), zap.Error(err))
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// UserID returns the session user this store was built for.
func (s *Store) UserID() string {
	return s.userID
}
