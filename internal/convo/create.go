package convo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/matheus3301/parley/internal/model"
	"go.uber.org/zap"
)

// FindOrCreateConversation returns the existing conversation between the
// session user and counterpartID, creating one if none exists. The
// lookup-then-create is not atomic against the counterpart doing the
// same simultaneously; a duplicate pair from that race is accepted.
func (s *Store) FindOrCreateConversation(ctx context.Context, counterpartID string) (string, error) {
	convs, err := s.docs.ConversationsFor(ctx, s.userID)
	if err != nil {
		return "", fmt.Errorf("look up conversations: %w", err)
	}
	for _, c := range convs {
		if c.HasParticipant(counterpartID) {
			return c.ID, nil
		}
	}

	counterpart, err := s.docs.GetUser(ctx, counterpartID)
	if err != nil {
		return "", fmt.Errorf("look up counterpart: %w", err)
	}

	id := uuid.NewString()
	c := model.Conversation{
		ID:           id,
		Participants: []string{s.userID, counterpartID},
		LastMessage:  model.LastMessage{SenderID: s.userID},
		UnreadCount:  map[string]int{s.userID: 0, counterpartID: 0},
	}
	if err := s.docs.CreateConversation(ctx, c); err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}

	ref := model.ConversationRef{
		ConversationID:  id,
		CounterpartID:   counterpartID,
		CounterpartName: counterpart.DisplayName,
	}
	if err := s.docs.AppendConversationRef(ctx, s.userID, ref); err != nil {
		// The conversation exists; the missing ref only degrades the
		// user's shortcut list.
		s.logger.Warn("append conversation ref failed", zap.Error(err))
	}

	s.mu.Lock()
	s.names[counterpartID] = counterpart.DisplayName
	s.mu.Unlock()

	return id, nil
}
