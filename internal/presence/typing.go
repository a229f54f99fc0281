package presence

import (
	"fmt"

	"github.com/matheus3301/parley/internal/realtime"
)

// SetTyping publishes the session user's typing flag in a conversation.
// Raising the flag also arms an on-disconnect clear, so a dropped
// connection never leaves a phantom "typing…" indicator behind.
func (p *Publisher) SetTyping(conversationID string, isTyping bool) error {
	path := realtime.TypingPath(conversationID, p.userID)
	if isTyping {
		if err := p.conn.OnDisconnect(path, realtime.Value{IsTyping: false}); err != nil {
			return fmt.Errorf("arm typing clear: %w", err)
		}
	}
	if err := p.conn.Set(path, realtime.Value{IsTyping: isTyping}); err != nil {
		return fmt.Errorf("publish typing: %w", err)
	}
	return nil
}
