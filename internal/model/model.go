package model

import "time"

// User is a signed-up account in the users collection. SearchKey is the
// lowercased display name used for prefix search.
type User struct {
	ID               string
	DisplayName      string
	SearchKey        string
	Email            string
	AvatarURL        string
	ConversationRefs []ConversationRef
}

// ConversationRef is a user's pointer to one of their conversations,
// appended when the user initiates the conversation.
type ConversationRef struct {
	ConversationID  string
	CounterpartID   string
	CounterpartName string
}

// LastMessage is the denormalized summary stored on a conversation.
type LastMessage struct {
	Text      string
	CreatedAt time.Time
	SenderID  string
}

// Conversation is a direct conversation between exactly two users.
// UnreadCount has an entry for every participant.
type Conversation struct {
	ID           string
	Participants []string
	CreatedAt    time.Time
	LastMessage  LastMessage
	UnreadCount  map[string]int
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Counterpart returns the other participant's id, or "" if userID is not
// a participant.
func (c *Conversation) Counterpart(userID string) string {
	if !c.HasParticipant(userID) {
		return ""
	}
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// Clone returns a deep copy. Conversations cross goroutine boundaries
// between the store's merge loop and its readers; the map must not be shared.
func (c Conversation) Clone() Conversation {
	out := c
	out.Participants = append([]string(nil), c.Participants...)
	out.UnreadCount = make(map[string]int, len(c.UnreadCount))
	for k, v := range c.UnreadCount {
		out.UnreadCount[k] = v
	}
	return out
}

// Attachment is an uploaded binary referenced by a message.
type Attachment struct {
	URL      string
	Name     string
	MimeType string
}

// Message is an immutable entry in a conversation's message collection.
// At least one of Text or Attachment is present.
type Message struct {
	ID              string
	ConversationID  string
	SenderID        string
	SenderName      string
	SenderAvatarURL string
	Text            string
	Attachment      *Attachment
	CreatedAt       time.Time
}

// Empty reports whether the message carries neither text nor attachment.
func (m *Message) Empty() bool {
	return m.Text == "" && m.Attachment == nil
}

// Preview returns the text used for the conversation's last-message
// summary: the body, or the attachment name for attachment-only messages.
func (m *Message) Preview() string {
	if m.Text != "" {
		return m.Text
	}
	if m.Attachment != nil {
		return m.Attachment.Name
	}
	return ""
}

// Presence states held in the realtime store.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// PresenceRecord is the ephemeral per-user connection state at
// status/{userId}. The realtime store's on-disconnect rule flips it to
// offline; the client never relies solely on its own shutdown path.
type PresenceRecord struct {
	UserID      string
	State       string
	LastChanged time.Time
}

// TypingRecord is the ephemeral typing flag at
// typingStatus/{chatId}/{userId}, cleared on disconnect by the same rule.
type TypingRecord struct {
	ConversationID string
	UserID         string
	IsTyping       bool
	LastChanged    time.Time
}
