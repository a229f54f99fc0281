package bus

import "time"

// Event kinds published by the core components. Subscribers filter by
// namespace prefix (e.g. "conversation.").
const (
	KindConversationUpdated = "conversation.updated"
	KindMessageCommitted    = "message.committed"
	KindMessageFailed       = "message.commit_failed"
	KindPresenceChanged     = "presence.changed"
	KindTypingChanged       = "typing.changed"
	KindStatusChanged       = "session.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
