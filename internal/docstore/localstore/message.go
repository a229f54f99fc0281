package localstore

import (
	"context"
	"time"

	"github.com/matheus3301/parley/internal/model"
)

// ListMessages returns up to limit messages for a conversation in
// createdAt ascending order, as assigned by the store clock.
func (db *DB) ListMessages(ctx context.Context, conversationID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT msg_id, sender_id, sender_name, sender_avatar_url, body,
		       attachment_url, attachment_name, attachment_mime, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at ASC, msg_id ASC
		LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []model.Message
	for rows.Next() {
		var m model.Message
		var attURL, attName, attMime string
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.SenderAvatarURL,
			&m.Text, &attURL, &attName, &attMime, &createdAt); err != nil {
			return nil, err
		}
		m.ConversationID = conversationID
		m.CreatedAt = time.UnixMilli(createdAt)
		if attURL != "" {
			m.Attachment = &model.Attachment{URL: attURL, Name: attName, MimeType: attMime}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
