package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matheus3301/parley/internal/docstore"
)

// Commit applies a send unit as one transaction: insert the message, set
// the conversation's last-message summary, set the recipient's unread
// counter. If any statement fails the whole unit rolls back and nothing
// becomes visible. Zero timestamps are stamped with the store clock at
// commit time.
func (db *DB) Commit(ctx context.Context, unit docstore.Unit) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var a, b string
	err = tx.QueryRowContext(ctx, `
		SELECT participant_a, participant_b FROM conversations WHERE id = ?`,
		unit.Message.ConversationID).Scan(&a, &b)
	if err == sql.ErrNoRows {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}

	now := time.Now()

	msg := unit.Message
	msgAt := msg.CreatedAt
	if msgAt.IsZero() {
		msgAt = now
	}
	var attURL, attName, attMime string
	if msg.Attachment != nil {
		attURL = msg.Attachment.URL
		attName = msg.Attachment.Name
		attMime = msg.Attachment.MimeType
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (conversation_id, msg_id, sender_id, sender_name, sender_avatar_url,
		                      body, attachment_url, attachment_name, attachment_mime, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ConversationID, msg.ID, msg.SenderID, msg.SenderName, msg.SenderAvatarURL,
		msg.Text, attURL, attName, attMime, msgAt.UnixMilli()); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	lm := unit.LastMessage
	lmAt := lm.CreatedAt
	if lmAt.IsZero() {
		lmAt = now
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET last_message_text = ?, last_message_at = ?, last_message_sender = ?
		WHERE id = ?`,
		lm.Text, lmAt.UnixMilli(), lm.SenderID, msg.ConversationID); err != nil {
		return fmt.Errorf("set last message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO unread_counts (conversation_id, user_id, count)
		VALUES (?, ?, ?)
		ON CONFLICT(conversation_id, user_id) DO UPDATE SET count = excluded.count`,
		msg.ConversationID, unit.UnreadUserID, unit.UnreadCount); err != nil {
		return fmt.Errorf("set unread counter: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	db.notify(a, b)
	return nil
}
