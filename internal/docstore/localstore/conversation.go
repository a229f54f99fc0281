package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/matheus3301/parley/internal/docstore"
	"github.com/matheus3301/parley/internal/model"
)

// CreateConversation inserts a conversation and its per-participant
// unread counters. A zero CreatedAt is stamped with the store clock.
func (db *DB) CreateConversation(ctx context.Context, c model.Conversation) error {
	if len(c.Participants) != 2 {
		return fmt.Errorf("conversation needs exactly 2 participants, got %d", len(c.Participants))
	}

	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (id, participant_a, participant_b, created_at, last_message_text, last_message_at, last_message_sender)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Participants[0], c.Participants[1], createdAt.UnixMilli(),
		c.LastMessage.Text, timeToMillis(c.LastMessage.CreatedAt), c.LastMessage.SenderID); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}

	for _, p := range c.Participants {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO unread_counts (conversation_id, user_id, count)
			VALUES (?, ?, ?)`,
			c.ID, p, c.UnreadCount[p]); err != nil {
			return fmt.Errorf("insert unread counter: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	db.notify(c.Participants...)
	return nil
}

// GetConversation returns a conversation by id.
func (db *DB) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, participant_a, participant_b, created_at, last_message_text, last_message_at, last_message_sender
		FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := db.loadUnread(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ConversationsFor returns every conversation containing userID.
func (db *DB) ConversationsFor(ctx context.Context, userID string) ([]model.Conversation, error) {
	return db.conversationsForCtx(ctx, userID)
}

// SetUnreadCount sets unreadCount[userID] on a conversation to n.
// This is the single-field write behind read acknowledgement.
func (db *DB) SetUnreadCount(ctx context.Context, conversationID, userID string, n int) error {
	res, err := db.ExecContext(ctx, `
		UPDATE unread_counts SET count = ? WHERE conversation_id = ? AND user_id = ?`,
		n, conversationID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return docstore.ErrNotFound
	}

	if c, err := db.GetConversation(ctx, conversationID); err == nil {
		db.notify(c.Participants...)
	}
	return nil
}

// conversationsFor is the unlocked variant used by notify, which already
// holds db.mu.
func (db *DB) conversationsFor(userID string) ([]model.Conversation, error) {
	return db.conversationsForCtx(context.Background(), userID)
}

func (db *DB) conversationsForCtx(ctx context.Context, userID string) ([]model.Conversation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, participant_a, participant_b, created_at, last_message_text, last_message_at, last_message_sender
		FROM conversations
		WHERE participant_a = ? OR participant_b = ?
		ORDER BY id ASC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []model.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range convs {
		if err := db.loadUnread(ctx, &convs[i]); err != nil {
			return nil, err
		}
	}
	return convs, nil
}

func (db *DB) loadUnread(ctx context.Context, c *model.Conversation) error {
	rows, err := db.QueryContext(ctx, `
		SELECT user_id, count FROM unread_counts WHERE conversation_id = ?`, c.ID)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	c.UnreadCount = make(map[string]int, 2)
	for rows.Next() {
		var userID string
		var n int
		if err := rows.Scan(&userID, &n); err != nil {
			return err
		}
		c.UnreadCount[userID] = n
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*model.Conversation, error) {
	var c model.Conversation
	var a, b string
	var createdAt, lastAt int64
	if err := row.Scan(&c.ID, &a, &b, &createdAt, &c.LastMessage.Text, &lastAt, &c.LastMessage.SenderID); err != nil {
		return nil, err
	}
	c.Participants = []string{a, b}
	c.CreatedAt = time.UnixMilli(createdAt)
	c.LastMessage.CreatedAt = millisToTime(lastAt)
	return &c, nil
}

func timeToMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
