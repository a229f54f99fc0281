package localstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/parley/internal/docstore"
	"github.com/matheus3301/parley/internal/model"
)

// CreateUser inserts a user record together with its conversation refs.
func (db *DB) CreateUser(ctx context.Context, u model.User) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, display_name, search_key, email, avatar_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.DisplayName, u.SearchKey, u.Email, u.AvatarURL, now); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	for _, ref := range u.ConversationRefs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_refs (user_id, conversation_id, counterpart_id, counterpart_name, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			u.ID, ref.ConversationID, ref.CounterpartID, ref.CounterpartName, now); err != nil {
			return fmt.Errorf("insert conversation ref: %w", err)
		}
	}
	return tx.Commit()
}

// GetUser returns a user by id, including their conversation refs in
// insertion order.
func (db *DB) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := db.QueryRowContext(ctx, `
		SELECT id, display_name, search_key, email, avatar_url
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.DisplayName, &u.SearchKey, &u.Email, &u.AvatarURL)
	if err == sql.ErrNoRows {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT conversation_id, counterpart_id, counterpart_name
		FROM conversation_refs WHERE user_id = ? ORDER BY created_at ASC, rowid ASC`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var ref model.ConversationRef
		if err := rows.Scan(&ref.ConversationID, &ref.CounterpartID, &ref.CounterpartName); err != nil {
			return nil, err
		}
		u.ConversationRefs = append(u.ConversationRefs, ref)
	}
	return &u, rows.Err()
}

// SearchUsers returns users whose search_key starts with prefix,
// excluding excludeID. Prefix is matched case-insensitively via the
// lowercased search key.
func (db *DB) SearchUsers(ctx context.Context, prefix, excludeID string) ([]model.User, error) {
	pattern := likeEscape(strings.ToLower(prefix)) + "%"
	rows, err := db.QueryContext(ctx, `
		SELECT id, display_name, search_key, email, avatar_url
		FROM users
		WHERE search_key LIKE ? ESCAPE '\' AND id != ?
		ORDER BY search_key ASC
		LIMIT 20`, pattern, excludeID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.DisplayName, &u.SearchKey, &u.Email, &u.AvatarURL); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// AppendConversationRef appends a ref to the user's conversation list.
// Idempotent on (user, conversation).
func (db *DB) AppendConversationRef(ctx context.Context, userID string, ref model.ConversationRef) error {
	now := time.Now().UnixMilli()
	_, err := db.ExecContext(ctx, `
		INSERT INTO conversation_refs (user_id, conversation_id, counterpart_id, counterpart_name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, conversation_id) DO NOTHING`,
		userID, ref.ConversationID, ref.CounterpartID, ref.CounterpartName, now)
	return err
}

var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likeEscape(s string) string {
	return likeReplacer.Replace(s)
}
