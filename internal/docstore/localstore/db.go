// Package localstore is the SQLite-backed implementation of the docstore
// boundary. Atomic commits are SQL transactions; live queries are
// re-evaluated and pushed to registered watchers after every mutation.
package localstore

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/matheus3301/parley/internal/model"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a SQLite database connection for the session-owned parley.db.
type DB struct {
	*sql.DB

	mu        sync.Mutex
	watchers  map[int]*watcher
	nextWatch int
}

type watcher struct {
	userID string
	ch     chan []model.Conversation
}

// Open creates a new SQLite connection with WAL mode and recommended pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Verify connection.
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &DB{DB: db, watchers: make(map[int]*watcher)}, nil
}

// notify re-evaluates the live query of every watcher observing one of
// the given user ids and pushes a fresh full snapshot. A snapshot always
// supersedes the previous one: if a watcher's buffer is full, the stale
// snapshot is dropped in favor of the new one.
func (db *DB) notify(userIDs ...string) {
	affected := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		affected[id] = true
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	for _, w := range db.watchers {
		if !affected[w.userID] {
			continue
		}
		snap, err := db.conversationsFor(w.userID)
		if err != nil {
			// The watcher keeps its last known state; the next successful
			// mutation will push a fresh snapshot.
			continue
		}
		push(w.ch, snap)
	}
}

// push delivers the latest snapshot, dropping a stale buffered one if needed.
func push(ch chan []model.Conversation, snap []model.Conversation) {
	for {
		select {
		case ch <- snap:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
