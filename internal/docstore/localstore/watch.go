package localstore

import (
	"context"

	"github.com/matheus3301/parley/internal/docstore"
	"github.com/matheus3301/parley/internal/model"
)

// WatchConversations registers a live query for conversations containing
// userID. The current full set is delivered immediately; every mutation
// touching one of the user's conversations pushes a fresh full set.
// Canceling the subscription (or ctx) unregisters the watcher.
func (db *DB) WatchConversations(ctx context.Context, userID string) (*docstore.Subscription, error) {
	ch := make(chan []model.Conversation, 8)
	w := &watcher{userID: userID, ch: ch}

	// Initial read, registration and first delivery happen under one
	// lock, so no mutation can slip between them: anything committed
	// before this point is in the initial set, anything after it will
	// be pushed by notify.
	db.mu.Lock()
	initial, err := db.conversationsFor(userID)
	if err != nil {
		db.mu.Unlock()
		return nil, err
	}
	id := db.nextWatch
	db.nextWatch++
	db.watchers[id] = w
	ch <- initial
	db.mu.Unlock()

	cancel := func() {
		db.mu.Lock()
		delete(db.watchers, id)
		db.mu.Unlock()
	}
	sub := docstore.NewSubscription(ch, cancel)

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			sub.Cancel()
		}()
	}
	return sub, nil
}
