// Package presence publishes the session user's connection state and
// tracks other users' presence and typing indicators. Observed offline
// transitions are debounced so connection flicker never reaches the
// display; online transitions are immediate.
package presence

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/bus"
	"github.com/matheus3301/parley/internal/model"
	"github.com/matheus3301/parley/internal/realtime"
)

// Change is the payload of a presence.changed event.
type Change struct {
	UserID string
	Online bool
}

// TypingChange is the payload of a typing.changed event.
type TypingChange struct {
	ConversationID string
	UserID         string
	IsTyping       bool
}

// Effective presence states tracked per observed user. A raw offline
// only becomes effective after the debounce window elapses without a
// raw online in between.
type state int

const (
	stateUnknown state = iota
	stateOnline
	statePendingOffline
	stateOffline
)

// Tracker folds raw realtime presence values into debounced effective
// states, one per observed user.
type Tracker struct {
	store    realtime.Store
	bus      *bus.Bus
	logger   *zap.Logger
	debounce time.Duration

	mu      sync.Mutex
	watched map[string]*watched
}

type watched struct {
	state state
	timer *time.Timer
	// refs counts open observations of this user. The shared state only
	// goes away when the last one cancels.
	refs int
}

// NewTracker creates a tracker. debounce is the offline quiet window;
// pass the configured value, conventionally 2 seconds.
func NewTracker(store realtime.Store, b *bus.Bus, logger *zap.Logger, debounce time.Duration) *Tracker {
	return &Tracker{
		store:    store,
		bus:      b,
		logger:   logger,
		debounce: debounce,
		watched:  make(map[string]*watched),
	}
}

// Observation is a cancelable watch on one user or typing path.
type Observation struct {
	once   sync.Once
	cancel func()
}

// Cancel releases the watch and any pending debounce timer. Idempotent.
func (o *Observation) Cancel() {
	o.once.Do(o.cancel)
}

// Observe starts watching userID's presence record. Effective changes
// are published as presence.changed events; the initial raw value never
// produces an offline event on its own.
func (t *Tracker) Observe(userID string) *Observation {
	sub := t.store.Watch(realtime.StatusPath(userID))

	t.mu.Lock()
	if w, ok := t.watched[userID]; ok {
		w.refs++
	} else {
		t.watched[userID] = &watched{state: stateUnknown, refs: 1}
	}
	t.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case v, ok := <-sub.Values:
				if !ok {
					return
				}
				t.fold(userID, v)
			case <-done:
				return
			}
		}
	}()

	return &Observation{cancel: func() {
		sub.Cancel()
		close(done)
		t.mu.Lock()
		if w, ok := t.watched[userID]; ok {
			w.refs--
			if w.refs <= 0 {
				if w.timer != nil {
					w.timer.Stop()
				}
				delete(t.watched, userID)
			}
		}
		t.mu.Unlock()
	}}
}

// Online reports userID's current effective presence.
func (t *Tracker) Online(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.watched[userID]
	return ok && (w.state == stateOnline || w.state == statePendingOffline)
}

func (t *Tracker) fold(userID string, v *realtime.Value) {
	rawOnline := v != nil && v.State == model.PresenceOnline

	t.mu.Lock()
	w, ok := t.watched[userID]
	if !ok {
		t.mu.Unlock()
		return
	}

	if rawOnline {
		if w.timer != nil {
			w.timer.Stop()
			w.timer = nil
		}
		was := w.state
		w.state = stateOnline
		t.mu.Unlock()
		// PendingOffline is still effectively online; only a real
		// transition is announced.
		if was != stateOnline && was != statePendingOffline {
			t.emit(userID, true)
		}
		return
	}

	switch w.state {
	case stateOnline:
		w.state = statePendingOffline
		w.timer = time.AfterFunc(t.debounce, func() { t.settleOffline(userID) })
	case stateUnknown:
		// First observation already offline: adopt it without an event.
		w.state = stateOffline
	}
	t.mu.Unlock()
}

func (t *Tracker) settleOffline(userID string) {
	t.mu.Lock()
	w, ok := t.watched[userID]
	if !ok || w.state != statePendingOffline {
		t.mu.Unlock()
		return
	}
	w.state = stateOffline
	w.timer = nil
	t.mu.Unlock()

	t.emit(userID, false)
}

func (t *Tracker) emit(userID string, online bool) {
	t.logger.Debug("presence changed",
		zap.String("user_id", userID), zap.Bool("online", online))
	t.bus.Publish(bus.Event{
		Kind:      bus.KindPresenceChanged,
		Timestamp: time.Now(),
		Payload:   Change{UserID: userID, Online: online},
	})
}

// WatchTyping starts watching userID's typing flag in a conversation.
// Typing changes are deliberately undebounced; the flag already carries
// its own start/stop semantics.
func (t *Tracker) WatchTyping(conversationID, userID string) *Observation {
	sub := t.store.Watch(realtime.TypingPath(conversationID, userID))

	done := make(chan struct{})
	go func() {
		var last bool
		for {
			select {
			case v, ok := <-sub.Values:
				if !ok {
					return
				}
				typing := v != nil && v.IsTyping
				if typing == last {
					continue
				}
				last = typing
				t.bus.Publish(bus.Event{
					Kind:      bus.KindTypingChanged,
					Timestamp: time.Now(),
					Payload: TypingChange{
						ConversationID: conversationID,
						UserID:         userID,
						IsTyping:       typing,
					},
				})
			case <-done:
				return
			}
		}
	}()

	return &Observation{cancel: func() {
		sub.Cancel()
		close(done)
	}}
}
