package gateway

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/convo"
	"github.com/matheus3301/parley/internal/identity"
	"github.com/matheus3301/parley/internal/model"
	"github.com/matheus3301/parley/internal/presence"
	"github.com/matheus3301/parley/internal/realtime"
	"github.com/matheus3301/parley/internal/send"
	"github.com/matheus3301/parley/internal/status"
)

// Session is everything scoped to one signed-in user: the merged
// conversation view, the send pipeline and the presence machinery.
type Session struct {
	User    model.User
	Convos  *convo.Store
	Sender  *send.Sender
	Pub     *presence.Publisher
	Tracker *presence.Tracker

	handle *convo.Handle
	conn   realtime.Conn
	cancel context.CancelFunc

	mu         sync.Mutex
	observed   map[string]*presence.Observation
	typWatched map[string]*presence.Observation
}

// signIn verifies the token, ensures the user document exists and
// assembles a fresh session. A prior session is torn down first.
func (s *Server) signIn(ctx context.Context, token string) (*Session, error) {
	ident, err := s.auth.SignIn(ctx, token)
	if err != nil {
		if s.machine.Current() == status.Booting {
			_ = s.machine.Transition(status.AuthRequired)
		}
		return nil, err
	}

	user, err := identity.EnsureUser(ctx, s.docs, ident)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	s.teardownSession()

	sessCtx, cancel := context.WithCancel(context.Background())
	convos := convo.NewStore(s.docs, s.bus, s.logger, user.ID)
	handle, err := convos.Subscribe(sessCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe conversations: %w", err)
	}

	conn := s.rt.Connect()
	pub := presence.NewPublisher(conn, s.logger, user.ID)
	pub.Start()

	sess := &Session{
		User:       *user,
		Convos:     convos,
		Sender:     send.NewSender(s.docs, convos, s.blobs, s.bus, s.logger, *user),
		Pub:        pub,
		Tracker:    presence.NewTracker(s.rt, s.bus, s.logger, s.cfg.PresenceDebounce()),
		handle:     handle,
		conn:       conn,
		cancel:     cancel,
		observed:   make(map[string]*presence.Observation),
		typWatched: make(map[string]*presence.Observation),
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	if err := s.machine.Transition(status.Ready); err != nil {
		s.logger.Warn("status transition rejected", zap.Error(err))
	}
	s.logger.Info("signed in",
		zap.String("user_id", user.ID), zap.String("display_name", user.DisplayName))
	return sess, nil
}

// teardownSession releases the active session, if any.
func (s *Server) teardownSession() {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()
	if sess == nil {
		return
	}

	sess.mu.Lock()
	for _, obs := range sess.observed {
		obs.Cancel()
	}
	for _, obs := range sess.typWatched {
		obs.Cancel()
	}
	sess.observed = map[string]*presence.Observation{}
	sess.typWatched = map[string]*presence.Observation{}
	sess.mu.Unlock()

	sess.Pub.Stop()
	_ = sess.conn.Close()
	sess.handle.Cancel()
	sess.cancel()
	s.logger.Info("session torn down", zap.String("user_id", sess.User.ID))
}

// observePresence starts (or keeps) a presence watch on userID.
func (sess *Session) observePresence(userID string) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if _, ok := sess.observed[userID]; ok {
		return
	}
	sess.observed[userID] = sess.Tracker.Observe(userID)
}

// unobservePresence stops watching userID.
func (sess *Session) unobservePresence(userID string) {
	sess.mu.Lock()
	obs := sess.observed[userID]
	delete(sess.observed, userID)
	sess.mu.Unlock()
	if obs != nil {
		obs.Cancel()
	}
}

// watchTyping starts (or keeps) a typing watch on a counterpart in a
// conversation.
func (sess *Session) watchTyping(conversationID, userID string) {
	key := conversationID + "/" + userID
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if _, ok := sess.typWatched[key]; ok {
		return
	}
	sess.typWatched[key] = sess.Tracker.WatchTyping(conversationID, userID)
}
