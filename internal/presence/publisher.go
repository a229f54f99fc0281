package presence

import (
	"sync"

	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/model"
	"github.com/matheus3301/parley/internal/realtime"
)

// Publisher maintains the session user's own presence record. It follows
// the connectivity sentinel: on each (re)connect it first arms the
// store's on-disconnect write, then marks the user online. The ordering
// matters: once online is visible, the offline fallback is already in
// place for any kind of drop.
type Publisher struct {
	conn   realtime.Conn
	logger *zap.Logger
	userID string

	sub  *realtime.BoolSubscription
	done chan struct{}
	once sync.Once
}

// NewPublisher creates a publisher over an open realtime connection.
func NewPublisher(conn realtime.Conn, logger *zap.Logger, userID string) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
		userID: userID,
		done:   make(chan struct{}),
	}
}

// Start begins following the connectivity sentinel.
func (p *Publisher) Start() {
	p.sub = p.conn.Connectivity()
	go func() {
		for {
			select {
			case connected, ok := <-p.sub.Values:
				if !ok {
					return
				}
				if !connected {
					// The store applies the registered offline write
					// itself; nothing to do from this side.
					continue
				}
				p.markOnline()
			case <-p.done:
				return
			}
		}
	}()
}

func (p *Publisher) markOnline() {
	path := realtime.StatusPath(p.userID)
	if err := p.conn.OnDisconnect(path, realtime.Value{State: model.PresenceOffline}); err != nil {
		p.logger.Warn("arm on-disconnect failed", zap.Error(err))
		return
	}
	if err := p.conn.Set(path, realtime.Value{State: model.PresenceOnline}); err != nil {
		p.logger.Warn("publish online failed", zap.Error(err))
	}
}

// Stop writes an explicit offline record and stops following the
// sentinel. Idempotent. A crash skips this path entirely; the
// on-disconnect write covers it.
func (p *Publisher) Stop() {
	p.once.Do(func() {
		close(p.done)
		if p.sub != nil {
			p.sub.Cancel()
		}
		path := realtime.StatusPath(p.userID)
		if err := p.conn.Set(path, realtime.Value{State: model.PresenceOffline}); err != nil {
			p.logger.Warn("publish offline failed", zap.Error(err))
		}
	})
}
