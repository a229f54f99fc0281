package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/convo"
)

// envelope is one server-to-client stream frame.
type envelope struct {
	ID      string    `json:"id"`
	Kind    string    `json:"kind"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload,omitempty"`
}

// clientFrame is one client-to-server stream frame. Op selects the
// action; the remaining fields are op-specific.
type clientFrame struct {
	Op             string `json:"op"` // search | typing | observe | unobserve | watch_typing
	Query          string `json:"q,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	UserID         string `json:"userId,omitempty"`
	IsTyping       bool   `json:"isTyping,omitempty"`
}

// handleWS GET /api/ws — streams bus events to the client and accepts
// interactive frames. Search frames are debounced server-side so a fast
// typist costs one query, not one per keystroke.
func (s *Server) handleWS(c *websocket.Conn) {
	opened := s.currentSession()
	if opened == nil {
		_ = c.Close()
		return
	}

	events, unsub := s.bus.Subscribe("", 64)
	defer unsub()

	outbound := make(chan envelope, 64)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case evt := <-events:
				select {
				case outbound <- envelope{
					ID:      uuid.NewString(),
					Kind:    evt.Kind,
					At:      evt.Timestamp,
					Payload: evt.Payload,
				}:
				default:
					// Slow reader; the next conversation snapshot or
					// presence change carries current state anyway.
				}
			case <-done:
				return
			}
		}
	}()

	go func() {
		for {
			select {
			case env := <-outbound:
				data, err := json.Marshal(env)
				if err != nil {
					continue
				}
				if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	searchDebounce := convo.NewDebouncer(s.cfg.SearchDebounce())
	defer searchDebounce.Stop()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		// The session this socket opened under may have been torn down
		// (sign-out, or a fresh sign-in replaced it). Such frames must
		// not reach the new session's machinery; close the socket and
		// let the client reconnect.
		sess, ok := s.frameSession(opened)
		if !ok {
			_ = c.Close()
			return
		}
		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		s.dispatchFrame(sess, frame, searchDebounce, outbound)
	}
}

// frameSession resolves the session a stream frame dispatches into. A
// socket is bound to the session it opened under; once that session is
// gone the socket is dead, even if a new session exists.
func (s *Server) frameSession(opened *Session) (*Session, bool) {
	cur := s.currentSession()
	if cur == nil || cur != opened {
		return nil, false
	}
	return cur, true
}

func (s *Server) dispatchFrame(sess *Session, frame clientFrame, searchDebounce *convo.Debouncer, outbound chan<- envelope) {
	switch frame.Op {
	case "search":
		query := frame.Query
		searchDebounce.Trigger(func() {
			s.runSearch(sess, query, outbound)
		})
	case "typing":
		if frame.ConversationID == "" {
			return
		}
		if err := sess.Pub.SetTyping(frame.ConversationID, frame.IsTyping); err != nil {
			s.logger.Warn("typing publish failed", zap.Error(err))
		}
	case "observe":
		if frame.UserID != "" {
			sess.observePresence(frame.UserID)
		}
	case "unobserve":
		if frame.UserID != "" {
			sess.unobservePresence(frame.UserID)
		}
	case "watch_typing":
		if frame.ConversationID != "" && frame.UserID != "" {
			sess.watchTyping(frame.ConversationID, frame.UserID)
		}
	}
}

// searchResult is streamed back for a search frame.
type searchResult struct {
	Query string         `json:"query"`
	Users []userResponse `json:"users"`
	Error string         `json:"error,omitempty"`
}

func (s *Server) runSearch(sess *Session, query string, outbound chan<- envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := searchResult{Query: query, Users: []userResponse{}}
	users, err := sess.Convos.SearchUsers(ctx, query)
	switch {
	case errors.Is(err, convo.ErrShortQuery):
		// Too few characters; an empty result, not a failure.
	case err != nil:
		s.logger.Warn("user search failed", zap.String("query", query), zap.Error(err))
		result.Error = "search failed"
	default:
		for _, u := range users {
			result.Users = append(result.Users, userResponse{
				UserID:      u.ID,
				DisplayName: u.DisplayName,
				AvatarURL:   u.AvatarURL,
			})
		}
	}

	select {
	case outbound <- envelope{
		ID:      uuid.NewString(),
		Kind:    "search.results",
		At:      time.Now(),
		Payload: result,
	}:
	default:
	}
}
