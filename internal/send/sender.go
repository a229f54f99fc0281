// Package send implements the message send pipeline: validate, upload
// the attachment if any, apply the optimistic local update, then submit
// the three-effect commit as one indivisible unit.
package send

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/blob"
	"github.com/matheus3301/parley/internal/bus"
	"github.com/matheus3301/parley/internal/convo"
	"github.com/matheus3301/parley/internal/docstore"
	"github.com/matheus3301/parley/internal/model"
)

// ErrInvalidMessage rejects a send with neither text nor attachment.
var ErrInvalidMessage = errors.New("message needs text or an attachment")

// CommitError is a rejected or failed commit. The pipeline does not
// retry; the caller decides whether to resend.
type CommitError struct {
	ConversationID string
	Err            error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit to conversation %s failed: %v", e.ConversationID, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// Attachment is an outgoing binary payload, uploaded before the commit
// is assembled.
type Attachment struct {
	Name     string
	MimeType string
	Data     io.Reader
}

// Sender builds and submits message commits for one signed-in user.
type Sender struct {
	docs   docstore.Store
	convos *convo.Store
	blobs  blob.Store
	bus    *bus.Bus
	logger *zap.Logger
	self   model.User
}

// NewSender creates a sender for the given user profile.
func NewSender(docs docstore.Store, convos *convo.Store, blobs blob.Store, b *bus.Bus, logger *zap.Logger, self model.User) *Sender {
	return &Sender{
		docs:   docs,
		convos: convos,
		blobs:  blobs,
		bus:    b,
		logger: logger,
		self:   self,
	}
}

// Send validates, uploads, optimistically applies and commits one
// message. The returned message carries the client clock; the committed
// copy gets the store's timestamp. A failed upload aborts before any
// store mutation; a failed commit rolls the optimistic entry back and
// is reported, never retried.
func (s *Sender) Send(ctx context.Context, conversationID, text string, att *Attachment) (model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" && att == nil {
		return model.Message{}, ErrInvalidMessage
	}

	conv, err := s.docs.GetConversation(ctx, conversationID)
	if err != nil {
		return model.Message{}, fmt.Errorf("load conversation: %w", err)
	}
	counterpart := conv.Counterpart(s.self.ID)

	msg := model.Message{
		ID:              ulid.Make().String(),
		ConversationID:  conversationID,
		SenderID:        s.self.ID,
		SenderName:      s.self.DisplayName,
		SenderAvatarURL: s.self.AvatarURL,
		Text:            text,
		CreatedAt:       time.Now(),
	}

	if att != nil {
		url, err := s.blobs.Put(ctx, att.Name, att.MimeType, att.Data)
		if err != nil {
			return model.Message{}, fmt.Errorf("upload attachment %q: %w", att.Name, err)
		}
		msg.Attachment = &model.Attachment{
			URL:      url,
			Name:     att.Name,
			MimeType: att.MimeType,
		}
	}

	// Local view first, so the UI reflects the send immediately. The
	// next snapshot supersedes this entry whether the commit lands or not.
	s.convos.ApplyOptimistic(msg)

	// The absolute unread value is fixed here; concurrent sends may lose
	// an increment, which read state tolerates.
	unit := docstore.Unit{
		Message: msg,
		LastMessage: model.LastMessage{
			Text:     msg.Preview(),
			SenderID: s.self.ID,
		},
		UnreadUserID: counterpart,
		UnreadCount:  conv.UnreadCount[counterpart] + 1,
	}
	// Zero timestamps tell the store to assign its own clock.
	unit.Message.CreatedAt = time.Time{}

	if err := s.docs.Commit(ctx, unit); err != nil {
		cerr := &CommitError{ConversationID: conversationID, Err: err}
		// Nothing was mutated, so no snapshot will arrive to supersede
		// the optimistic entry; fold the server state back in explicitly.
		if rerr := s.convos.Refresh(ctx); rerr != nil {
			s.logger.Warn("revert optimistic entry failed", zap.Error(rerr))
		}
		s.logger.Error("message commit failed",
			zap.String("conversation_id", conversationID),
			zap.String("msg_id", msg.ID),
			zap.Error(err))
		s.bus.Publish(bus.Event{
			Kind:      bus.KindMessageFailed,
			Timestamp: time.Now(),
			Payload:   msg.ID,
		})
		return model.Message{}, cerr
	}

	s.bus.Publish(bus.Event{
		Kind:      bus.KindMessageCommitted,
		Timestamp: time.Now(),
		Payload:   msg.ID,
	})
	return msg, nil
}
