package gateway

import (
	"bytes"
	"encoding/base64"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/matheus3301/parley/internal/model"
	"github.com/matheus3301/parley/internal/send"
	"github.com/matheus3301/parley/internal/status"
)

type signInRequest struct {
	Token string `json:"token"`
}

type userResponse struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email,omitempty"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// handleSignIn POST /api/session/signin
func (s *Server) handleSignIn(c *fiber.Ctx) error {
	var req signInRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body")
	}
	if req.Token == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing token")
	}

	sess, err := s.signIn(c.Context(), req.Token)
	if err != nil {
		return err
	}
	return c.JSON(userResponse{
		UserID:      sess.User.ID,
		DisplayName: sess.User.DisplayName,
		Email:       sess.User.Email,
		AvatarURL:   sess.User.AvatarURL,
	})
}

// handleSignOut POST /api/session/signout
func (s *Server) handleSignOut(c *fiber.Ctx) error {
	s.teardownSession()
	if s.machine.Current() == status.Ready || s.machine.Current() == status.Degraded {
		_ = s.machine.Transition(status.AuthRequired)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleStatus GET /api/status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"state": s.machine.Current()})
}

type lastMessageResponse struct {
	Text      string    `json:"text"`
	SenderID  string    `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

type conversationResponse struct {
	ID          string              `json:"id"`
	DisplayName string              `json:"displayName"`
	Counterpart string              `json:"counterpartId"`
	Unread      int                 `json:"unread"`
	LastMessage lastMessageResponse `json:"lastMessage"`
	Online      bool                `json:"online"`
}

// handleListConversations GET /api/conversations
func (s *Server) handleListConversations(c *fiber.Ctx) error {
	sess := s.currentSession()
	out := make([]conversationResponse, 0)
	for _, conv := range sess.Convos.List() {
		counterpart := conv.Counterpart(sess.User.ID)
		out = append(out, conversationResponse{
			ID:          conv.ID,
			DisplayName: sess.Convos.DisplayName(conv.ID),
			Counterpart: counterpart,
			Unread:      conv.UnreadCount[sess.User.ID],
			LastMessage: lastMessageResponse{
				Text:      conv.LastMessage.Text,
				SenderID:  conv.LastMessage.SenderID,
				CreatedAt: conv.LastMessage.CreatedAt,
			},
			Online: sess.Tracker.Online(counterpart),
		})
	}
	return c.JSON(out)
}

type findOrCreateRequest struct {
	CounterpartID string `json:"counterpartId"`
}

// handleFindOrCreate POST /api/conversations
func (s *Server) handleFindOrCreate(c *fiber.Ctx) error {
	var req findOrCreateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body")
	}
	if req.CounterpartID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing counterpartId")
	}

	sess := s.currentSession()
	id, err := sess.Convos.FindOrCreateConversation(c.Context(), req.CounterpartID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"conversationId": id})
}

type attachmentResponse struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

type messageResponse struct {
	ID         string              `json:"id"`
	SenderID   string              `json:"senderId"`
	SenderName string              `json:"senderName"`
	Text       string              `json:"text,omitempty"`
	Attachment *attachmentResponse `json:"attachment,omitempty"`
	CreatedAt  time.Time           `json:"createdAt"`
}

func toMessageResponse(m model.Message) messageResponse {
	out := messageResponse{
		ID:         m.ID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Text:       m.Text,
		CreatedAt:  m.CreatedAt,
	}
	if m.Attachment != nil {
		out.Attachment = &attachmentResponse{
			URL:      m.Attachment.URL,
			Name:     m.Attachment.Name,
			MimeType: m.Attachment.MimeType,
		}
	}
	return out
}

// handleListMessages GET /api/conversations/:id/messages?limit=
func (s *Server) handleListMessages(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	msgs, err := s.docs.ListMessages(c.Context(), c.Params("id"), limit)
	if err != nil {
		return err
	}
	out := make([]messageResponse, len(msgs))
	for i, m := range msgs {
		out[i] = toMessageResponse(m)
	}
	return c.JSON(out)
}

type sendRequest struct {
	Text       string `json:"text"`
	Attachment *struct {
		Name     string `json:"name"`
		MimeType string `json:"mimeType"`
		Data     string `json:"data"` // base64
	} `json:"attachment"`
}

// handleSendMessage POST /api/conversations/:id/messages
func (s *Server) handleSendMessage(c *fiber.Ctx) error {
	var req sendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body")
	}

	var att *send.Attachment
	if req.Attachment != nil {
		data, err := base64.StdEncoding.DecodeString(req.Attachment.Data)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "attachment data is not base64")
		}
		att = &send.Attachment{
			Name:     req.Attachment.Name,
			MimeType: req.Attachment.MimeType,
			Data:     bytes.NewReader(data),
		}
	}

	sess := s.currentSession()
	msg, err := sess.Sender.Send(c.Context(), c.Params("id"), req.Text, att)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toMessageResponse(msg))
}

// handleMarkRead POST /api/conversations/:id/read
func (s *Server) handleMarkRead(c *fiber.Ctx) error {
	sess := s.currentSession()
	if err := sess.Convos.MarkRead(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
