// Package gateway exposes the daemon's local HTTP/WebSocket API: session
// sign-in, conversation queries, message sends and a realtime event
// stream for a client to render from.
package gateway

import (
	"errors"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/blob"
	"github.com/matheus3301/parley/internal/bus"
	"github.com/matheus3301/parley/internal/config"
	"github.com/matheus3301/parley/internal/convo"
	"github.com/matheus3301/parley/internal/docstore"
	"github.com/matheus3301/parley/internal/identity"
	"github.com/matheus3301/parley/internal/realtime"
	"github.com/matheus3301/parley/internal/send"
	"github.com/matheus3301/parley/internal/status"
)

// Server is the daemon's API surface. It owns at most one signed-in
// session at a time.
type Server struct {
	app     *fiber.App
	cfg     *config.Config
	logger  *zap.Logger
	bus     *bus.Bus
	docs    docstore.Store
	rt      realtime.Store
	auth    identity.Provider
	blobs   blob.Store
	machine *status.Machine

	mu      sync.RWMutex
	session *Session
}

// NewServer wires the API over the given stores and auth provider.
func NewServer(cfg *config.Config, logger *zap.Logger, b *bus.Bus, docs docstore.Store, rt realtime.Store, auth identity.Provider, blobs blob.Store, machine *status.Machine) *Server {
	s := &Server{
		cfg:     cfg,
		logger:  logger,
		bus:     b,
		docs:    docs,
		rt:      rt,
		auth:    auth,
		blobs:   blobs,
		machine: machine,
	}
	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.app.Group("/api")

	api.Post("/session/signin", s.handleSignIn)
	api.Post("/session/signout", s.handleSignOut)
	api.Get("/status", s.handleStatus)

	api.Get("/conversations", s.requireSession(s.handleListConversations))
	api.Post("/conversations", s.requireSession(s.handleFindOrCreate))
	api.Get("/conversations/:id/messages", s.requireSession(s.handleListMessages))
	api.Post("/conversations/:id/messages", s.requireSession(s.handleSendMessage))
	api.Post("/conversations/:id/read", s.requireSession(s.handleMarkRead))

	api.Get("/ws", s.requireSession(func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return websocket.New(s.handleWS)(c)
	}))
}

// Listen serves the API on the configured address, blocking until
// Shutdown.
func (s *Server) Listen() error {
	return s.app.Listen(s.cfg.Addr())
}

// Shutdown stops the listener and tears down the active session.
func (s *Server) Shutdown() error {
	s.teardownSession()
	return s.app.Shutdown()
}

// App exposes the fiber app for in-process request tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// requireSession rejects requests arriving before a sign-in.
func (s *Server) requireSession(h fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s.mu.RLock()
		active := s.session != nil
		s.mu.RUnlock()
		if !active {
			return fiber.NewError(fiber.StatusUnauthorized, "no active session")
		}
		return h(c)
	}
}

// currentSession returns the active session, nil if signed out.
func (s *Server) currentSession() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	var authErr *identity.AuthError
	var commitErr *send.CommitError
	var searchErr *convo.SearchError
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.As(err, &authErr):
		code = fiber.StatusUnauthorized
	case errors.Is(err, send.ErrInvalidMessage), errors.Is(err, convo.ErrShortQuery):
		code = fiber.StatusBadRequest
	case errors.As(err, &commitErr), errors.As(err, &searchErr):
		code = fiber.StatusBadGateway
	case errors.Is(err, docstore.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, realtime.ErrDisconnected):
		code = fiber.StatusServiceUnavailable
	}

	if code >= 500 {
		s.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
