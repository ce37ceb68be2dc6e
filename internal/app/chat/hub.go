package chat

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/metrics"
)

// MessageService is the part of message.Service the live transport uses.
type MessageService interface {
	ParticipantResolver
	Authorize(ctx context.Context, userID, conversationID string) (message.Conversation, error)
	Send(ctx context.Context, senderID string, target message.Target, content string) (message.View, error)
}

// Limiter decides whether a user may send another message.
type Limiter interface {
	Allow(ctx context.Context, identifier string) (bool, error)
}

// Hub owns the Registry and Fanout for the lifetime of the server and tracks every
// live websocket client so they can be closed on shutdown.
type Hub struct {
	registry *Registry
	fanout   *Fanout
	service  MessageService
	limiter  Limiter

	// ctx bounds the work started from client frames. Shutdown cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	// mu protects clients.
	mu      sync.Mutex
	clients map[*Client]struct{}

	// wg counts running Serve calls.
	wg sync.WaitGroup

	logger zerolog.Logger
}

// NewHub constructs a Hub. limiter may be nil to disable send limiting.
func NewHub(service MessageService, limiter Limiter) *Hub {
	registry := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		registry: registry,
		fanout:   NewFanout(registry, service),
		service:  service,
		limiter:  limiter,
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(map[*Client]struct{}),
		logger:   logx.Component("hub"),
	}
}

// Registry exposes the session table.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Publish fans msg out using the sender's session of record as the origin, so a sender
// never receives their own message back through a channel they joined.
func (h *Hub) Publish(ctx context.Context, msg message.View) Delivery {
	origin, _ := h.registry.Lookup(msg.SenderID)
	return h.fanout.Publish(ctx, msg, origin)
}

// AllowSend applies the per-user send limit. Limiter errors fail open.
func (h *Hub) AllowSend(ctx context.Context, userID string) bool {
	if h.limiter == nil {
		return true
	}
	allowed, err := h.limiter.Allow(ctx, userID)
	if err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Msg("Send limiter unavailable, allowing")
		return true
	}
	return allowed
}

// Serve runs a websocket connection for u until it closes.
func (h *Hub) Serve(conn *websocket.Conn, u user.User) {
	client := newClient(h, conn, u)
	if !h.attach(client) {
		_ = conn.Close()
		return
	}
	defer h.wg.Done()

	go client.WritePump()
	client.ReadPump()
}

// attach registers the client as its user's session of record. A replaced session is
// told so but left open; it keeps its subscriptions until it disconnects.
// On success the caller owns one count of h.wg.
func (h *Hub) attach(c *Client) bool {
	h.mu.Lock()
	if h.ctx.Err() != nil {
		h.mu.Unlock()
		return false
	}
	h.wg.Add(1)
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	metrics.ConnectionsActive.Inc()

	previous, replaced := h.registry.Register(c)
	if replaced {
		metrics.SessionsReplaced.Inc()
		h.logger.Info().Str("user_id", c.UserID()).Msg("Session of record replaced by new connection")

		frame, err := EncodeEnvelope(EventSessionReplaced, SessionReplacedPayload{
			Reason: "Session replaced by a newer connection.",
		}, "")
		if err == nil {
			previous.Deliver(frame)
		}
	}

	c.logger.Info().Int("sessions", h.registry.Sessions()).Msg("Client connected")
	return true
}

// detach removes every trace of c from the registry.
func (h *Hub) detach(c *Client) {
	removed := h.registry.Disconnect(c)

	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		metrics.ConnectionsActive.Dec()
	}
	h.mu.Unlock()

	c.Close()
	c.logger.Info().Bool("was_session_of_record", removed).Msg("Client disconnected")
}

// Shutdown closes every client and waits for their Serve calls to return or ctx to end.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.logger.Info().Msg("Shutting down hub...")

	h.mu.Lock()
	h.cancel()
	for c := range h.clients {
		c.Close()
	}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info().Msg("Hub shutdown complete.")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
