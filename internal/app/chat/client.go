package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a message sent by the client.
	maxMessageSize = 8192

	// number of outbound frames queued per client before new ones are dropped.
	sendBufferSize = 256

	// upper bound for the store work triggered by one inbound frame.
	requestTimeout = 10 * time.Second
)

// Client is one websocket connection of an authenticated user. It implements Handle.
type Client struct {
	hub *Hub

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// authenticated user behind the connection.
	user user.User

	// a buffered channel used to queue frames waiting to be written.
	send chan []byte

	// done is closed once by Close and stops WritePump.
	done      chan struct{}
	closeOnce sync.Once

	logger zerolog.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, u user.User) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		user:   u,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logx.Logger().With().Str("component", "client").Str("user_id", u.ID).Logger(),
	}
}

// UserID returns the id of the connected user.
func (c *Client) UserID() string {
	return c.user.ID
}

// Deliver queues frame for writing. It never blocks; a full queue or a closed client drops the frame.
func (c *Client) Deliver(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping frame")
		return false
	}
}

// Close stops the write loop, which sends a close frame and closes the connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ReadPump handles reading frames from the WebSocket connection.
// It handles heartbeats (Pong), frame dispatch, and detaches the client when the connection ends.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInbound(frame)
	}
}

func (c *Client) cleanupOnDisconnect() {
	c.hub.detach(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// processInbound dispatches one client frame.
func (c *Client) processInbound(frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat), "")
		return
	}

	ctx, cancel := context.WithTimeout(c.hub.ctx, requestTimeout)
	defer cancel()

	switch env.Type {
	case EventJoinRoom:
		c.handleJoinRoom(env)
	case EventJoinConversation:
		c.handleJoinConversation(ctx, env)
	case EventSendMessage:
		c.handleSendMessage(ctx, env)
	default:
		c.logger.Warn().Str("msg_type", string(env.Type)).Msg("Client sent unsupported message type")
		c.SendError(errs.NewError(errs.ErrInvalidParams).WithDetail("unsupported event type"), env.TempID)
	}
}

func (c *Client) handleJoinRoom(env Envelope) {
	var p JoinRoomPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || !message.IsValidRoomID(p.RoomID) {
		c.SendError(errs.NewError(errs.ErrInvalidRoomID), env.TempID)
		return
	}

	channel := message.RoomChannel(p.RoomID)
	c.hub.registry.Subscribe(c, channel)
	c.sendEvent(EventJoined, JoinedPayload{Channel: channel}, env.TempID)
}

// handleJoinConversation subscribes only participants to a conversation channel.
func (c *Client) handleJoinConversation(ctx context.Context, env Envelope) {
	var p JoinConversationPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil || p.ConversationID == "" {
		c.SendError(errs.NewError(errs.ErrInvalidID, "conversation"), env.TempID)
		return
	}

	conv, err := c.hub.service.Authorize(ctx, c.user.ID, p.ConversationID)
	if err != nil {
		c.SendError(err, env.TempID)
		return
	}

	channel := message.ConversationChannel(conv.ID)
	c.hub.registry.Subscribe(c, channel)
	c.sendEvent(EventJoined, JoinedPayload{Channel: channel}, env.TempID)
}

// handleSendMessage persists the message, acknowledges the sender, then fans out.
func (c *Client) handleSendMessage(ctx context.Context, env Envelope) {
	var p SendMessagePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat), env.TempID)
		return
	}

	target, err := message.ParseTarget(p.ConversationID, p.RoomID)
	if err != nil {
		c.SendError(err, env.TempID)
		return
	}

	if !c.hub.AllowSend(ctx, c.user.ID) {
		c.SendError(errs.NewError(errs.ErrRateLimitExceeded), env.TempID)
		return
	}

	view, err := c.hub.service.Send(ctx, c.user.ID, target, p.Content)
	if err != nil {
		c.SendError(err, env.TempID)
		return
	}

	c.sendEvent(EventMessageAck, AckPayload{TempID: env.TempID, Message: view}, env.TempID)
	c.hub.fanout.Publish(ctx, view, c)
}

// sendEvent encodes and queues a frame for this client.
func (c *Client) sendEvent(t EventType, payload any, tempID string) bool {
	frame, err := EncodeEnvelope(t, payload, tempID)
	if err != nil {
		c.logger.Error().Err(err).Str("event", string(t)).Msg("Error marshaling frame for client")
		return false
	}
	return c.Deliver(frame)
}

// SendError reports err to the client, echoing tempID so it can roll back an optimistic send.
func (c *Client) SendError(err error, tempID string) {
	if !c.sendEvent(EventError, ErrorPayloadFrom(err), tempID) {
		c.logger.Warn().Msg("Failed to queue error frame")
	}
}

// WritePump handles writing frames from the Client.send channel to the WebSocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.writeFrame(websocket.TextMessage, frame) {
				return
			}

		case <-ticker.C:
			if !c.writeFrame(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			c.drain()
			c.writeFrame(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// drain flushes frames queued before Close so a final ack or error is not lost.
func (c *Client) drain() {
	for {
		select {
		case frame := <-c.send:
			if !c.writeFrame(websocket.TextMessage, frame) {
				return
			}
		default:
			return
		}
	}
}

// writeFrame writes one frame with a deadline. It returns false when the loop should stop.
func (c *Client) writeFrame(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Int("message_type", messageType).Msg("Error writing frame")
		return false
	}

	return true
}
