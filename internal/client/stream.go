package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"duochat/internal/app/chat"
	"duochat/internal/app/message"
)

const streamWriteWait = 10 * time.Second

// ErrStreamClosed is returned by writes after the stream has ended.
var ErrStreamClosed = errors.New("client: stream closed")

// Stream is a live websocket session. Incoming envelopes are delivered on Events
// until the connection ends; Err then reports why.
type Stream struct {
	conn   *websocket.Conn
	events chan chat.Envelope

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
	err       error
}

// Dial opens a websocket session at baseURL's /ws endpoint, authenticating with token.
func Dial(ctx context.Context, baseURL, token string) (*Stream, error) {
	wsURL, err := websocketURL(baseURL)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	conn, res, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("dial %s: HTTP %d: %w", wsURL, res.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", wsURL, err)
	}

	s := &Stream{
		conn:   conn,
		events: make(chan chat.Envelope, 64),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func websocketURL(baseURL string) (string, error) {
	base := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws", nil
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws", nil
	case strings.HasPrefix(base, "ws://"), strings.HasPrefix(base, "wss://"):
		return base + "/ws", nil
	}
	return "", fmt.Errorf("unsupported base URL %q", baseURL)
}

// Events returns the channel of incoming envelopes. It is closed when the stream ends.
func (s *Stream) Events() <-chan chat.Envelope { return s.events }

// Err reports why the stream ended. It is nil while the stream is open and after a clean Close.
func (s *Stream) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

func (s *Stream) readLoop() {
	defer close(s.events)

	for {
		var env chat.Envelope
		if err := s.conn.ReadJSON(&env); err != nil {
			s.finish(err)
			return
		}

		select {
		case s.events <- env:
		case <-s.done:
			return
		}
	}
}

func (s *Stream) finish(err error) {
	s.closeOnce.Do(func() {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			err = nil
		}
		s.err = err
		close(s.done)
		_ = s.conn.Close()
	})
}

// JoinRoom subscribes this session to a room's broadcasts.
func (s *Stream) JoinRoom(roomID string) error {
	return s.send(chat.EventJoinRoom, chat.JoinRoomPayload{RoomID: roomID}, "")
}

// JoinConversation subscribes this session to a conversation's broadcasts.
func (s *Stream) JoinConversation(conversationID string) error {
	return s.send(chat.EventJoinConversation, chat.JoinConversationPayload{ConversationID: conversationID}, "")
}

// SendMessage asks the server to persist and deliver content. The reply is a
// message_ack or error envelope carrying tempID.
func (s *Stream) SendMessage(target message.Target, content, tempID string) error {
	return s.send(chat.EventSendMessage, chat.SendMessagePayload{
		ConversationID: target.ConversationID(),
		RoomID:         target.RoomID(),
		Content:        content,
	}, tempID)
}

func (s *Stream) send(t chat.EventType, payload any, tempID string) error {
	frame, err := chat.EncodeEnvelope(t, payload, tempID)
	if err != nil {
		return err
	}

	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, frame)
}

// Close sends a close frame and releases the connection.
func (s *Stream) Close() error {
	s.writeMu.Lock()
	_ = s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteWait),
	)
	s.writeMu.Unlock()

	s.finish(nil)
	return nil
}

// DecodeMessage extracts the message carried by a receive_message envelope.
func DecodeMessage(env chat.Envelope) (message.View, error) {
	if env.Type != chat.EventReceiveMessage {
		return message.View{}, fmt.Errorf("unexpected event %q", env.Type)
	}
	var v message.View
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return message.View{}, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return v, nil
}

// DecodeAck extracts a message_ack payload.
func DecodeAck(env chat.Envelope) (chat.AckPayload, error) {
	var ack chat.AckPayload
	if env.Type != chat.EventMessageAck {
		return ack, fmt.Errorf("unexpected event %q", env.Type)
	}
	if err := json.Unmarshal(env.Payload, &ack); err != nil {
		return ack, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return ack, nil
}

// DecodeError extracts an error payload as an error value.
func DecodeError(env chat.Envelope) error {
	var p chat.ErrorPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return p
}
