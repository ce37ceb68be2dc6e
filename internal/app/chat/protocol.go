package chat

import (
	"encoding/json"

	"duochat/internal/app/message"
	"duochat/internal/pkg/errs"
)

// EventType names a websocket event.
type EventType string

const (
	// Client to server.
	EventJoinRoom         EventType = "join_room"
	EventJoinConversation EventType = "join_conversation"
	EventSendMessage      EventType = "send_message"

	// Server to client.
	EventReceiveMessage  EventType = "receive_message"
	EventMessageAck      EventType = "message_ack"
	EventJoined          EventType = "joined"
	EventError           EventType = "error"
	EventSessionReplaced EventType = "session_replaced"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	TempID  string          `json:"tempId,omitempty"`
}

// JoinRoomPayload is the payload of join_room.
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

// JoinConversationPayload is the payload of join_conversation.
type JoinConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

// SendMessagePayload carries exactly one of ConversationID or RoomID.
type SendMessagePayload struct {
	ConversationID string `json:"conversationId,omitempty"`
	RoomID         string `json:"roomId,omitempty"`
	Content        string `json:"content"`
}

// JoinedPayload confirms a subscription.
type JoinedPayload struct {
	Channel string `json:"channel"`
}

// AckPayload answers a send_message with the persisted message.
type AckPayload struct {
	TempID  string       `json:"tempId"`
	Message message.View `json:"message"`
}

// ErrorPayload reports a failed client request.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error lets clients treat a decoded ErrorPayload as an error value.
func (e ErrorPayload) Error() string { return e.Message }

// SessionReplacedPayload tells a connection it is no longer the user's session of record.
type SessionReplacedPayload struct {
	Reason string `json:"reason"`
}

// EncodeEnvelope marshals payload into an Envelope frame.
func EncodeEnvelope(t EventType, payload any, tempID string) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Type: t, Payload: raw, TempID: tempID})
}

// ErrorPayloadFrom converts err into the wire error shape. Errors without a code are
// logged and reported as ErrUnknown so internal details stay on the server.
func ErrorPayloadFrom(err error) ErrorPayload {
	customErr := errs.From(err)
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}
	return ErrorPayload{Code: customErr.Code, Message: customErr.Message}
}
