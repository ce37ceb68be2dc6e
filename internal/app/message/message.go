/*
Package message implements conversations and messages: the durable half of the chat core.

A Conversation joins exactly two users and keeps an ordered log of its message ids plus a
pointer to the newest one. A Message belongs to exactly one Target, a conversation or a
room. Room messages are always read; direct messages start unread and are flipped in bulk
by MarkConversationRead.

Persistence is behind the Store and Tx interfaces. Service layers the validation,
participant checks and the transactional send on top of any Store.
*/
package message

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"duochat/internal/app/user"
	"duochat/internal/pkg/errs"
)

// MaxContentLength is the maximum message length in characters.
const MaxContentLength = 5000

// Message is a single chat message addressed to one Target.
type Message struct {
	ID        string
	Seq       int64
	SenderID  string
	Content   string
	Target    Target
	Read      bool
	CreatedAt time.Time
}

// NewDirectMessage builds an unread message for a conversation.
func NewDirectMessage(senderID, conversationID, content string) Message {
	return Message{
		SenderID: senderID,
		Content:  content,
		Target:   ConversationTarget(conversationID),
		Read:     false,
	}
}

// NewRoomMessage builds a room message. Rooms have no recipients to track, so it is born read.
func NewRoomMessage(senderID, roomID, content string) Message {
	return Message{
		SenderID: senderID,
		Content:  content,
		Target:   RoomTarget(roomID),
		Read:     true,
	}
}

// Validate checks the invariants every store enforces on create.
func (m Message) Validate() error {
	if m.SenderID == "" {
		return errs.NewError(errs.ErrInvalidParams).WithDetail("sender is required")
	}
	if err := ValidateContent(m.Content); err != nil {
		return err
	}
	return m.Target.Validate()
}

// ValidateContent rejects blank and oversized message bodies.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errs.NewError(errs.ErrEmptyContent)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return errs.NewError(errs.ErrMessageContentTooLong)
	}
	return nil
}

// View is a message with its sender resolved, as returned by history and send.
type View struct {
	Message
	Sender user.Summary
}

type viewJSON struct {
	ID             string       `json:"_id"`
	Sender         user.Summary `json:"sender"`
	Content        string       `json:"content"`
	ConversationID string       `json:"conversationId,omitempty"`
	RoomID         string       `json:"roomId,omitempty"`
	Read           bool         `json:"read"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// MarshalJSON writes exactly one of conversationId or roomId.
func (v View) MarshalJSON() ([]byte, error) {
	return json.Marshal(viewJSON{
		ID:             v.ID,
		Sender:         v.Sender,
		Content:        v.Content,
		ConversationID: v.Target.ConversationID(),
		RoomID:         v.Target.RoomID(),
		Read:           v.Read,
		CreatedAt:      v.CreatedAt,
	})
}

// UnmarshalJSON restores a View produced by MarshalJSON, rebuilding its Target.
func (v *View) UnmarshalJSON(data []byte) error {
	var raw viewJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	target, err := ParseTarget(raw.ConversationID, raw.RoomID)
	if err != nil {
		return err
	}

	*v = View{
		Message: Message{
			ID:        raw.ID,
			SenderID:  raw.Sender.ID,
			Content:   raw.Content,
			Target:    target,
			Read:      raw.Read,
			CreatedAt: raw.CreatedAt,
		},
		Sender: raw.Sender,
	}
	return nil
}

// Conversation is a durable two-party channel.
type Conversation struct {
	ID string

	// Participants holds the two user ids in canonical (ascending) order.
	Participants [2]string

	// MessageIDs is the append log of message ids in chronological order.
	MessageIDs []string

	// LastMessageID is "" until the first message is appended.
	LastMessageID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasParticipant reports whether userID is one of the two members.
func (c Conversation) HasParticipant(userID string) bool {
	return userID != "" && (c.Participants[0] == userID || c.Participants[1] == userID)
}

// OtherParticipant returns the member that is not userID.
func (c Conversation) OtherParticipant(userID string) (string, bool) {
	switch userID {
	case c.Participants[0]:
		return c.Participants[1], true
	case c.Participants[1]:
		return c.Participants[0], true
	default:
		return "", false
	}
}

// Clone returns a copy that does not share the message log.
func (c Conversation) Clone() Conversation {
	c.MessageIDs = slices.Clone(c.MessageIDs)
	return c
}

// ConversationView is a conversation with participants and last message resolved.
type ConversationView struct {
	Conversation
	Users       []user.User
	LastMessage *View
}

type conversationJSON struct {
	ID           string      `json:"_id"`
	Participants []user.User `json:"participants"`
	Messages     []string    `json:"messages"`
	LastMessage  *View       `json:"lastMessage"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// MarshalJSON renders the populated conversation shape used by the REST API.
func (cv ConversationView) MarshalJSON() ([]byte, error) {
	messages := cv.MessageIDs
	if messages == nil {
		messages = []string{}
	}
	users := cv.Users
	if users == nil {
		users = []user.User{}
	}
	return json.Marshal(conversationJSON{
		ID:           cv.ID,
		Participants: users,
		Messages:     messages,
		LastMessage:  cv.LastMessage,
		CreatedAt:    cv.CreatedAt,
		UpdatedAt:    cv.UpdatedAt,
	})
}

// UnmarshalJSON restores a ConversationView from its REST shape.
func (cv *ConversationView) UnmarshalJSON(data []byte) error {
	var raw conversationJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := ConversationView{
		Conversation: Conversation{
			ID:         raw.ID,
			MessageIDs: raw.Messages,
			CreatedAt:  raw.CreatedAt,
			UpdatedAt:  raw.UpdatedAt,
		},
		Users:       raw.Participants,
		LastMessage: raw.LastMessage,
	}
	if len(raw.Participants) == 2 {
		low, high, err := CanonicalPair(raw.Participants[0].ID, raw.Participants[1].ID)
		if err == nil {
			out.Participants = [2]string{low, high}
		}
	}
	if raw.LastMessage != nil {
		out.LastMessageID = raw.LastMessage.ID
	}

	*cv = out
	return nil
}

// Unread reports whether the conversation's newest message is unread by viewerID.
func (cv ConversationView) Unread(viewerID string) bool {
	return cv.LastMessage != nil && !cv.LastMessage.Read && cv.LastMessage.SenderID != viewerID
}

// CanonicalPair orders two distinct user ids so that a pair has one representation
// regardless of who initiates.
func CanonicalPair(a, b string) (low, high string, err error) {
	if a == b {
		return "", "", errs.NewError(errs.ErrSelfConversation)
	}
	if a < b {
		return a, b, nil
	}
	return b, a, nil
}
