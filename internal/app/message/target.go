package message

import (
	"strings"
	"unicode"

	"duochat/internal/pkg/errs"
)

// Kind distinguishes direct (conversation) messages from room messages.
type Kind uint8

const (
	kindInvalid Kind = iota
	// KindDirect marks a message addressed to a two-party conversation.
	KindDirect
	// KindRoom marks a message addressed to a participant-less room.
	KindRoom
)

// String returns the label used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindRoom:
		return "room"
	default:
		return "invalid"
	}
}

// Channel prefixes for the live-transport broadcast groups.
const (
	ConversationChannelPrefix = "conversation:"
	RoomChannelPrefix         = "room:"
)

// MaxRoomIDLength bounds room identifiers.
const MaxRoomIDLength = 64

// Target names where a message belongs: exactly one conversation or exactly one room.
// The zero Target is invalid; values are built with ConversationTarget or RoomTarget,
// so a Target can never name both.
type Target struct {
	kind Kind
	id   string
}

// ConversationTarget addresses the conversation with the given id.
func ConversationTarget(conversationID string) Target {
	return Target{kind: KindDirect, id: conversationID}
}

// RoomTarget addresses the room with the given id.
func RoomTarget(roomID string) Target {
	return Target{kind: KindRoom, id: roomID}
}

// ParseTarget builds a Target from the two optional wire fields. Exactly one must be set.
func ParseTarget(conversationID, roomID string) (Target, error) {
	hasConversation := conversationID != ""
	hasRoom := roomID != ""

	switch {
	case hasConversation && !hasRoom:
		return ConversationTarget(conversationID), nil
	case hasRoom && !hasConversation:
		if !IsValidRoomID(roomID) {
			return Target{}, errs.NewError(errs.ErrInvalidRoomID)
		}
		return RoomTarget(roomID), nil
	default:
		return Target{}, errs.NewError(errs.ErrInvalidTarget)
	}
}

// Kind reports whether the target is a conversation or a room.
func (t Target) Kind() Kind { return t.kind }

// ID returns the conversation or room id.
func (t Target) ID() string { return t.id }

// IsDirect reports whether the target is a conversation.
func (t Target) IsDirect() bool { return t.kind == KindDirect }

// ConversationID returns the conversation id, or "" for room targets.
func (t Target) ConversationID() string {
	if t.kind == KindDirect {
		return t.id
	}
	return ""
}

// RoomID returns the room id, or "" for conversation targets.
func (t Target) RoomID() string {
	if t.kind == KindRoom {
		return t.id
	}
	return ""
}

// Channel returns the logical broadcast channel for the target.
func (t Target) Channel() string {
	switch t.kind {
	case KindDirect:
		return ConversationChannel(t.id)
	case KindRoom:
		return RoomChannel(t.id)
	default:
		return ""
	}
}

// Validate rejects the zero Target and targets with an empty id.
func (t Target) Validate() error {
	if t.kind == kindInvalid || t.id == "" {
		return errs.NewError(errs.ErrInvalidTarget)
	}
	return nil
}

// ConversationChannel returns the logical channel for a conversation.
func ConversationChannel(conversationID string) string {
	return ConversationChannelPrefix + conversationID
}

// RoomChannel returns the logical channel for a room.
func RoomChannel(roomID string) string {
	return RoomChannelPrefix + roomID
}

// IsValidRoomID reports whether id is 1..MaxRoomIDLength characters without whitespace.
func IsValidRoomID(id string) bool {
	if id == "" || len(id) > MaxRoomIDLength {
		return false
	}
	return strings.IndexFunc(id, unicode.IsSpace) < 0
}
