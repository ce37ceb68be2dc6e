package message

import (
	"context"
	"errors"
	"time"
)

// ErrConversationNotFound is returned by stores when a conversation id is unknown.
var ErrConversationNotFound = errors.New("conversation not found")

// Store is the persistence contract for conversations and messages.
type Store interface {
	// FindOrCreateConversation returns the conversation for the canonical pair (low < high),
	// creating it with an empty log when absent. Concurrent calls for the same pair must
	// converge on one conversation.
	FindOrCreateConversation(ctx context.Context, low, high string) (Conversation, error)

	// GetConversation returns ErrConversationNotFound for unknown ids.
	GetConversation(ctx context.Context, id string) (Conversation, error)

	// ListConversationsForUser returns the user's conversations, most recently updated first,
	// with participants and last message resolved.
	ListConversationsForUser(ctx context.Context, userID string) ([]ConversationView, error)

	// ResolveConversation populates participants and last message for c.
	ResolveConversation(ctx context.Context, c Conversation) (ConversationView, error)

	// CreateMessage validates and persists m outside any conversation transaction. It
	// assigns Seq and, when empty, ID and CreatedAt.
	CreateMessage(ctx context.Context, m Message) (Message, error)

	// ListMessages returns the target's messages in ascending creation order with senders resolved.
	ListMessages(ctx context.Context, target Target) ([]View, error)

	// MarkConversationRead flips read on unread messages in the conversation not sent by
	// readerID and returns how many changed.
	MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error)

	// ResolveMessage populates the sender of m.
	ResolveMessage(ctx context.Context, m Message) (View, error)

	// InTx runs fn in one atomic transaction. Any error returned by fn rolls back every
	// write made through tx.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the set of writes that must commit together when sending a direct message.
type Tx interface {
	// GetConversation reads the conversation and holds it until the transaction ends.
	GetConversation(ctx context.Context, id string) (Conversation, error)

	// CreateMessage validates and inserts m.
	CreateMessage(ctx context.Context, m Message) (Message, error)

	// AppendMessage appends messageID to the conversation log and makes it the last message.
	AppendMessage(ctx context.Context, conversationID, messageID string, at time.Time) error
}
