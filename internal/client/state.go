package client

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"duochat/internal/app/chat"
	"duochat/internal/app/message"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/randx"
)

// ErrNoActiveConversation is returned by SendDirect when no conversation is open.
var ErrNoActiveConversation = errors.New("client: no conversation is open")

// Backend is the subset of API that State needs.
type Backend interface {
	ListConversations(ctx context.Context) ([]message.ConversationView, error)
	History(ctx context.Context, conversationID string) ([]message.View, error)
	MarkRead(ctx context.Context, conversationID string) (int64, error)
	SendDirect(ctx context.Context, conversationID, content string) (message.View, error)
}

// Entry is one message in the open conversation. Pending entries carry the local
// TempID and have not been confirmed by the server yet.
type Entry struct {
	message.View
	TempID  string
	Pending bool
}

// State reconciles a user's conversation list and open conversation with the server.
//
// The list is never patched locally: any live message for a conversation other
// than the open one triggers a refetch, so unread markers always come from the
// server's read flags.
type State struct {
	backend Backend
	userID  string
	logger  zerolog.Logger

	mu            sync.Mutex
	conversations []message.ConversationView
	active        string
	messages      []Entry
}

// NewState creates an empty State for userID.
func NewState(backend Backend, userID string) *State {
	return &State{
		backend:       backend,
		userID:        userID,
		logger:        logx.Component("client_state").With().Str("user_id", userID).Logger(),
		conversations: []message.ConversationView{},
		messages:      []Entry{},
	}
}

// Refresh refetches the conversation list. On failure the list is emptied and the
// error returned.
func (s *State) Refresh(ctx context.Context) error {
	conversations, err := s.backend.ListConversations(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to fetch conversations")
		conversations = nil
	}
	if conversations == nil {
		conversations = []message.ConversationView{}
	}

	s.mu.Lock()
	s.conversations = conversations
	s.mu.Unlock()
	return err
}

// Open makes conversationID the active conversation: it fetches the history first
// and then marks the conversation read, refreshing the list afterwards so the
// conversation's unread marker clears.
func (s *State) Open(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	s.active = conversationID
	s.messages = []Entry{}
	s.mu.Unlock()

	history, err := s.backend.History(ctx, conversationID)
	if err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("Failed to fetch history")
		return err
	}

	s.mu.Lock()
	if s.active == conversationID {
		entries := make([]Entry, 0, len(history))
		for _, v := range history {
			entries = append(entries, Entry{View: v})
		}
		// Keep anything that arrived live while the history was in flight.
		for _, e := range s.messages {
			if !containsMessage(entries, e.ID) {
				entries = append(entries, e)
			}
		}
		s.messages = entries
	}
	s.mu.Unlock()

	if _, err := s.backend.MarkRead(ctx, conversationID); err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("Failed to mark conversation read")
		return err
	}

	return s.Refresh(ctx)
}

// Close clears the active conversation.
func (s *State) Close() {
	s.mu.Lock()
	s.active = ""
	s.messages = []Entry{}
	s.mu.Unlock()
}

// Receive applies a live message. Messages for the open conversation are appended;
// any other direct message refetches the list. It reports whether a refetch happened.
func (s *State) Receive(ctx context.Context, v message.View) (refreshed bool, err error) {
	if !v.Target.IsDirect() {
		return false, nil
	}

	s.mu.Lock()
	if v.Target.ConversationID() == s.active {
		if !containsMessage(s.messages, v.ID) {
			s.messages = append(s.messages, Entry{View: v})
		}
		s.mu.Unlock()
		return false, nil
	}
	s.mu.Unlock()

	return true, s.Refresh(ctx)
}

// Apply routes a websocket envelope. Only receive_message changes State.
func (s *State) Apply(ctx context.Context, env chat.Envelope) error {
	if env.Type != chat.EventReceiveMessage {
		return nil
	}
	v, err := DecodeMessage(env)
	if err != nil {
		return err
	}
	_, err = s.Receive(ctx, v)
	return err
}

// Run applies envelopes from events until the channel closes or ctx ends.
func (s *State) Run(ctx context.Context, events <-chan chat.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-events:
			if !ok {
				return
			}
			if err := s.Apply(ctx, env); err != nil {
				s.logger.Warn().Err(err).Str("event", string(env.Type)).Msg("Failed to apply event")
			}
		}
	}
}

// SendDirect sends content to the open conversation. A pending entry is shown
// immediately and is either replaced by the server's message or removed when the
// send fails. Nothing stays pending once SendDirect returns.
func (s *State) SendDirect(ctx context.Context, content string) (message.View, error) {
	tempID, err := randx.TempID()
	if err != nil {
		return message.View{}, err
	}

	s.mu.Lock()
	conversationID := s.active
	if conversationID == "" {
		s.mu.Unlock()
		return message.View{}, ErrNoActiveConversation
	}
	s.messages = append(s.messages, Entry{
		View: message.View{Message: message.Message{
			ID:       tempID,
			SenderID: s.userID,
			Content:  content,
			Target:   message.ConversationTarget(conversationID),
			Read:     true,
		}},
		TempID:  tempID,
		Pending: true,
	})
	s.mu.Unlock()

	confirmed, sendErr := s.backend.SendDirect(ctx, conversationID, content)

	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.messages, func(e Entry) bool { return e.TempID == tempID })
	switch {
	case i < 0:
		// The conversation was switched while the send was in flight.
	case sendErr != nil || containsMessage(s.messages, confirmed.ID):
		s.messages = slices.Delete(s.messages, i, i+1)
	default:
		s.messages[i] = Entry{View: confirmed}
	}

	if sendErr != nil {
		s.logger.Warn().Err(sendErr).Str("conversation_id", conversationID).Msg("Send failed, pending message rolled back")
		return message.View{}, sendErr
	}
	return confirmed, nil
}

// Active returns the open conversation id, or "".
func (s *State) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Conversations returns a copy of the list, most recent first.
func (s *State) Conversations() []message.ConversationView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.conversations)
}

// Messages returns a copy of the open conversation's entries.
func (s *State) Messages() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Unread reports whether conversationID's last message is unread by this user.
// The open conversation is never unread.
func (s *State) Unread(conversationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conversationID == s.active {
		return false
	}
	for _, c := range s.conversations {
		if c.ID == conversationID {
			return c.Unread(s.userID)
		}
	}
	return false
}

// UnreadCount returns the number of conversations with an unread last message.
func (s *State) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, c := range s.conversations {
		if c.ID != s.active && c.Unread(s.userID) {
			n++
		}
	}
	return n
}

func containsMessage(entries []Entry, id string) bool {
	if id == "" {
		return false
	}
	return slices.ContainsFunc(entries, func(e Entry) bool { return !e.Pending && e.ID == id })
}
