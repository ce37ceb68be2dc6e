package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duochat/internal/app/chat"
	"duochat/internal/app/message"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls []string

	conversations []message.ConversationView
	history       map[string][]message.View
	listErr       error
	sendErr       error
	sent          message.View

	// onSend runs while SendDirect is in flight.
	onSend func()
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) ListConversations(context.Context) ([]message.ConversationView, error) {
	f.record("list")
	return f.conversations, f.listErr
}

func (f *fakeBackend) History(_ context.Context, id string) ([]message.View, error) {
	f.record("history:" + id)
	return f.history[id], nil
}

func (f *fakeBackend) MarkRead(_ context.Context, id string) (int64, error) {
	f.record("read:" + id)
	return 0, nil
}

func (f *fakeBackend) SendDirect(_ context.Context, id, content string) (message.View, error) {
	f.record("send:" + id)
	if f.onSend != nil {
		f.onSend()
	}
	if f.sendErr != nil {
		return message.View{}, f.sendErr
	}
	return f.sent, nil
}

func directView(id, conversationID, senderID, content string, read bool) message.View {
	return message.View{Message: message.Message{
		ID:       id,
		SenderID: senderID,
		Content:  content,
		Target:   message.ConversationTarget(conversationID),
		Read:     read,
	}}
}

func TestOpenFetchesHistoryBeforeMarkingRead(t *testing.T) {
	backend := &fakeBackend{history: map[string][]message.View{
		"c1": {directView("m1", "c1", "bob", "hi", false)},
	}}
	s := NewState(backend, "alice")

	require.NoError(t, s.Open(context.Background(), "c1"))

	assert.Equal(t, []string{"history:c1", "read:c1", "list"}, backend.Calls())
	assert.Equal(t, "c1", s.Active())
	require.Len(t, s.Messages(), 1)
	assert.Equal(t, "m1", s.Messages()[0].ID)

	s.Close()
	assert.Empty(t, s.Active())
	assert.Empty(t, s.Messages())
}

func TestReceiveRoutesByConversation(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	s := NewState(backend, "alice")
	require.NoError(t, s.Open(ctx, "c1"))
	before := len(backend.Calls())

	refreshed, err := s.Receive(ctx, directView("m1", "c1", "bob", "hi", false))
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Len(t, s.Messages(), 1)

	// Duplicates from the channel and direct paths collapse.
	_, err = s.Receive(ctx, directView("m1", "c1", "bob", "hi", false))
	require.NoError(t, err)
	assert.Len(t, s.Messages(), 1)
	assert.Len(t, backend.Calls(), before, "open conversation messages do not refetch")

	refreshed, err = s.Receive(ctx, directView("m2", "c2", "carol", "yo", false))
	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, "list", backend.Calls()[len(backend.Calls())-1])
	assert.Len(t, s.Messages(), 1)

	room := message.View{Message: message.Message{ID: "r1", SenderID: "bob", Content: "x", Target: message.RoomTarget("lobby"), Read: true}}
	refreshed, err = s.Receive(ctx, room)
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.Len(t, s.Messages(), 1)
}

func TestUnreadIgnoresOpenConversation(t *testing.T) {
	ctx := context.Background()
	last := directView("m1", "c1", "bob", "hi", false)
	other := directView("m2", "c2", "carol", "yo", false)
	own := directView("m3", "c3", "alice", "sent", false)

	backend := &fakeBackend{conversations: []message.ConversationView{
		{Conversation: message.Conversation{ID: "c1"}, LastMessage: &last},
		{Conversation: message.Conversation{ID: "c2"}, LastMessage: &other},
		{Conversation: message.Conversation{ID: "c3"}, LastMessage: &own},
	}}
	s := NewState(backend, "alice")
	require.NoError(t, s.Refresh(ctx))

	assert.True(t, s.Unread("c1"))
	assert.False(t, s.Unread("c3"), "own messages are never unread")
	assert.Equal(t, 2, s.UnreadCount())

	require.NoError(t, s.Open(ctx, "c1"))
	assert.False(t, s.Unread("c1"))
	assert.Equal(t, 1, s.UnreadCount())
	assert.False(t, s.Unread("missing"))
}

func TestRefreshFailureEmptiesList(t *testing.T) {
	ctx := context.Background()
	v := directView("m1", "c1", "bob", "hi", false)
	backend := &fakeBackend{conversations: []message.ConversationView{{Conversation: message.Conversation{ID: "c1"}, LastMessage: &v}}}
	s := NewState(backend, "alice")
	require.NoError(t, s.Refresh(ctx))
	require.Len(t, s.Conversations(), 1)

	backend.listErr = errors.New("offline")
	assert.Error(t, s.Refresh(ctx))
	assert.NotNil(t, s.Conversations())
	assert.Empty(t, s.Conversations())
}

func TestSendDirectReplacesPendingEntry(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{sent: directView("m9", "c1", "alice", "hello", false)}
	s := NewState(backend, "alice")
	require.NoError(t, s.Open(ctx, "c1"))

	backend.onSend = func() {
		entries := s.Messages()
		require.Len(t, entries, 1)
		assert.True(t, entries[0].Pending)
		assert.Equal(t, "hello", entries[0].Content)
		assert.NotEmpty(t, entries[0].TempID)
	}

	v, err := s.SendDirect(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "m9", v.ID)

	entries := s.Messages()
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Pending)
	assert.Equal(t, "m9", entries[0].ID)
}

func TestSendDirectRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{sendErr: errors.New("boom")}
	s := NewState(backend, "alice")
	require.NoError(t, s.Open(ctx, "c1"))

	_, err := s.SendDirect(ctx, "hello")
	require.Error(t, err)
	assert.Empty(t, s.Messages())
}

func TestSendDirectDropsPendingWhenEchoArrivedFirst(t *testing.T) {
	ctx := context.Background()
	confirmed := directView("m9", "c1", "alice", "hello", false)
	backend := &fakeBackend{sent: confirmed}
	s := NewState(backend, "alice")
	require.NoError(t, s.Open(ctx, "c1"))

	backend.onSend = func() {
		_, err := s.Receive(ctx, confirmed)
		require.NoError(t, err)
	}

	_, err := s.SendDirect(ctx, "hello")
	require.NoError(t, err)

	entries := s.Messages()
	require.Len(t, entries, 1)
	assert.Equal(t, "m9", entries[0].ID)
	assert.False(t, entries[0].Pending)
}

func TestSendDirectRequiresOpenConversation(t *testing.T) {
	s := NewState(&fakeBackend{}, "alice")
	_, err := s.SendDirect(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrNoActiveConversation)
}

func TestRunAppliesReceiveEvents(t *testing.T) {
	ctx := context.Background()
	s := NewState(&fakeBackend{}, "alice")
	require.NoError(t, s.Open(ctx, "c1"))

	frame, err := chat.EncodeEnvelope(chat.EventReceiveMessage, directView("m1", "c1", "bob", "hi", false), "")
	require.NoError(t, err)
	var env chat.Envelope
	require.NoError(t, json.Unmarshal(frame, &env))

	events := make(chan chat.Envelope, 2)
	events <- chat.Envelope{Type: chat.EventJoined}
	events <- env
	close(events)

	s.Run(ctx, events)
	require.Len(t, s.Messages(), 1)
	assert.Equal(t, "hi", s.Messages()[0].Content)
}
