package client_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duochat/internal/app/chat"
	"duochat/internal/app/db/memdb"
	"duochat/internal/app/message"
	"duochat/internal/client"
	"duochat/internal/configs"
	"duochat/internal/handler"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
)

func startServer(t *testing.T) string {
	t.Helper()
	logx.SetOutput(io.Discard, zerolog.Disabled)

	ctx, cancel := context.WithCancel(context.Background())
	db := memdb.New()
	service := message.NewService(db, db)
	hub := chat.NewHub(service, nil)

	srv := httptest.NewServer(handler.Router(ctx, &handler.AppDeps{
		Config: &configs.AppConfig{
			Environment:    "test",
			AllowedOrigins: []string{},
			JWTSecret:      "client-test",
			JWTTTL:         time.Hour,
		},
		Users:    db,
		Messages: service,
		Hub:      hub,
	}))

	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_ = hub.Shutdown(shutdownCtx)
		srv.Close()
		cancel()
	})
	return srv.URL
}

func nextEvent(t *testing.T, s *client.Stream) chat.Envelope {
	t.Helper()
	select {
	case env, ok := <-s.Events():
		require.True(t, ok, "stream closed: %v", s.Err())
		return env
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return chat.Envelope{}
	}
}

func TestAPIErrorsAreCustomErrors(t *testing.T) {
	ctx := context.Background()
	api := client.NewAPI(startServer(t)+"/", nil)

	_, err := api.Login(ctx, "nobody@x.com", "pw")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.NewError(errs.ErrUserNotFound)))

	_, err = api.Profile(ctx)
	var customErr *errs.CustomError
	require.ErrorAs(t, err, &customErr)
	assert.Equal(t, 401, customErr.Status)
}

func TestAPIRoundTrip(t *testing.T) {
	ctx := context.Background()
	base := startServer(t)

	alice := client.NewAPI(base, nil)
	a, err := alice.Register(ctx, "alice", "alice@x.com", "pw1")
	require.NoError(t, err)
	assert.Equal(t, a.Token, alice.Token())

	bob := client.NewAPI(base, nil)
	b, err := bob.Register(ctx, "bob", "bob@x.com", "pw2")
	require.NoError(t, err)

	found, err := alice.SearchUsers(ctx, "bo")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, b.User.ID, found[0].ID)

	got, err := alice.GetUser(ctx, b.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.Username)

	conv, err := alice.FindOrCreateConversation(ctx, b.User.ID)
	require.NoError(t, err)
	assert.Equal(t, [2]string(conv.Participants), func() [2]string {
		if a.User.ID < b.User.ID {
			return [2]string{a.User.ID, b.User.ID}
		}
		return [2]string{b.User.ID, a.User.ID}
	}())

	sent, err := alice.SendDirect(ctx, conv.ID, "hi")
	require.NoError(t, err)

	history, err := bob.History(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, sent.ID, history[0].ID)

	n, err := bob.MarkRead(ctx, conv.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	list, err := bob.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].Unread(b.User.ID))

	_, err = alice.SendRoom(ctx, "lobby", "hello room")
	require.NoError(t, err)
	room, err := bob.RoomHistory(ctx, "lobby")
	require.NoError(t, err)
	require.Len(t, room, 1)
	assert.Equal(t, "hello room", room[0].Content)

	again, err := bob.Login(ctx, "bob@x.com", "pw2")
	require.NoError(t, err)
	assert.Equal(t, b.User.ID, again.User.ID)
}

func TestStateFollowsLiveMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	base := startServer(t)

	alice := client.NewAPI(base, nil)
	a, err := alice.Register(ctx, "alice", "alice@x.com", "pw1")
	require.NoError(t, err)
	bob := client.NewAPI(base, nil)
	b, err := bob.Register(ctx, "bob", "bob@x.com", "pw2")
	require.NoError(t, err)
	carol := client.NewAPI(base, nil)
	_, err = carol.Register(ctx, "carol", "carol@x.com", "pw3")
	require.NoError(t, err)

	withAlice, err := bob.FindOrCreateConversation(ctx, a.User.ID)
	require.NoError(t, err)

	stream, err := client.Dial(ctx, base, bob.Token())
	require.NoError(t, err)
	defer stream.Close()

	// A joined ack proves the session is registered.
	require.NoError(t, stream.JoinRoom("lobby"))
	require.Equal(t, chat.EventJoined, nextEvent(t, stream).Type)

	state := client.NewState(bob, b.User.ID)
	require.NoError(t, state.Open(ctx, withAlice.ID))
	require.NoError(t, stream.JoinConversation(withAlice.ID))
	require.Equal(t, chat.EventJoined, nextEvent(t, stream).Type)

	_, err = alice.SendDirect(ctx, withAlice.ID, "hi bob")
	require.NoError(t, err)
	require.NoError(t, state.Apply(ctx, nextEvent(t, stream)))
	require.Len(t, state.Messages(), 1)
	assert.Equal(t, "hi bob", state.Messages()[0].Content)

	// carol's first message reaches bob directly and refetches the list.
	withBob, err := carol.FindOrCreateConversation(ctx, b.User.ID)
	require.NoError(t, err)
	_, err = carol.SendDirect(ctx, withBob.ID, "hey")
	require.NoError(t, err)

	env := nextEvent(t, stream)
	v, err := client.DecodeMessage(env)
	require.NoError(t, err)
	assert.Equal(t, withBob.ID, v.Target.ConversationID())
	require.NoError(t, state.Apply(ctx, env))

	assert.Len(t, state.Conversations(), 2)
	assert.True(t, state.Unread(withBob.ID))
	assert.False(t, state.Unread(withAlice.ID))
	assert.Len(t, state.Messages(), 1, "other conversations never touch the open one")

	sent, err := state.SendDirect(ctx, "reply")
	require.NoError(t, err)
	assert.Equal(t, "reply", sent.Content)
	assert.Len(t, state.Messages(), 2)
}

func TestStreamSendAndAck(t *testing.T) {
	ctx := context.Background()
	base := startServer(t)

	alice := client.NewAPI(base, nil)
	_, err := alice.Register(ctx, "alice", "alice@x.com", "pw1")
	require.NoError(t, err)

	stream, err := client.Dial(ctx, base, alice.Token())
	require.NoError(t, err)

	require.NoError(t, stream.SendMessage(message.RoomTarget("lobby"), "hello", "tmp_abc"))
	ack, err := client.DecodeAck(nextEvent(t, stream))
	require.NoError(t, err)
	assert.Equal(t, "tmp_abc", ack.TempID)
	assert.Equal(t, "hello", ack.Message.Content)

	require.NoError(t, stream.SendMessage(message.ConversationTarget("not-a-conversation"), "hello", "tmp_def"))
	env := nextEvent(t, stream)
	require.Equal(t, chat.EventError, env.Type)
	assert.Equal(t, "tmp_def", env.TempID)
	assert.Error(t, client.DecodeError(env))

	require.NoError(t, stream.Close())
	assert.NoError(t, stream.Err())
	assert.ErrorIs(t, stream.JoinRoom("lobby"), client.ErrStreamClosed)
}

func TestDialRejectsBadToken(t *testing.T) {
	_, err := client.Dial(context.Background(), startServer(t), "garbage")
	assert.Error(t, err)

	_, err = client.Dial(context.Background(), "ftp://example.com", "x")
	assert.Error(t, err)
}
