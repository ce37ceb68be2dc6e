package memdb

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
)

func mustCreateUser(t *testing.T, db *DB, name string) user.User {
	t.Helper()
	u, err := db.CreateUser(context.Background(), user.NewUser{Username: name, Email: name + "@x.com", PasswordHash: "h"})
	require.NoError(t, err)
	return u
}

func TestCreateUserUniqueness(t *testing.T) {
	ctx := context.Background()
	db := New()
	mustCreateUser(t, db, "alice")

	_, err := db.CreateUser(ctx, user.NewUser{Username: "alice2", Email: " ALICE@x.com ", PasswordHash: "h"})
	assert.ErrorIs(t, err, user.ErrDuplicateEmail)

	_, err = db.CreateUser(ctx, user.NewUser{Username: "alice", Email: "other@x.com", PasswordHash: "h"})
	assert.ErrorIs(t, err, user.ErrDuplicateUsername)

	acc, err := db.GetAccountByEmail(ctx, "Alice@X.com")
	require.NoError(t, err)
	assert.Equal(t, "alice", acc.Username)
	assert.Equal(t, "h", acc.PasswordHash)

	_, err = db.GetUserByID(ctx, "nope")
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestSearchUsersExcludesCallerAndCaps(t *testing.T) {
	ctx := context.Background()
	db := New()
	caller := mustCreateUser(t, db, "match_me")
	for i := range 15 {
		mustCreateUser(t, db, fmt.Sprintf("match_%02d", i))
	}
	mustCreateUser(t, db, "zed")

	got, err := db.SearchUsers(ctx, "MATCH", caller.ID, user.SearchLimit)
	require.NoError(t, err)
	assert.Len(t, got, user.SearchLimit)
	for _, u := range got {
		assert.NotEqual(t, caller.ID, u.ID)
	}

	byEmail, err := db.SearchUsers(ctx, "zed@", caller.ID, user.SearchLimit)
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, "zed", byEmail[0].Username)
}

func TestFindOrCreateConversationByPair(t *testing.T) {
	ctx := context.Background()
	db := New()

	a, err := db.FindOrCreateConversation(ctx, "a", "b")
	require.NoError(t, err)
	b, err := db.FindOrCreateConversation(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	_, err = db.FindOrCreateConversation(ctx, "b", "a")
	assert.Error(t, err, "pairs must be canonical")

	_, err = db.GetConversation(ctx, "missing")
	assert.ErrorIs(t, err, message.ErrConversationNotFound)
}

func TestCreateMessageRequiresConversation(t *testing.T) {
	ctx := context.Background()
	db := New()
	alice := mustCreateUser(t, db, "alice")

	_, err := db.CreateMessage(ctx, message.NewDirectMessage(alice.ID, "missing", "hi"))
	assert.ErrorIs(t, err, message.ErrConversationNotFound)

	m, err := db.CreateMessage(ctx, message.NewRoomMessage(alice.ID, "lobby", "hi"))
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.NotZero(t, m.Seq)
	assert.False(t, m.CreatedAt.IsZero())
}

func TestInTxIsolation(t *testing.T) {
	ctx := context.Background()
	db := New()
	alice := mustCreateUser(t, db, "alice")
	bob := mustCreateUser(t, db, "bob")

	low, high, err := message.CanonicalPair(alice.ID, bob.ID)
	require.NoError(t, err)
	conv, err := db.FindOrCreateConversation(ctx, low, high)
	require.NoError(t, err)

	err = db.InTx(ctx, func(tx message.Tx) error {
		m, err := tx.CreateMessage(ctx, message.NewDirectMessage(alice.ID, conv.ID, "hi"))
		require.NoError(t, err)
		require.NoError(t, tx.AppendMessage(ctx, conv.ID, m.ID, m.CreatedAt))

		// Uncommitted writes are visible inside the transaction only.
		inside, err := tx.GetConversation(ctx, conv.ID)
		require.NoError(t, err)
		assert.Equal(t, m.ID, inside.LastMessageID)

		outside, err := db.GetConversation(ctx, conv.ID)
		require.NoError(t, err)
		assert.Empty(t, outside.LastMessageID)

		msgs, err := db.ListMessages(ctx, message.ConversationTarget(conv.ID))
		require.NoError(t, err)
		assert.Empty(t, msgs)
		return nil
	})
	require.NoError(t, err)

	after, err := db.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, after.MessageIDs, 1)
	assert.Equal(t, after.MessageIDs[0], after.LastMessageID)

	view, err := db.ResolveConversation(ctx, after)
	require.NoError(t, err)
	require.NotNil(t, view.LastMessage)
	assert.Equal(t, "alice", view.LastMessage.Sender.Username)
	assert.Len(t, view.Users, 2)
}

func TestAppendNeverMovesUpdatedAtBackwards(t *testing.T) {
	ctx := context.Background()
	db := New()
	alice := mustCreateUser(t, db, "alice")
	bob := mustCreateUser(t, db, "bob")

	low, high, err := message.CanonicalPair(alice.ID, bob.ID)
	require.NoError(t, err)
	conv, err := db.FindOrCreateConversation(ctx, low, high)
	require.NoError(t, err)

	later := conv.UpdatedAt.Add(time.Minute)
	for _, at := range []time.Time{later, later.Add(-30 * time.Second)} {
		err := db.InTx(ctx, func(tx message.Tx) error {
			m, err := tx.CreateMessage(ctx, message.NewDirectMessage(alice.ID, conv.ID, "hi"))
			if err != nil {
				return err
			}
			return tx.AppendMessage(ctx, conv.ID, m.ID, at)
		})
		require.NoError(t, err)
	}

	after, err := db.GetConversation(ctx, conv.ID)
	require.NoError(t, err)
	assert.Len(t, after.MessageIDs, 2)
	assert.True(t, after.UpdatedAt.Equal(later))
}

func TestInTxUnknownAppendFails(t *testing.T) {
	ctx := context.Background()
	db := New()

	conv, err := db.FindOrCreateConversation(ctx, "a", "b")
	require.NoError(t, err)

	err = db.InTx(ctx, func(tx message.Tx) error {
		return tx.AppendMessage(ctx, conv.ID, "never-created", conv.CreatedAt)
	})
	assert.Error(t, err)

	err = db.InTx(ctx, func(tx message.Tx) error {
		return tx.AppendMessage(ctx, "missing", "x", conv.CreatedAt)
	})
	assert.ErrorIs(t, err, message.ErrConversationNotFound)
}

func TestMarkConversationReadSkipsReader(t *testing.T) {
	ctx := context.Background()
	db := New()

	conv, err := db.FindOrCreateConversation(ctx, "a", "b")
	require.NoError(t, err)

	for _, sender := range []string{"a", "b", "b"} {
		_, err := db.CreateMessage(ctx, message.NewDirectMessage(sender, conv.ID, "x"))
		require.NoError(t, err)
	}

	n, err := db.MarkConversationRead(ctx, conv.ID, "a")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = db.MarkConversationRead(ctx, conv.ID, "a")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = db.MarkConversationRead(ctx, conv.ID, "b")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUpdateProfilePic(t *testing.T) {
	ctx := context.Background()
	db := New()
	alice := mustCreateUser(t, db, "alice")

	u, err := db.UpdateProfilePic(ctx, alice.ID, "https://cdn/avatars/a.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/avatars/a.png", u.ProfilePic)

	_, err = db.UpdateProfilePic(ctx, "missing", "x")
	assert.ErrorIs(t, err, user.ErrNotFound)
}
