package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
)

const conversationColumns = `id::text, user_low::text, user_high::text, message_ids::text[], last_message_id::text, created_at, updated_at`

func scanConversation(row pgx.Row) (message.Conversation, error) {
	var (
		c    message.Conversation
		last pgtype.Text
	)
	err := row.Scan(&c.ID, &c.Participants[0], &c.Participants[1], &c.MessageIDs, &last, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return message.Conversation{}, err
	}
	if c.MessageIDs == nil {
		c.MessageIDs = []string{}
	}
	c.LastMessageID = last.String
	return c, nil
}

func getConversation(ctx context.Context, q querier, id string, forUpdate bool) (message.Conversation, error) {
	sql := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1::uuid`
	if forUpdate {
		sql += ` FOR UPDATE`
	}

	c, err := scanConversation(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) || IsInvalidInput(err) {
		return message.Conversation{}, message.ErrConversationNotFound
	}
	if err != nil {
		return message.Conversation{}, fmt.Errorf("select conversation: %w", err)
	}
	return c, nil
}

// FindOrCreateConversation relies on the unique (user_low, user_high) key: a losing
// concurrent insert does nothing and the existing row is read back.
func (s *Store) FindOrCreateConversation(ctx context.Context, low, high string) (message.Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx, `
		INSERT INTO conversations (user_low, user_high)
		VALUES ($1::uuid, $2::uuid)
		ON CONFLICT (user_low, user_high) DO NOTHING
		RETURNING `+conversationColumns,
		low, high,
	))
	if err == nil {
		return c, nil
	}
	if IsForeignKeyViolation(err) || IsInvalidInput(err) {
		return message.Conversation{}, user.ErrNotFound
	}
	if IsCheckViolation(err) {
		return message.Conversation{}, checkError(err)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return message.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}

	c, err = scanConversation(s.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations WHERE user_low = $1::uuid AND user_high = $2::uuid`,
		low, high,
	))
	if err != nil {
		return message.Conversation{}, fmt.Errorf("select conversation by pair: %w", err)
	}
	return c, nil
}

// GetConversation returns message.ErrConversationNotFound for unknown ids.
func (s *Store) GetConversation(ctx context.Context, id string) (message.Conversation, error) {
	return getConversation(ctx, s.pool, id, false)
}

// conversationViewQuery resolves both participants and the last message with its sender.
const conversationViewQuery = `
	SELECT c.id::text, c.message_ids::text[], c.created_at, c.updated_at,
	       lo.id::text, lo.username, lo.email, lo.profile_pic, lo.created_at, lo.updated_at,
	       hi.id::text, hi.username, hi.email, hi.profile_pic, hi.created_at, hi.updated_at,
	       m.id::text, m.seq, m.sender_id::text, m.content, m.read, m.created_at,
	       s.username, s.profile_pic
	FROM conversations c
	JOIN users lo ON lo.id = c.user_low
	JOIN users hi ON hi.id = c.user_high
	LEFT JOIN messages m ON m.id = c.last_message_id
	LEFT JOIN users s ON s.id = m.sender_id`

func scanConversationView(row pgx.Row) (message.ConversationView, error) {
	var (
		cv         message.ConversationView
		lo, hi     user.User
		msgID      pgtype.Text
		msgSeq     pgtype.Int8
		msgSender  pgtype.Text
		msgContent pgtype.Text
		msgRead    pgtype.Bool
		msgCreated pgtype.Timestamptz
		senderName pgtype.Text
		senderPic  pgtype.Text
	)

	err := row.Scan(
		&cv.ID, &cv.MessageIDs, &cv.CreatedAt, &cv.UpdatedAt,
		&lo.ID, &lo.Username, &lo.Email, &lo.ProfilePic, &lo.CreatedAt, &lo.UpdatedAt,
		&hi.ID, &hi.Username, &hi.Email, &hi.ProfilePic, &hi.CreatedAt, &hi.UpdatedAt,
		&msgID, &msgSeq, &msgSender, &msgContent, &msgRead, &msgCreated,
		&senderName, &senderPic,
	)
	if err != nil {
		return message.ConversationView{}, err
	}

	if cv.MessageIDs == nil {
		cv.MessageIDs = []string{}
	}
	cv.Participants = [2]string{lo.ID, hi.ID}
	cv.Users = []user.User{lo, hi}

	if msgID.Valid {
		cv.LastMessageID = msgID.String
		cv.LastMessage = &message.View{
			Message: message.Message{
				ID:        msgID.String,
				Seq:       msgSeq.Int64,
				SenderID:  msgSender.String,
				Content:   msgContent.String,
				Target:    message.ConversationTarget(cv.ID),
				Read:      msgRead.Bool,
				CreatedAt: msgCreated.Time,
			},
			Sender: user.Summary{ID: msgSender.String, Username: senderName.String, ProfilePic: senderPic.String},
		}
	}
	return cv, nil
}

// ListConversationsForUser returns the user's conversations, most recently updated first.
func (s *Store) ListConversationsForUser(ctx context.Context, userID string) ([]message.ConversationView, error) {
	rows, err := s.pool.Query(ctx, conversationViewQuery+`
		WHERE c.user_low::text = $1 OR c.user_high::text = $1
		ORDER BY c.updated_at DESC, c.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	views := make([]message.ConversationView, 0)
	for rows.Next() {
		cv, err := scanConversationView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		views = append(views, cv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return views, nil
}

// ResolveConversation re-reads c with participants and last message populated.
func (s *Store) ResolveConversation(ctx context.Context, c message.Conversation) (message.ConversationView, error) {
	cv, err := scanConversationView(s.pool.QueryRow(ctx, conversationViewQuery+`
		WHERE c.id = $1::uuid`, c.ID))
	if errors.Is(err, pgx.ErrNoRows) {
		return message.ConversationView{}, message.ErrConversationNotFound
	}
	if err != nil {
		return message.ConversationView{}, fmt.Errorf("resolve conversation: %w", err)
	}
	return cv, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func insertMessage(ctx context.Context, q querier, m message.Message) (message.Message, error) {
	if err := m.Validate(); err != nil {
		return message.Message{}, err
	}

	err := q.QueryRow(ctx, `
		INSERT INTO messages (id, sender_id, content, conversation_id, room_id, read, created_at)
		VALUES (COALESCE($1::uuid, gen_random_uuid()), $2::uuid, $3, $4::uuid, $5, $6, COALESCE($7, now()))
		RETURNING id::text, seq, created_at`,
		nullable(m.ID), m.SenderID, m.Content,
		nullable(m.Target.ConversationID()), nullable(m.Target.RoomID()),
		m.Read, nullableTime(m.CreatedAt),
	).Scan(&m.ID, &m.Seq, &m.CreatedAt)
	if err != nil {
		if m.Target.IsDirect() && IsForeignKeyViolation(err) && ConstraintName(err) == "messages_conversation_id_fkey" {
			return message.Message{}, message.ErrConversationNotFound
		}
		if IsCheckViolation(err) {
			return message.Message{}, checkError(err)
		}
		return message.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// CreateMessage inserts a message outside a transaction.
func (s *Store) CreateMessage(ctx context.Context, m message.Message) (message.Message, error) {
	return insertMessage(ctx, s.pool, m)
}

// ListMessages returns the target's messages ordered by sequence.
func (s *Store) ListMessages(ctx context.Context, target message.Target) ([]message.View, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	where := `m.room_id = $1`
	if target.IsDirect() {
		where = `m.conversation_id::text = $1`
	}

	rows, err := s.pool.Query(ctx, `
		SELECT m.id::text, m.seq, m.sender_id::text, m.content, m.read, m.created_at,
		       u.username, u.profile_pic
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE `+where+`
		ORDER BY m.seq`,
		target.ID(),
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	views := make([]message.View, 0)
	for rows.Next() {
		v := message.View{Message: message.Message{Target: target}}
		if err := rows.Scan(&v.ID, &v.Seq, &v.SenderID, &v.Content, &v.Read, &v.CreatedAt,
			&v.Sender.Username, &v.Sender.ProfilePic); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		v.Sender.ID = v.SenderID
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return views, nil
}

// MarkConversationRead flips unread messages not sent by readerID.
func (s *Store) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE messages SET read = true
		WHERE conversation_id::text = $1 AND sender_id::text <> $2 AND NOT read`,
		conversationID, readerID,
	)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ResolveMessage populates the sender of m.
func (s *Store) ResolveMessage(ctx context.Context, m message.Message) (message.View, error) {
	v := message.View{Message: m, Sender: user.Summary{ID: m.SenderID}}

	err := s.pool.QueryRow(ctx,
		`SELECT username, profile_pic FROM users WHERE id = $1::uuid`, m.SenderID,
	).Scan(&v.Sender.Username, &v.Sender.ProfilePic)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return message.View{}, fmt.Errorf("resolve sender: %w", err)
	}
	return v, nil
}

// InTx runs fn in a read-committed transaction and commits only if fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx message.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

// GetConversation locks the row so concurrent sends to one conversation serialize.
func (t *pgTx) GetConversation(ctx context.Context, id string) (message.Conversation, error) {
	return getConversation(ctx, t.tx, id, true)
}

func (t *pgTx) CreateMessage(ctx context.Context, m message.Message) (message.Message, error) {
	return insertMessage(ctx, t.tx, m)
}

func (t *pgTx) AppendMessage(ctx context.Context, conversationID, messageID string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE conversations
		SET message_ids = array_append(message_ids, $2::uuid),
		    last_message_id = $2::uuid,
		    updated_at = GREATEST(updated_at, $3)
		WHERE id = $1::uuid`,
		conversationID, messageID, at,
	)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return message.ErrConversationNotFound
	}
	return nil
}
