package memdb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
	"duochat/internal/pkg/errs"
)

// FindOrCreateConversation returns the conversation for (low, high), creating it when absent.
func (db *DB) FindOrCreateConversation(_ context.Context, low, high string) (message.Conversation, error) {
	if low >= high {
		return message.Conversation{}, errs.NewError(errs.ErrSelfConversation)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	key := [2]string{low, high}
	if id, ok := db.pairs[key]; ok {
		return db.conversations[id].Clone(), nil
	}

	now := db.now().UTC()
	conv := message.Conversation{
		ID:           uuid.NewString(),
		Participants: key,
		MessageIDs:   []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	db.conversations[conv.ID] = conv
	db.pairs[key] = conv.ID
	return conv.Clone(), nil
}

// GetConversation returns message.ErrConversationNotFound for unknown ids.
func (db *DB) GetConversation(_ context.Context, id string) (message.Conversation, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	conv, ok := db.conversations[id]
	if !ok {
		return message.Conversation{}, message.ErrConversationNotFound
	}
	return conv.Clone(), nil
}

// ListConversationsForUser returns userID's conversations, most recently updated first.
func (db *DB) ListConversationsForUser(_ context.Context, userID string) ([]message.ConversationView, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	views := make([]message.ConversationView, 0)
	for _, conv := range db.conversations {
		if conv.HasParticipant(userID) {
			views = append(views, db.resolveConversation(conv))
		}
	}

	sort.Slice(views, func(i, j int) bool {
		if !views[i].UpdatedAt.Equal(views[j].UpdatedAt) {
			return views[i].UpdatedAt.After(views[j].UpdatedAt)
		}
		return views[i].ID < views[j].ID
	})
	return views, nil
}

// ResolveConversation populates participants and the last message.
func (db *DB) ResolveConversation(_ context.Context, c message.Conversation) (message.ConversationView, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.resolveConversation(c), nil
}

func (db *DB) resolveConversation(c message.Conversation) message.ConversationView {
	view := message.ConversationView{
		Conversation: c.Clone(),
		Users:        make([]user.User, 0, 2),
	}
	for _, id := range c.Participants {
		if acc, ok := db.users[id]; ok {
			view.Users = append(view.Users, acc.User)
		}
	}
	if c.LastMessageID != "" {
		if m, ok := db.messages[c.LastMessageID]; ok {
			last := message.View{Message: m, Sender: db.senderSummary(m.SenderID)}
			view.LastMessage = &last
		}
	}
	return view
}

// CreateMessage persists a message directly. Direct messages should go through InTx so the
// conversation log is updated with them.
func (db *DB) CreateMessage(_ context.Context, m message.Message) (message.Message, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	m, err := db.prepareMessage(m)
	if err != nil {
		return message.Message{}, err
	}
	db.messages[m.ID] = m
	return m, nil
}

// prepareMessage validates m and fills the store-assigned fields. mu must be held for writing.
func (db *DB) prepareMessage(m message.Message) (message.Message, error) {
	if err := m.Validate(); err != nil {
		return message.Message{}, err
	}
	if m.Target.IsDirect() {
		if _, ok := db.conversations[m.Target.ID()]; !ok {
			return message.Message{}, message.ErrConversationNotFound
		}
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if _, dup := db.messages[m.ID]; dup {
		return message.Message{}, fmt.Errorf("memdb: duplicate message id %s", m.ID)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = db.now().UTC()
	}
	m.Seq = db.nextSeq()
	return m, nil
}

// ListMessages returns the target's messages in insertion order.
func (db *DB) ListMessages(_ context.Context, target message.Target) ([]message.View, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	views := make([]message.View, 0)
	for _, m := range db.messages {
		if m.Target == target {
			views = append(views, message.View{Message: m, Sender: db.senderSummary(m.SenderID)})
		}
	}

	sort.Slice(views, func(i, j int) bool { return views[i].Seq < views[j].Seq })
	return views, nil
}

// MarkConversationRead flips unread messages not sent by readerID.
func (db *DB) MarkConversationRead(_ context.Context, conversationID, readerID string) (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	target := message.ConversationTarget(conversationID)
	var updated int64
	for id, m := range db.messages {
		if m.Target == target && !m.Read && m.SenderID != readerID {
			m.Read = true
			db.messages[id] = m
			updated++
		}
	}
	return updated, nil
}

// ResolveMessage populates the sender of m.
func (db *DB) ResolveMessage(_ context.Context, m message.Message) (message.View, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return message.View{Message: m, Sender: db.senderSummary(m.SenderID)}, nil
}

// InTx runs fn with a buffered transaction and applies its writes only if fn succeeds.
func (db *DB) InTx(ctx context.Context, fn func(tx message.Tx) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	t := &tx{db: db}
	if err := fn(t); err != nil {
		return err
	}
	return t.commit()
}

type appendOp struct {
	conversationID string
	messageID      string
	at             time.Time
}

// tx buffers writes. Reads see committed state plus the buffer.
type tx struct {
	db       *DB
	messages []message.Message
	appends  []appendOp
}

func (t *tx) GetConversation(_ context.Context, id string) (message.Conversation, error) {
	t.db.mu.RLock()
	conv, ok := t.db.conversations[id]
	t.db.mu.RUnlock()

	if !ok {
		return message.Conversation{}, message.ErrConversationNotFound
	}

	conv = conv.Clone()
	for _, op := range t.appends {
		if op.conversationID == id {
			conv.MessageIDs = append(conv.MessageIDs, op.messageID)
			conv.LastMessageID = op.messageID
			conv.UpdatedAt = op.at
		}
	}
	return conv, nil
}

func (t *tx) CreateMessage(_ context.Context, m message.Message) (message.Message, error) {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	for _, pending := range t.messages {
		if pending.ID != "" && pending.ID == m.ID {
			return message.Message{}, fmt.Errorf("memdb: duplicate message id %s", m.ID)
		}
	}

	m, err := t.db.prepareMessage(m)
	if err != nil {
		return message.Message{}, err
	}
	t.messages = append(t.messages, m)
	return m, nil
}

func (t *tx) AppendMessage(_ context.Context, conversationID, messageID string, at time.Time) error {
	t.db.mu.RLock()
	_, convOK := t.db.conversations[conversationID]
	_, msgOK := t.db.messages[messageID]
	t.db.mu.RUnlock()

	if !convOK {
		return message.ErrConversationNotFound
	}
	if !msgOK && !t.pending(messageID) {
		return fmt.Errorf("memdb: append unknown message %s", messageID)
	}

	t.appends = append(t.appends, appendOp{conversationID: conversationID, messageID: messageID, at: at})
	return nil
}

func (t *tx) pending(messageID string) bool {
	for _, m := range t.messages {
		if m.ID == messageID {
			return true
		}
	}
	return false
}

func (t *tx) commit() error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()

	for _, op := range t.appends {
		if _, ok := t.db.conversations[op.conversationID]; !ok {
			return message.ErrConversationNotFound
		}
	}

	for _, m := range t.messages {
		t.db.messages[m.ID] = m
	}
	for _, op := range t.appends {
		conv := t.db.conversations[op.conversationID]
		conv.MessageIDs = append(conv.MessageIDs, op.messageID)
		conv.LastMessageID = op.messageID
		if op.at.After(conv.UpdatedAt) {
			conv.UpdatedAt = op.at
		}
		t.db.conversations[op.conversationID] = conv
	}
	return nil
}
