package message

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"duochat/internal/app/user"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/metrics"
)

// Service implements conversation and message operations over a Store.
type Service struct {
	store  Store
	users  user.Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewService wires a Service to its stores.
func NewService(store Store, users user.Store) *Service {
	return &Service{
		store:  store,
		users:  users,
		logger: logx.Component("message_service"),
		now:    time.Now,
	}
}

// FindOrCreate returns the conversation between callerID and otherID, creating it on first contact.
func (s *Service) FindOrCreate(ctx context.Context, callerID, otherID string) (ConversationView, error) {
	low, high, err := CanonicalPair(callerID, otherID)
	if err != nil {
		return ConversationView{}, err
	}

	if _, err := s.users.GetUserByID(ctx, otherID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ConversationView{}, errs.NewError(errs.ErrUserNotFound)
		}
		return ConversationView{}, fmt.Errorf("lookup user %s: %w", otherID, err)
	}

	conv, err := s.store.FindOrCreateConversation(ctx, low, high)
	if err != nil {
		return ConversationView{}, fmt.Errorf("find or create conversation: %w", err)
	}

	return s.store.ResolveConversation(ctx, conv)
}

// ListConversations returns userID's conversations, most recently updated first.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]ConversationView, error) {
	return s.store.ListConversationsForUser(ctx, userID)
}

// Authorize returns the conversation if userID participates in it. Unknown conversations
// and foreign ones produce the same ErrNotParticipant.
func (s *Service) Authorize(ctx context.Context, userID, conversationID string) (Conversation, error) {
	conv, err := s.store.GetConversation(ctx, canonicalID(conversationID))
	return checkParticipant(conv, err, userID)
}

// History returns the conversation's messages in order, for participants only.
func (s *Service) History(ctx context.Context, userID, conversationID string) ([]View, error) {
	conv, err := s.Authorize(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, ConversationTarget(conv.ID))
}

// RoomHistory returns all messages posted to roomID in order.
func (s *Service) RoomHistory(ctx context.Context, roomID string) ([]View, error) {
	if !IsValidRoomID(roomID) {
		return nil, errs.NewError(errs.ErrInvalidRoomID)
	}
	return s.store.ListMessages(ctx, RoomTarget(roomID))
}

// Send dispatches on the target kind.
func (s *Service) Send(ctx context.Context, senderID string, target Target, content string) (View, error) {
	switch target.Kind() {
	case KindDirect:
		return s.SendDirectMessage(ctx, senderID, target.ID(), content)
	case KindRoom:
		return s.SendRoomMessage(ctx, senderID, target.ID(), content)
	default:
		return View{}, errs.NewError(errs.ErrInvalidTarget)
	}
}

// SendDirectMessage persists a message and the conversation update in one transaction.
func (s *Service) SendDirectMessage(ctx context.Context, senderID, conversationID, content string) (View, error) {
	if err := ValidateContent(content); err != nil {
		return View{}, err
	}
	conversationID = canonicalID(conversationID)

	msg := NewDirectMessage(senderID, conversationID, content)
	msg.ID = uuid.NewString()

	var created Message
	err := s.store.InTx(ctx, func(tx Tx) error {
		conv, err := tx.GetConversation(ctx, conversationID)
		if _, err := checkParticipant(conv, err, senderID); err != nil {
			return err
		}

		// Stamped under the conversation lock so commit order matches timestamps.
		msg.CreatedAt = s.now().UTC()
		created, err = tx.CreateMessage(ctx, msg)
		if err != nil {
			return err
		}

		return tx.AppendMessage(ctx, conversationID, created.ID, created.CreatedAt)
	})
	if err != nil {
		return View{}, err
	}

	metrics.MessagesPersisted.WithLabelValues(KindDirect.String()).Inc()
	s.logger.Debug().
		Str("message_id", created.ID).
		Str("conversation_id", conversationID).
		Msg("Direct message persisted")

	return s.store.ResolveMessage(ctx, created)
}

// SendRoomMessage persists a room message. Rooms have no conversation row to update.
func (s *Service) SendRoomMessage(ctx context.Context, senderID, roomID, content string) (View, error) {
	if !IsValidRoomID(roomID) {
		return View{}, errs.NewError(errs.ErrInvalidRoomID)
	}
	if err := ValidateContent(content); err != nil {
		return View{}, err
	}

	msg := NewRoomMessage(senderID, roomID, content)
	msg.ID = uuid.NewString()
	msg.CreatedAt = s.now().UTC()

	created, err := s.store.CreateMessage(ctx, msg)
	if err != nil {
		return View{}, err
	}

	metrics.MessagesPersisted.WithLabelValues(KindRoom.String()).Inc()

	return s.store.ResolveMessage(ctx, created)
}

// MarkConversationRead marks every unread message from the other participant as read and
// returns the count. Readers outside the conversation change nothing.
func (s *Service) MarkConversationRead(ctx context.Context, readerID, conversationID string) (int64, error) {
	conv, err := s.Authorize(ctx, readerID, conversationID)
	if err != nil {
		if errors.Is(err, errs.NewError(errs.ErrNotParticipant)) {
			return 0, nil
		}
		return 0, err
	}
	return s.store.MarkConversationRead(ctx, conv.ID, readerID)
}

// OtherParticipant returns the member of conversationID that is not userID.
func (s *Service) OtherParticipant(ctx context.Context, conversationID, userID string) (string, error) {
	conv, err := s.Authorize(ctx, userID, conversationID)
	if err != nil {
		return "", err
	}
	other, _ := conv.OtherParticipant(userID)
	return other, nil
}

// canonicalID normalizes a uuid to its lowercase hyphenated form. Other strings pass
// through unchanged and later resolve to no conversation.
func canonicalID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}

func checkParticipant(conv Conversation, err error, userID string) (Conversation, error) {
	if errors.Is(err, ErrConversationNotFound) {
		return Conversation{}, errs.NewError(errs.ErrNotParticipant)
	}
	if err != nil {
		return Conversation{}, err
	}
	if !conv.HasParticipant(userID) {
		return Conversation{}, errs.NewError(errs.ErrNotParticipant)
	}
	return conv, nil
}
