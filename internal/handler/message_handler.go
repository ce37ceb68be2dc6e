package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"duochat/internal/app/message"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/req"
	"duochat/internal/pkg/resp"
)

type SendDirectInput struct {
	ConversationID string `json:"conversationId" validate:"required"`
	Content        string `json:"content" validate:"required"`
}

type SendRoomInput struct {
	RoomID  string `json:"roomId" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// HandleListConversations returns the caller's conversations, most recently updated first.
func HandleListConversations(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := requirePayload(w, r)
		if !ok {
			return
		}

		conversations, err := deps.Messages.ListConversations(r.Context(), payload.ID)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}
		if conversations == nil {
			conversations = []message.ConversationView{}
		}

		resp.RespondSuccess(w, r, map[string]any{"conversations": conversations})
	}
}

// HandleFindOrCreateConversation returns the caller's conversation with the user in the path,
// creating it on first contact.
func HandleFindOrCreateConversation(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := requirePayload(w, r)
		if !ok {
			return
		}

		otherID, customErr := parseID(chi.URLParam(r, "id"), "user")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		conversation, err := deps.Messages.FindOrCreate(r.Context(), payload.ID, otherID)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"conversation": conversation})
	}
}

// HandleConversationHistory lists a conversation's messages in send order.
func HandleConversationHistory(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := requirePayload(w, r)
		if !ok {
			return
		}

		conversationID, customErr := parseID(chi.URLParam(r, "id"), "conversation")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		messages, err := deps.Messages.History(r.Context(), payload.ID, conversationID)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"messages": nonNilViews(messages)})
	}
}

// HandleMarkConversationRead flags every message the caller received in the conversation as read.
func HandleMarkConversationRead(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := requirePayload(w, r)
		if !ok {
			return
		}

		conversationID, customErr := parseID(chi.URLParam(r, "id"), "conversation")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		updated, err := deps.Messages.MarkConversationRead(r.Context(), payload.ID, conversationID)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"updatedCount": updated})
	}
}

// HandleSendDirectMessage persists a direct message and fans it out to live sessions.
func HandleSendDirectMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := requirePayload(w, r)
		if !ok {
			return
		}

		var input SendDirectInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		conversationID, customErr := parseID(input.ConversationID, "conversation")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		sendAndPublish(w, r, deps, payload.ID, message.ConversationTarget(conversationID), input.Content)
	}
}

// HandleRoomHistory lists a room's messages in send order.
func HandleRoomHistory(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requirePayload(w, r); !ok {
			return
		}

		messages, err := deps.Messages.RoomHistory(r.Context(), chi.URLParam(r, "roomId"))
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"messages": nonNilViews(messages)})
	}
}

// HandleSendRoomMessage persists a room message and broadcasts it to the room's subscribers.
func HandleSendRoomMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := requirePayload(w, r)
		if !ok {
			return
		}

		var input SendRoomInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		sendAndPublish(w, r, deps, payload.ID, message.RoomTarget(input.RoomID), input.Content)
	}
}

func sendAndPublish(w http.ResponseWriter, r *http.Request, deps *AppDeps, senderID string, target message.Target, content string) {
	if !deps.Hub.AllowSend(r.Context(), senderID) {
		logx.Warn("Message send rejected: rate limit exceeded", "user_id", senderID)
		resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
		return
	}

	view, err := deps.Messages.Send(r.Context(), senderID, target, content)
	if err != nil {
		resp.RespondErr(w, r, err)
		return
	}

	deps.Hub.Publish(r.Context(), view)

	resp.RespondCreated(w, r, map[string]any{"message": view})
}

func nonNilViews(views []message.View) []message.View {
	if views == nil {
		return []message.View{}
	}
	return views
}
