/*
Package client is a Go SDK for the chat server.

API wraps the REST endpoints, Stream wraps the websocket event protocol, and State
keeps a conversation list and an open conversation consistent with the server as
live messages arrive.
*/
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
	"duochat/internal/pkg/errs"
)

// DefaultTimeout bounds every REST call made with the default http.Client.
const DefaultTimeout = 15 * time.Second

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// AuthResult is the body of a successful register or login.
type AuthResult struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

// API is a REST client. It is safe for concurrent use.
type API struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// NewAPI returns a client for the server at baseURL (for example "http://localhost:8080").
// A nil httpClient selects one with DefaultTimeout.
func NewAPI(baseURL string, httpClient *http.Client) *API {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &API{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the server root.
func (a *API) BaseURL() string { return a.baseURL }

// Token returns the current credential.
func (a *API) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// SetToken replaces the credential sent with every request.
func (a *API) SetToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

// Register creates an account and stores the returned credential.
func (a *API) Register(ctx context.Context, username, email, password string) (AuthResult, error) {
	var out AuthResult
	body := map[string]string{"username": username, "email": email, "password": password}
	if err := a.do(ctx, http.MethodPost, "/api/auth/register", body, &out); err != nil {
		return AuthResult{}, err
	}
	a.SetToken(out.Token)
	return out, nil
}

// Login exchanges an email/password pair for a credential and stores it.
func (a *API) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var out AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return AuthResult{}, err
	}
	a.SetToken(out.Token)
	return out, nil
}

// Profile returns the authenticated user.
func (a *API) Profile(ctx context.Context) (user.User, error) {
	var out struct {
		User user.User `json:"user"`
	}
	err := a.do(ctx, http.MethodGet, "/api/auth/profile", nil, &out)
	return out.User, err
}

// SearchUsers finds other users whose username or email contains query.
func (a *API) SearchUsers(ctx context.Context, query string) ([]user.User, error) {
	var out struct {
		Users []user.User `json:"users"`
	}
	err := a.do(ctx, http.MethodGet, "/api/users/search?query="+url.QueryEscape(query), nil, &out)
	return out.Users, err
}

// GetUser fetches a user by id.
func (a *API) GetUser(ctx context.Context, id string) (user.User, error) {
	var out struct {
		User user.User `json:"user"`
	}
	err := a.do(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), nil, &out)
	return out.User, err
}

// ListConversations returns the caller's conversations, most recent first.
func (a *API) ListConversations(ctx context.Context) ([]message.ConversationView, error) {
	var out struct {
		Conversations []message.ConversationView `json:"conversations"`
	}
	err := a.do(ctx, http.MethodGet, "/api/messages/conversations", nil, &out)
	return out.Conversations, err
}

// FindOrCreateConversation returns the conversation with otherUserID.
func (a *API) FindOrCreateConversation(ctx context.Context, otherUserID string) (message.ConversationView, error) {
	var out struct {
		Conversation message.ConversationView `json:"conversation"`
	}
	err := a.do(ctx, http.MethodGet, "/api/messages/conversations/user/"+url.PathEscape(otherUserID), nil, &out)
	return out.Conversation, err
}

// History returns a conversation's messages in send order.
func (a *API) History(ctx context.Context, conversationID string) ([]message.View, error) {
	var out struct {
		Messages []message.View `json:"messages"`
	}
	err := a.do(ctx, http.MethodGet, "/api/messages/conversations/"+url.PathEscape(conversationID)+"/messages", nil, &out)
	return out.Messages, err
}

// MarkRead marks the caller's received messages in a conversation as read.
func (a *API) MarkRead(ctx context.Context, conversationID string) (int64, error) {
	var out struct {
		UpdatedCount int64 `json:"updatedCount"`
	}
	err := a.do(ctx, http.MethodPut, "/api/messages/conversations/"+url.PathEscape(conversationID)+"/read", nil, &out)
	return out.UpdatedCount, err
}

// SendDirect posts a message to a conversation.
func (a *API) SendDirect(ctx context.Context, conversationID, content string) (message.View, error) {
	var out struct {
		Message message.View `json:"message"`
	}
	body := map[string]string{"conversationId": conversationID, "content": content}
	err := a.do(ctx, http.MethodPost, "/api/messages/direct", body, &out)
	return out.Message, err
}

// RoomHistory returns a room's messages in send order.
func (a *API) RoomHistory(ctx context.Context, roomID string) ([]message.View, error) {
	var out struct {
		Messages []message.View `json:"messages"`
	}
	err := a.do(ctx, http.MethodGet, "/api/messages/rooms/"+url.PathEscape(roomID), nil, &out)
	return out.Messages, err
}

// SendRoom posts a message to a room.
func (a *API) SendRoom(ctx context.Context, roomID, content string) (message.View, error) {
	var out struct {
		Message message.View `json:"message"`
	}
	body := map[string]string{"roomId": roomID, "content": content}
	err := a.do(ctx, http.MethodPost, "/api/messages/rooms", body, &out)
	return out.Message, err
}

// do sends one request and decodes the envelope's data into out. Failed envelopes
// come back as *errs.CustomError so callers can match them with errors.Is.
func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := a.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decode response (HTTP %d): %w", method, path, res.StatusCode, err)
	}

	if !env.Success || res.StatusCode >= http.StatusBadRequest {
		return &errs.CustomError{
			Code:    env.Code,
			Message: env.Message,
			Status:  res.StatusCode,
			Detail:  env.Error,
		}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: decode data: %w", method, path, err)
	}
	return nil
}
