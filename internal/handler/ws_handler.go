/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

HandleWebSocket rate limits the handshake, authenticates the credential against the
user store before upgrading, and then hands the connection to the chat Hub.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"

	"duochat/internal/app/user"
	"duochat/internal/pkg/auth/jwt"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/limiter"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
func HandleWebSocket(deps *AppDeps, upgrader *websocket.Upgrader, rateLimiter *limiter.IPRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rateLimiter.AllowRequest(r) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", limiter.ClientIP(r))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		token := jwt.TokenFromRequest(r)
		if token == "" {
			logx.Info("WebSocket connection rejected: Missing credential")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		payload, err := jwt.ParseToken(token, deps.Config.JWTSecret)
		if err != nil {
			logx.Info("WebSocket connection rejected: Invalid credential", "error", err.Error())
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		u, err := deps.Users.GetUserByID(r.Context(), payload.ID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				logx.Info("WebSocket connection rejected: User not found", "user_id", payload.ID)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}
			resp.RespondErr(w, r, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket", "user_id", u.ID)
			return
		}

		logx.Info("WebSocket connection established", "user_id", u.ID, "username", u.Username)

		deps.Hub.Serve(conn, u)
	}
}
