/*
Package handler provides the HTTP handlers and routing setup for the chat server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to specific handlers (API and WebSocket).
*/
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"duochat/internal/pkg/auth/jwt"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/limiter"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/metrics"
	"duochat/internal/pkg/resp"
)

const (
	AuthRate       = 0.2
	AuthBurst      = 10
	HandshakeRate  = 0.5
	HandshakeBurst = 10
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// ctx bounds the background sweepers of the IP limiters.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(AuthRate), AuthBurst)
	handshakeLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(HandshakeRate), HandshakeBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		Subprotocols:    []string{jwt.WebSocketProtocolBearer},
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				// Non-browser clients send no Origin.
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	health := HandleHealth(deps)
	r.Get("/health", health)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Get("/health", health)

		api.Route("/auth", func(auth chi.Router) {
			auth.With(authLimiter.Middleware).Post("/register", HandleRegister(deps))
			auth.With(authLimiter.Middleware).Post("/login", HandleLogin(deps))
			auth.Get("/profile", HandleGetProfile(deps))
		})

		api.Group(func(protected chi.Router) {
			protected.Use(jwt.RequireIdentity)

			protected.Route("/messages", func(m chi.Router) {
				m.Get("/conversations", HandleListConversations(deps))
				m.Get("/conversations/user/{id}", HandleFindOrCreateConversation(deps))
				m.Get("/conversations/{id}/messages", HandleConversationHistory(deps))
				m.Put("/conversations/{id}/read", HandleMarkConversationRead(deps))
				m.Post("/direct", HandleSendDirectMessage(deps))
				m.Get("/rooms/{roomId}", HandleRoomHistory(deps))
				m.Post("/rooms", HandleSendRoomMessage(deps))
			})

			protected.Route("/users", func(u chi.Router) {
				u.Get("/search", HandleSearchUsers(deps))
				u.Post("/avatar/presign", HandlePresignAvatarURL(deps))
				u.Put("/profile", HandleUpdateProfile(deps))
				u.Get("/{id}", HandleGetUser(deps))
			})
		})
	})

	ws := HandleWebSocket(deps, wsUpgrader, handshakeLimiter)
	r.Get("/ws", ws)
	r.Get("/socket", ws)

	return r
}

const healthTimeout = 2 * time.Second

// HandleHealth reports liveness, and readiness of the database when one is configured.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.DB != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()

			if err := deps.DB.Ping(ctx); err != nil {
				logx.Error(err, "Health check: database ping failed")
				resp.RespondError(w, r, errs.NewError(errs.ErrDatabaseUnavailable))
				return
			}
		}

		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "duochat",
		})
	}
}
