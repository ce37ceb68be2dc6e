package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"duochat/internal/app/chat"
	"duochat/internal/app/message"
	"duochat/internal/app/storage"
	"duochat/internal/app/user"
	"duochat/internal/configs"
	"duochat/internal/pkg/auth/jwt"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/resp"
)

// Pinger reports whether a backing service answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// AppDeps bundles everything the handlers need. Storage is nil when S3 is not configured.
// DB is nil for the in-memory store.
type AppDeps struct {
	Config   *configs.AppConfig
	Users    user.Store
	Messages *message.Service
	Hub      *chat.Hub
	Storage  storage.StorageService
	DB       Pinger
}

// requirePayload returns the caller's identity or writes 401.
func requirePayload(w http.ResponseWriter, r *http.Request) (*jwt.Payload, bool) {
	payload := jwt.GetPayloadFromContext(r)
	if payload == nil {
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
		return nil, false
	}
	return payload, true
}

// parseID canonicalizes a uuid path parameter. kind names the entity in the error message.
func parseID(raw, kind string) (string, *errs.CustomError) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", errs.NewError(errs.ErrInvalidID, kind)
	}
	return id.String(), nil
}
