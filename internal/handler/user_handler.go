package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"duochat/internal/app/storage"
	"duochat/internal/app/user"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/req"
	"duochat/internal/pkg/resp"
)

// avatarDeleteTimeout bounds the background removal of a replaced avatar.
const avatarDeleteTimeout = 10 * time.Second

type UpdateProfileInput struct {
	// ProfilePic is the object key returned by the avatar presign endpoint.
	ProfilePic string `json:"profilePic" validate:"required"`
}

// HandleSearchUsers matches users by username or email, excluding the caller.
func HandleSearchUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := requirePayload(w, r)
		if !ok {
			return
		}

		query := strings.TrimSpace(r.URL.Query().Get("query"))
		if query == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrMissingQuery))
			return
		}

		users, err := deps.Users.SearchUsers(r.Context(), query, payload.ID, user.SearchLimit)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"users": users})
	}
}

// HandleGetUser returns any user's public record.
func HandleGetUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requirePayload(w, r); !ok {
			return
		}

		id, customErr := parseID(chi.URLParam(r, "id"), "user")
		if customErr != nil {
			// Ids that can never exist are simply unknown users.
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		u, err := deps.Users.GetUserByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"user": u})
	}
}

// HandleUpdateProfile points the caller's avatar at a freshly uploaded object and
// removes the previous one in the background.
func HandleUpdateProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := requirePayload(w, r)
		if !ok {
			return
		}

		if deps.Storage == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrStorageUnavailable))
			return
		}

		var input UpdateProfileInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		key := strings.TrimSpace(input.ProfilePic)
		if !storage.IsOwnAvatarKey(payload.ID, key) {
			resp.RespondError(w, r, errs.NewError(errs.ErrAvatarKeyInvalid))
			return
		}

		info, err := deps.Storage.Stat(r.Context(), key)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrAvatarKeyInvalid).WithDetail("object has not been uploaded"))
				return
			}
			resp.RespondError(w, r, errs.NewError(errs.ErrFileStorageFailed))
			return
		}
		if _, allowed := storage.AllowedMIMETypes[strings.ToLower(info.ContentType)]; !allowed {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileTypeInvalid))
			return
		}
		if info.Size > storage.MaxAvatarSize {
			resp.RespondError(w, r, errs.NewError(errs.ErrFileSizeTooLarge))
			return
		}

		oldUser, err := deps.Users.GetUserByID(r.Context(), payload.ID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			resp.RespondErr(w, r, err)
			return
		}

		updatedUser, err := deps.Users.UpdateProfilePic(r.Context(), payload.ID, deps.Storage.PublicURL(key))
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		if oldKey, ok := deps.Storage.KeyFromURL(oldUser.ProfilePic); ok && oldKey != key {
			go func(k string) {
				ctx, cancel := context.WithTimeout(context.Background(), avatarDeleteTimeout)
				defer cancel()
				if err := deps.Storage.Delete(ctx, k); err != nil {
					logx.Warn("Failed to delete replaced avatar", "key", k, "error", err.Error())
				}
			}(oldKey)
		}

		resp.RespondSuccess(w, r, map[string]any{"user": updatedUser})
	}
}
