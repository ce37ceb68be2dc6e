/*
Package handler provides HTTP handler functions for user authentication and management.
*/
package handler

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"duochat/internal/app/user"
	"duochat/internal/pkg/auth/jwt"
	"duochat/internal/pkg/errs"
	"duochat/internal/pkg/logx"
	"duochat/internal/pkg/req"
	"duochat/internal/pkg/resp"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

// HandleRegister creates an account and signs the caller in.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input RegisterInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		username := user.NormalizeUsername(input.Username)
		email := user.NormalizeEmail(input.Email)
		if username == "" || email == "" || input.Password == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrMissingRegistrationFields))
			return
		}

		if !user.IsValidEmail(email) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidEmail))
			return
		}

		if !user.IsValidUsername(username) {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		}

		if len(input.Password) > maxPasswordBytes || strings.TrimSpace(input.Password) == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		u, err := deps.Users.CreateUser(r.Context(), user.NewUser{
			Username:     username,
			Email:        email,
			PasswordHash: string(hashedPassword),
		})
		if err != nil {
			switch {
			case errors.Is(err, user.ErrDuplicateEmail):
				resp.RespondError(w, r, errs.NewError(errs.ErrEmailTaken))
			case errors.Is(err, user.ErrDuplicateUsername):
				resp.RespondError(w, r, errs.NewError(errs.ErrUsernameTaken))
			default:
				logx.Error(err, "Failed to create user", "username", username)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			}
			return
		}

		token, err := issueToken(deps, u)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		logx.Info("User registered", "user_id", u.ID, "username", u.Username)
		resp.RespondCreated(w, r, AuthResult{Token: token, User: u})
	}
}

// HandleLogin verifies an email/password pair and issues a credential.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		account, err := deps.Users.GetAccountByEmail(r.Context(), user.NormalizeEmail(input.Email))
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
				return
			}
			logx.Error(err, "Failed to load account for login")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(input.Password)); err != nil {
			logx.Warn("Login failed: password mismatch", "user_id", account.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		token, err := issueToken(deps, account.User)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		resp.RespondSuccess(w, r, AuthResult{Token: token, User: account.User})
	}
}

// HandleGetProfile returns the caller's own user record.
func HandleGetProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := requirePayload(w, r)
		if !ok {
			return
		}

		u, err := deps.Users.GetUserByID(r.Context(), payload.ID)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				// The credential outlived its account.
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"user": u})
	}
}

func issueToken(deps *AppDeps, u user.User) (string, error) {
	return jwt.GenerateToken(&jwt.Payload{ID: u.ID, Username: u.Username}, deps.Config.JWTSecret, deps.Config.JWTTTL)
}
