/*
Package user contains the identity data the chat core depends on.

Users are owned by the identity side of the system (registration and login);
conversations and messages only ever reference them by id. This package defines
the User representations, the Store contract a persistence layer must satisfy,
and the input normalization rules shared by every Store implementation.
*/
package user

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

// SearchLimit caps the number of users returned by a search.
const SearchLimit = 10

var (
	// ErrNotFound is returned when no user matches a lookup.
	ErrNotFound = errors.New("user not found")

	// ErrDuplicateEmail is returned when registering an email that is already taken.
	ErrDuplicateEmail = errors.New("email already exists")

	// ErrDuplicateUsername is returned when registering a username that is already taken.
	ErrDuplicateUsername = errors.New("username already exists")
)

var (
	emailRegex    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	usernameRegex = regexp.MustCompile(`^[A-Za-z0-9_.\-]{2,32}$`)
)

// User represents the public identity of a chat participant.
type User struct {
	ID         string    `json:"_id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Summary is the reduced identity attached to messages as their sender.
type Summary struct {
	ID         string `json:"_id"`
	Username   string `json:"username"`
	ProfilePic string `json:"profilePic"`
}

// Summary returns the sender view of u.
func (u User) Summary() Summary {
	return Summary{ID: u.ID, Username: u.Username, ProfilePic: u.ProfilePic}
}

// Account is a User together with its password hash. It never leaves the auth handlers.
type Account struct {
	User
	PasswordHash string
}

// NewUser holds the normalized fields for registering an account.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
}

// Store is the persistence contract for users.
type Store interface {
	// CreateUser inserts a user, returning ErrDuplicateEmail or ErrDuplicateUsername on conflict.
	CreateUser(ctx context.Context, nu NewUser) (User, error)

	// GetUserByID returns ErrNotFound when id is unknown.
	GetUserByID(ctx context.Context, id string) (User, error)

	// GetAccountByEmail looks up the login record for a normalized email.
	GetAccountByEmail(ctx context.Context, email string) (Account, error)

	// SearchUsers matches query case-insensitively as a substring of username or
	// email, never returns excludeID, and returns at most limit users.
	SearchUsers(ctx context.Context, query, excludeID string, limit int) ([]User, error)

	// UpdateProfilePic stores a new avatar reference and returns the updated user.
	UpdateProfilePic(ctx context.Context, id, profilePic string) (User, error)
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeUsername trims surrounding whitespace.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// IsValidEmail reports whether email looks like an address.
func IsValidEmail(email string) bool {
	return emailRegex.MatchString(email)
}

// IsValidUsername reports whether username fits the allowed pattern.
func IsValidUsername(username string) bool {
	return usernameRegex.MatchString(username)
}

// MatchesQuery is the reference semantics of SearchUsers for a single user.
func MatchesQuery(u User, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(u.Username), q) ||
		strings.Contains(strings.ToLower(u.Email), q)
}
