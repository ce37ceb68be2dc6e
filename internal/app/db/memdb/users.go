package memdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"duochat/internal/app/user"
)

// CreateUser inserts a user with a fresh id.
func (db *DB) CreateUser(_ context.Context, nu user.NewUser) (user.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	email := user.NormalizeEmail(nu.Email)
	if _, taken := db.emails[email]; taken {
		return user.User{}, user.ErrDuplicateEmail
	}
	if _, taken := db.usernames[nu.Username]; taken {
		return user.User{}, user.ErrDuplicateUsername
	}

	now := db.now().UTC()
	acc := user.Account{
		User: user.User{
			ID:        uuid.NewString(),
			Username:  nu.Username,
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		},
		PasswordHash: nu.PasswordHash,
	}

	db.users[acc.ID] = acc
	db.emails[email] = acc.ID
	db.usernames[acc.Username] = acc.ID
	return acc.User, nil
}

// GetUserByID returns user.ErrNotFound for unknown ids.
func (db *DB) GetUserByID(_ context.Context, id string) (user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	acc, ok := db.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return acc.User, nil
}

// GetAccountByEmail returns the login record for email.
func (db *DB) GetAccountByEmail(_ context.Context, email string) (user.Account, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, ok := db.emails[user.NormalizeEmail(email)]
	if !ok {
		return user.Account{}, user.ErrNotFound
	}
	return db.users[id], nil
}

// SearchUsers returns up to limit users matching query, ordered by username.
func (db *DB) SearchUsers(_ context.Context, query, excludeID string, limit int) ([]user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	matches := make([]user.User, 0)
	for id, acc := range db.users {
		if id == excludeID {
			continue
		}
		if user.MatchesQuery(acc.User, query) {
			matches = append(matches, acc.User)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Username < matches[j].Username
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// UpdateProfilePic sets the avatar reference.
func (db *DB) UpdateProfilePic(_ context.Context, id, profilePic string) (user.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	acc, ok := db.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	acc.ProfilePic = profilePic
	acc.UpdatedAt = db.now().UTC()
	db.users[id] = acc
	return acc.User, nil
}

// senderSummary must be called with mu held.
func (db *DB) senderSummary(id string) user.Summary {
	if acc, ok := db.users[id]; ok {
		return acc.Summary()
	}
	return user.Summary{ID: id}
}
