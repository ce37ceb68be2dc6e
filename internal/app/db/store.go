package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"duochat/internal/app/message"
	"duochat/internal/app/user"
)

// querier is the subset of pgxpool.Pool and pgx.Tx the queries need.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements user.Store and message.Store on PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ user.Store    = (*Store)(nil)
	_ message.Store = (*Store)(nil)
)

// NewStore wraps an open pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const userColumns = `id::text, username, email, profile_pic, created_at, updated_at`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.ProfilePic, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUser inserts a user and maps unique violations to the duplicate sentinels.
func (s *Store) CreateUser(ctx context.Context, nu user.NewUser) (user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		nu.Username, user.NormalizeEmail(nu.Email), nu.PasswordHash,
	))
	if err != nil {
		if IsUniqueViolation(err) {
			switch ConstraintName(err) {
			case constraintUsersEmail:
				return user.User{}, user.ErrDuplicateEmail
			case constraintUsersUsername:
				return user.User{}, user.ErrDuplicateUsername
			}
		}
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

// GetUserByID returns user.ErrNotFound for unknown or malformed ids.
func (s *Store) GetUserByID(ctx context.Context, id string) (user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1::uuid`, id))
	if errors.Is(err, pgx.ErrNoRows) || IsInvalidInput(err) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

// GetAccountByEmail returns the user and password hash for a login.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (user.Account, error) {
	var acc user.Account
	err := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`, password_hash
		FROM users WHERE email = $1`,
		user.NormalizeEmail(email),
	).Scan(&acc.ID, &acc.Username, &acc.Email, &acc.ProfilePic, &acc.CreatedAt, &acc.UpdatedAt, &acc.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.Account{}, user.ErrNotFound
	}
	if err != nil {
		return user.Account{}, fmt.Errorf("select account: %w", err)
	}
	return acc, nil
}

// SearchUsers matches query as a case-insensitive substring of username or email.
func (s *Store) SearchUsers(ctx context.Context, query, excludeID string, limit int) ([]user.User, error) {
	pattern := "%" + escapeLike(query) + "%"

	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id::text <> $2
		  AND (username ILIKE $1 ESCAPE '\' OR email ILIKE $1 ESCAPE '\')
		ORDER BY username
		LIMIT $3`,
		pattern, excludeID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	users := make([]user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// UpdateProfilePic stores a new avatar reference.
func (s *Store) UpdateProfilePic(ctx context.Context, id, profilePic string) (user.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
		UPDATE users SET profile_pic = $2, updated_at = now()
		WHERE id = $1::uuid
		RETURNING `+userColumns,
		id, profilePic,
	))
	if errors.Is(err, pgx.ErrNoRows) || IsInvalidInput(err) {
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, fmt.Errorf("update profile pic: %w", err)
	}
	return u, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike neutralizes LIKE metacharacters so the query is matched literally.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
