package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"duochat/internal/pkg/errs"
)

// PostgreSQL error codes the store translates into domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeInvalidText         = "22P02"
)

// Constraint names from the initial migration.
const (
	constraintUsersEmail    = "users_email_key"
	constraintUsersUsername = "users_username_key"

	constraintDistinctParticipants = "conversations_distinct_participants"
	constraintContentPresent       = "messages_content_present"
)

func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsUniqueViolation checks if the error is a PostgreSQL unique constraint violation (code 23505).
func IsUniqueViolation(err error) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == codeUniqueViolation
}

// IsForeignKeyViolation reports a reference to a missing row.
func IsForeignKeyViolation(err error) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == codeForeignKeyViolation
}

// IsCheckViolation reports a CHECK constraint failure.
func IsCheckViolation(err error) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == codeCheckViolation
}

// checkError maps CHECK violations of the schema to the matching domain error.
// Other errors are returned unchanged.
func checkError(err error) error {
	if !IsCheckViolation(err) {
		return err
	}
	switch ConstraintName(err) {
	case constraintDistinctParticipants:
		return errs.NewError(errs.ErrSelfConversation)
	case constraintContentPresent:
		return errs.NewError(errs.ErrEmptyContent)
	default:
		return errs.NewError(errs.ErrInvalidParams).WithDetail(ConstraintName(err))
	}
}

// IsInvalidInput reports a value Postgres could not parse, such as a malformed uuid.
func IsInvalidInput(err error) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == codeInvalidText
}

// ConstraintName returns the violated constraint, or "" for other errors.
func ConstraintName(err error) string {
	if pgErr, ok := pgError(err); ok {
		return pgErr.ConstraintName
	}
	return ""
}
