package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"duochat/internal/pkg/errs"
)

func TestErrorClassification(t *testing.T) {
	unique := fmt.Errorf("insert: %w", &pgconn.PgError{Code: codeUniqueViolation, ConstraintName: constraintUsersEmail})

	if !IsUniqueViolation(unique) || IsForeignKeyViolation(unique) {
		t.Fatal("unique violation misclassified")
	}
	if got := ConstraintName(unique); got != constraintUsersEmail {
		t.Fatalf("ConstraintName = %q", got)
	}
	if !IsInvalidInput(&pgconn.PgError{Code: codeInvalidText}) {
		t.Fatal("invalid text not detected")
	}
	if !IsCheckViolation(&pgconn.PgError{Code: codeCheckViolation}) {
		t.Fatal("check violation not detected")
	}

	plain := errors.New("boom")
	if IsUniqueViolation(plain) || ConstraintName(plain) != "" {
		t.Fatal("non-postgres errors must not classify")
	}
}

func TestCheckErrorMapsConstraints(t *testing.T) {
	tests := []struct {
		constraint string
		want       int
	}{
		{constraint: constraintDistinctParticipants, want: errs.ErrSelfConversation},
		{constraint: constraintContentPresent, want: errs.ErrEmptyContent},
		{constraint: "messages_single_target", want: errs.ErrInvalidParams},
	}

	for _, tt := range tests {
		err := checkError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: codeCheckViolation, ConstraintName: tt.constraint}))
		if !errors.Is(err, errs.NewError(tt.want)) {
			t.Errorf("%s mapped to %v, want code %d", tt.constraint, err, tt.want)
		}
	}

	plain := errors.New("boom")
	if checkError(plain) != plain {
		t.Fatal("non-check errors must pass through")
	}
}

func TestEscapeLike(t *testing.T) {
	for in, want := range map[string]string{
		"alice":   "alice",
		"50%":     `50\%`,
		"a_b":     `a\_b`,
		`back\sl`: `back\\sl`,
	} {
		if got := escapeLike(in); got != want {
			t.Errorf("escapeLike(%q) = %q, want %q", in, got, want)
		}
	}
}
