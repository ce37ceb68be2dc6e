package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNewErrorUsesMappedStatus(t *testing.T) {
	err := NewError(ErrNotParticipant)
	if err.Status != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", err.Status, http.StatusForbidden)
	}

	err = NewError(ErrInvalidID, "conversation")
	if err.Message != "Invalid conversation ID." {
		t.Fatalf("message = %q", err.Message)
	}

	err = NewError(424242)
	if err.Code != ErrUnknown || err.Status != http.StatusInternalServerError {
		t.Fatalf("unknown code mapped to %+v", err)
	}
}

func TestEveryCodeHasAMessage(t *testing.T) {
	for code, e := range errorMap {
		if e.Code != code {
			t.Errorf("errorMap[%d].Code = %d", code, e.Code)
		}
		if e.Message == "" {
			t.Errorf("errorMap[%d] has no message", code)
		}
		if e.Status < 400 {
			t.Errorf("errorMap[%d] has non-error status %d", code, e.Status)
		}
	}
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("send: %w", NewError(ErrNotParticipant).WithDetail("x"))

	if !errors.Is(wrapped, NewError(ErrNotParticipant)) {
		t.Fatal("expected wrapped error to match by code")
	}
	if errors.Is(wrapped, NewError(ErrSelfConversation)) {
		t.Fatal("different codes must not match")
	}
}

func TestWithDetailCopies(t *testing.T) {
	base := NewError(ErrInvalidParams)
	detailed := base.WithDetail("content failed on 'required'")

	if base.Detail != "" {
		t.Fatalf("WithDetail mutated the receiver: %q", base.Detail)
	}
	if detailed.Detail != "content failed on 'required'" || detailed.Code != ErrInvalidParams {
		t.Fatalf("unexpected copy %+v", detailed)
	}
}

func TestFrom(t *testing.T) {
	if From(nil) != nil {
		t.Fatal("From(nil) must be nil")
	}

	got := From(fmt.Errorf("wrap: %w", NewError(ErrEmailTaken)))
	if got.Code != ErrEmailTaken {
		t.Fatalf("code = %d, want %d", got.Code, ErrEmailTaken)
	}

	got = From(errors.New("boom"))
	if got.Code != ErrUnknown || got.Status != http.StatusInternalServerError {
		t.Fatalf("plain error mapped to %+v", got)
	}
}
