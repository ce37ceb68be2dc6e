package randx

import (
	"strings"
	"testing"
)

func TestBase62(t *testing.T) {
	s, err := Base62(32)
	if err != nil {
		t.Fatalf("Base62: %v", err)
	}
	if len(s) != 32 {
		t.Fatalf("len = %d, want 32", len(s))
	}
	for _, c := range s {
		if !strings.ContainsRune(Base62Chars, c) {
			t.Fatalf("unexpected character %q", c)
		}
	}
}

func TestTempID(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		id, err := TempID()
		if err != nil {
			t.Fatalf("TempID: %v", err)
		}
		if !IsTempID(id) {
			t.Fatalf("IsTempID(%q) = false", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestIsTempID(t *testing.T) {
	for _, id := range []string{
		"",
		"tmp_",
		"tmp_short",
		"tmp_4fZk09QbXa1cX",
		"tmp_4fZk09QbXa-c",
		"4fZk09QbXa1c",
		"550e8400-e29b-41d4-a716-446655440000",
	} {
		if IsTempID(id) {
			t.Errorf("IsTempID(%q) = true", id)
		}
	}
	if !IsTempID("tmp_4fZk09QbXa1c") {
		t.Error("expected a well-formed temp id to match")
	}
}
