package user

import "testing"

func TestNormalization(t *testing.T) {
	if got := NormalizeEmail("  Alice@Example.COM "); got != "alice@example.com" {
		t.Fatalf("NormalizeEmail = %q", got)
	}
	if got := NormalizeUsername("  alice "); got != "alice" {
		t.Fatalf("NormalizeUsername = %q", got)
	}
}

func TestValidation(t *testing.T) {
	for email, want := range map[string]bool{
		"a@b.co":      true,
		"a.b+c@d.e.f": true,
		"no-at.com":   false,
		"a@b":         false,
		"a b@c.com":   false,
		"":            false,
	} {
		if got := IsValidEmail(email); got != want {
			t.Errorf("IsValidEmail(%q) = %v", email, got)
		}
	}

	for name, want := range map[string]bool{
		"al":                                  true,
		"alice_01":                            true,
		"a.l-i":                               true,
		"a":                                   false,
		"has space":                           false,
		"x9234567890123456789012345678901234": false,
	} {
		if got := IsValidUsername(name); got != want {
			t.Errorf("IsValidUsername(%q) = %v", name, got)
		}
	}
}

func TestMatchesQuery(t *testing.T) {
	u := User{Username: "Alice", Email: "wonder@land.io"}
	for q, want := range map[string]bool{
		"ali":  true,
		"LAND": true,
		"bob":  false,
		"":     true,
	} {
		if got := MatchesQuery(u, q); got != want {
			t.Errorf("MatchesQuery(%q) = %v", q, got)
		}
	}
	if u.Summary().Username != "Alice" {
		t.Fatal("Summary lost the username")
	}
}
