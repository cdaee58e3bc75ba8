package identity_test

import (
	"testing"

	"sieve/internal/identity"
)

const token = "0123456789abcdef0123456789abcdef"

func TestExtract(t *testing.T) {
	cases := []struct {
		name string
		path string
		want string
		ok   bool
	}{
		{"dotted suffix", "radio/Artist - Title." + token + ".mka", token, true},
		{"upper case", "Title." + "0123456789ABCDEF0123456789ABCDEF" + ".mka", token, true},
		{"leading", token + "_Title.mka", token, true},
		{"whole name", token, token, true},
		{"windows separator", `Z:\radio\mez3\Title-` + token + ".opus", token, true},
		{"directory token ignored", "music/" + token + "/Title.mka", "", false},
		{"too short", "Title.0123456789abcdef0123456789abcde.mka", "", false},
		{"too long", "Title.0123456789abcdef0123456789abcdef0.mka", "", false},
		{"no token", "plain title.mka", "", false},
		{"empty", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := identity.Extract(tc.path)
			if ok != tc.ok || got != tc.want {
				t.Fatalf("Extract(%q) = (%q, %v), want (%q, %v)", tc.path, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestExtractReturnsFirstRun(t *testing.T) {
	second := "ffffffffffffffffffffffffffffffff"
	got, ok := identity.Extract(token + "-" + second + ".mka")
	if !ok || got != token {
		t.Fatalf("expected first token, got %q", got)
	}
}

func TestExtractSkipsOverlongRunBeforeValidOne(t *testing.T) {
	got, ok := identity.Extract("0123456789abcdef0123456789abcdef01." + token + ".mka")
	if !ok || got != token {
		t.Fatalf("expected second run, got %q %v", got, ok)
	}
}

func TestKeyFallsBackToPath(t *testing.T) {
	if got := identity.Key("a.mka"); got != "a.mka" {
		t.Fatalf("expected path fallback, got %q", got)
	}
	if got := identity.Key("A." + token + ".mka"); got != token {
		t.Fatalf("expected token key, got %q", got)
	}
}

func TestIsToken(t *testing.T) {
	if !identity.IsToken(token) {
		t.Fatal("expected token to be recognised")
	}
	if identity.IsToken("a.mka") || identity.IsToken(token+"0") {
		t.Fatal("unexpected token match")
	}
}
