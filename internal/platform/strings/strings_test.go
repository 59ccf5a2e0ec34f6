package strings

import (
	"testing"
	"unicode/utf8"

	"penwatch/internal/platform/testkit"
)

func TestIfEmpty(t *testing.T) {
	def := []string{"GET"}
	if got := IfEmpty(nil, def); len(got) != 1 || got[0] != "GET" {
		t.Fatalf("nil input = %v", got)
	}
	if got := IfEmpty([]string{"POST", "PUT"}, def); len(got) != 2 {
		t.Fatalf("non empty input replaced: %v", got)
	}
}

func TestMustPrefix(t *testing.T) {
	cases := map[string]string{
		"admin":     "/admin",
		"/admin/":   "/admin",
		" //meta ":  "/meta",
		"/api/v1":   "/api/v1",
		"/api/v1//": "/api/v1",
	}
	for in, want := range cases {
		if got := MustPrefix(in); got != want {
			t.Fatalf("MustPrefix(%q) = %q, want %q", in, got, want)
		}
	}
	testkit.MustPanic(t, func() { MustPrefix(" / ") })
}

func TestClip(t *testing.T) {
	cases := []struct {
		in   string
		n    int
		want string
	}{
		{"resume", 10, "resume"},
		{"resume", 3, "res"},
		{"resume", 0, ""},
		{"héllo", 2, "h"}, // é is two bytes
		{"héllo", 3, "hé"},
		{"日本", 4, "日"},
	}
	for _, tc := range cases {
		got := Clip(tc.in, tc.n)
		if got != tc.want || !utf8.ValidString(got) {
			t.Fatalf("Clip(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}
