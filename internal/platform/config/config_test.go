package config

import (
	"slices"
	"testing"
	"time"

	"penwatch/internal/platform/testkit"
)

func TestPrefix(t *testing.T) {
	c := New().Prefix("PW_").Prefix("PG_")
	if got := c.Key("DBURL"); got != "PW_PG_DBURL" {
		t.Fatalf("Key = %q", got)
	}
}

func TestMayScalars(t *testing.T) {
	t.Setenv("PWCFG_NAME", "  penwatch ")
	t.Setenv("PWCFG_WORKERS", "8")
	t.Setenv("PWCFG_BAD_INT", "eight")
	t.Setenv("PWCFG_ON", "true")
	t.Setenv("PWCFG_BAD_BOOL", "sure")
	t.Setenv("PWCFG_WAIT", "250ms")
	t.Setenv("PWCFG_BAD_WAIT", "soon")
	t.Setenv("PWCFG_BLANK", "   ")
	c := New().Prefix("PWCFG_")

	if got := c.MayString("NAME", "x"); got != "penwatch" {
		t.Fatalf("MayString = %q", got)
	}
	if got := c.MayString("BLANK", "def"); got != "def" {
		t.Fatalf("blank MayString = %q", got)
	}

	ints := []struct {
		key  string
		want int
	}{{"WORKERS", 8}, {"BAD_INT", 3}, {"MISSING", 3}}
	for _, tc := range ints {
		if got := c.MayInt(tc.key, 3); got != tc.want {
			t.Fatalf("MayInt(%s) = %d, want %d", tc.key, got, tc.want)
		}
	}

	if !c.MayBool("ON", false) || !c.MayBool("BAD_BOOL", true) || c.MayBool("MISSING", false) {
		t.Fatal("MayBool")
	}

	durs := []struct {
		key  string
		want time.Duration
	}{{"WAIT", 250 * time.Millisecond}, {"BAD_WAIT", time.Second}, {"MISSING", time.Second}}
	for _, tc := range durs {
		if got := c.MayDuration(tc.key, time.Second); got != tc.want {
			t.Fatalf("MayDuration(%s) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestMayCSV(t *testing.T) {
	t.Setenv("PWCFG_ARGS", " --model, yolo.pt ,, --conf ")
	t.Setenv("PWCFG_EMPTY", " , ,")
	c := New().Prefix("PWCFG_")

	if got := c.MayCSV("ARGS", nil); !slices.Equal(got, []string{"--model", "yolo.pt", "--conf"}) {
		t.Fatalf("MayCSV = %q", got)
	}
	def := []string{"a"}
	if got := c.MayCSV("EMPTY", def); !slices.Equal(got, def) {
		t.Fatalf("all-blank MayCSV = %q", got)
	}
}

func TestMayEnum(t *testing.T) {
	t.Setenv("PWCFG_MODE", "Cue")
	t.Setenv("PWCFG_BAD", "telepathy")
	c := New().Prefix("PWCFG_")

	if got := c.MayEnum("MODE", "noop", "noop", "cue"); got != "Cue" {
		t.Fatalf("MayEnum = %q", got)
	}
	if got := c.MayEnum("MISSING", "noop", "noop", "cue"); got != "noop" {
		t.Fatalf("unset MayEnum = %q", got)
	}
	testkit.MustPanic(t, func() { c.MayEnum("BAD", "noop", "noop", "cue") })
}

func TestMustStringAndRequire(t *testing.T) {
	t.Setenv("PWCFG_A", "1")
	t.Setenv("PWCFG_B", " ")
	c := New().Prefix("PWCFG_")

	if c.MustString("A") != "1" {
		t.Fatal("MustString")
	}
	c.Require("A")
	testkit.MustPanic(t, func() { c.MustString("B") })
	testkit.MustPanic(t, func() { c.Require("A", "MISSING") })
}
