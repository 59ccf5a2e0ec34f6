package logger

import (
	"bytes"
	"context"
	"testing"

	kit "penwatch/internal/platform/testkit"

	"github.com/rs/zerolog"
)

func TestLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"DEBUG":   zerolog.DebugLevel,
		" warn ":  zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"verbose": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := Level(in); got != want {
			t.Fatalf("Level(%q) = %v, want %v", in, got, want)
		}
	}
}

// Init is process wide so every assertion on the root writer lives here
func TestInit_NamedAndRequestFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{
		Level:   "debug",
		Format:  "json",
		Service: "penwatch",
		Writer:  &buf,
		Fields:  map[string]string{"version": "test"},
	})

	Named("intake").Info().Uint64("seq", 7).Msg("frame stored")
	ctx := WithRequest(context.Background(), "req-1", "alice")
	C(ctx).Info().Msg("pause requested")
	C(context.Background()).Debug().Msg("no request")

	out := buf.String()
	for _, want := range []string{
		`"service":"penwatch"`,
		`"version":"test"`,
		`"component":"intake"`,
		`"seq":7`,
		`"request_id":"req-1"`,
		`"actor":"alice"`,
		"no request",
	} {
		kit.MustContain(t, out, want)
	}

	// a second Init is ignored
	Init(Options{Level: "error", Writer: &bytes.Buffer{}})
	Get().Info().Msg("still here")
	kit.MustContain(t, buf.String(), "still here")
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_CALLER", "true")

	opt := FromEnv()
	if opt.Level != "warn" || opt.Format != "json" || !opt.Caller || opt.Service != "penwatch" {
		t.Fatalf("FromEnv = %+v", opt)
	}
}
