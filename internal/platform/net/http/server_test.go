package http_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"penwatch/internal/platform/config"
	phttp "penwatch/internal/platform/net/http"
	"penwatch/internal/platform/testkit"

	"github.com/go-chi/chi/v5"
)

func TestNewServer_DefaultsAndOptions(t *testing.T) {
	hooked := false
	srv := phttp.NewServer(config.New().Prefix("PW_TEST_HTTP_"), func(m *chi.Mux) {
		hooked = true
		m.Use(tag("root"))
	})
	if !hooked {
		t.Fatal("option not applied")
	}
	if srv.Addr() != ":4000" {
		t.Fatalf("addr = %q", srv.Addr())
	}

	srv.Router().Get("/ping", write("pong"))
	rec := httptest.NewRecorder()
	srv.Router().Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Body.String() != "pong" || rec.Header().Get("X-Layer") != "root" {
		t.Fatalf("got %q headers=%v", rec.Body.String(), rec.Header())
	}
}

func TestServer_RunStopsWithContext(t *testing.T) {
	t.Setenv("PW_TEST_HTTP_API_PORT", "127.0.0.1:0")
	srv := phttp.NewServer(config.New().Prefix("PW_TEST_HTTP_"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	cancel()
	if err := testkit.Receive(t, done, 2*time.Second); err != nil {
		t.Fatalf("Run = %v", err)
	}
}

func TestServer_RunReportsBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	t.Setenv("PW_TEST_HTTP_API_PORT", ln.Addr().String())
	srv := phttp.NewServer(config.New().Prefix("PW_TEST_HTTP_"))
	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected bind error")
	}
}
