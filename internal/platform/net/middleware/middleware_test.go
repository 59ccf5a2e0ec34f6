package middleware_test

import (
	"compress/flate"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"penwatch/internal/platform/net/middleware"
)

func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TestRecoverJSON(t *testing.T) {
	boom := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("trigger exploded") })
	h := chain(boom, middleware.RequestID(), middleware.RecoverJSON)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/pause", nil)
	req.Header.Set("X-Request-Id", "rid-7")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Request-ID"); got != "rid-7" {
		t.Fatalf("request id header = %q", got)
	}
	var env struct {
		StatusCode int    `json:"status_code"`
		Error      string `json:"error"`
		RequestID  string `json:"request_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.StatusCode != 500 || env.Error != "panic recovered" || env.RequestID != "rid-7" {
		t.Fatalf("envelope = %+v", env)
	}
}

func TestAccessLog_PassesThrough(t *testing.T) {
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	}), middleware.AccessLog(middleware.AccessLogOptions{Slow: middleware.DefaultSlow}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rec.Code != http.StatusAccepted || rec.Body.String() != "ok" {
		t.Fatalf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestHeartbeat(t *testing.T) {
	h := chain(http.NotFoundHandler(), middleware.Heartbeat("/healthz"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCORS_Preflight(t *testing.T) {
	h := chain(http.NotFoundHandler(), middleware.CORS(middleware.CORSOptions{AllowedOrigins: []string{"https://ops.example"}}))

	cases := []struct {
		name, method, header string
		allowed              bool
	}{
		{"actor header", http.MethodPost, middleware.ActorHeader, true},
		{"get", http.MethodGet, "Content-Type", true},
		{"delete", http.MethodDelete, "Content-Type", false},
		{"authorization", http.MethodPost, "Authorization", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/pause", nil)
			req.Header.Set("Origin", "https://ops.example")
			req.Header.Set("Access-Control-Request-Method", tc.method)
			req.Header.Set("Access-Control-Request-Headers", tc.header)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get("Access-Control-Allow-Origin") == "https://ops.example"
			if got != tc.allowed {
				t.Fatalf("allowed = %v, want %v (headers %v)", got, tc.allowed, rec.Header())
			}
		})
	}
}

func TestCompressAndNoCache(t *testing.T) {
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}), middleware.NoCache(), middleware.Compress(flate.BestSpeed))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/peers", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("content encoding = %q", rec.Header().Get("Content-Encoding"))
	}
	if rec.Header().Get("Cache-Control") == "" {
		t.Fatal("no cache headers missing")
	}
}
