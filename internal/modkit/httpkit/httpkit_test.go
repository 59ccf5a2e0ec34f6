package httpkit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	phttp "penwatch/internal/platform/net/http"
	"penwatch/internal/platform/net/middleware"

	"github.com/go-chi/chi/v5"
)

type sayIn struct {
	Message string `json:"message" validate:"required"`
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()
	m := chi.NewRouter()
	MountAPIV1(phttp.AdaptChi(m), CommonStack(), func(api Router) {
		Get(api, "/status", func(*http.Request) (any, error) { return map[string]bool{"paused": false}, nil })
		Post(api, "/pause", func(r *http.Request) (any, error) { return Accepted(Actor(r, "admin")), nil })
		Post(api, "/boom", func(*http.Request) (any, error) { return nil, errors.New("boom") })
		PostJSON(api, "/text", func(_ *http.Request, in sayIn) (any, error) { return OK(in.Message), nil })
		Get(api, "/panic", func(*http.Request) (any, error) { panic("bad handler") })
	})
	return m
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr map[string]string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env Envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %q: %v", rec.Body.String(), err)
		}
	}
	return rec, env
}

func TestMountAPIV1_Routes(t *testing.T) {
	h := testRouter(t)

	cases := []struct {
		name, method, path, body string
		hdr                      map[string]string
		status                   int
		data                     any
	}{
		{"get", http.MethodGet, "/api/v1/status", "", nil, http.StatusOK, map[string]any{"paused": false}},
		{"trailing slash", http.MethodGet, "/api/v1/status/", "", nil, http.StatusOK, map[string]any{"paused": false}},
		{"post default actor", http.MethodPost, "/api/v1/pause", "", nil, http.StatusAccepted, "admin"},
		{"post stamped actor", http.MethodPost, "/api/v1/pause", "", map[string]string{middleware.ActorHeader: "night-shift"}, http.StatusAccepted, "night-shift"},
		{"json body", http.MethodPost, "/api/v1/text", `{"message":"hi"}`, nil, http.StatusOK, "hi"},
		{"json invalid", http.MethodPost, "/api/v1/text", `{}`, nil, http.StatusBadRequest, nil},
		{"handler error", http.MethodPost, "/api/v1/boom", "", nil, http.StatusInternalServerError, nil},
		{"panic", http.MethodGet, "/api/v1/panic", "", nil, http.StatusInternalServerError, nil},
		{"outside scope", http.MethodGet, "/status", "", nil, http.StatusNotFound, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := do(t, h, tc.method, tc.path, tc.body, tc.hdr)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			if tc.data == nil {
				return
			}
			got, _ := json.Marshal(env.Data)
			want, _ := json.Marshal(tc.data)
			if string(got) != string(want) {
				t.Fatalf("data = %s, want %s", got, want)
			}
			if env.RequestID == "" {
				t.Fatal("request id not stamped")
			}
		})
	}
}

func TestMountAPI_VersionTrimmed(t *testing.T) {
	m := chi.NewRouter()
	MountAPI(phttp.AdaptChi(m), "/v2/", nil, func(api Router) {
		Get(api, "/ping", func(*http.Request) (any, error) { return "pong", nil })
	})
	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v2/ping", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
