package http

import (
	stdctx "context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	phttp "penwatch/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

type pingFn func(stdctx.Context) error

func (f pingFn) Ping(ctx stdctx.Context) error { return f(ctx) }

func serve(t *testing.T, d Deps, path string) json.RawMessage {
	t.Helper()
	mux := chi.NewRouter()
	Register(phttp.AdaptChi(mux), d)

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET %s = %d body=%s", path, rr.Code, rr.Body.String())
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return env.Data
}

func TestHealth(t *testing.T) {
	data := serve(t, Deps{ServiceName: "penwatch", StartedAt: time.Now()}, "/health")
	var out HealthResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.OK || out.Service != "penwatch" {
		t.Fatalf("health = %+v", out)
	}
}

func TestReady(t *testing.T) {
	ok := pingFn(func(stdctx.Context) error { return nil })
	down := pingFn(func(stdctx.Context) error { return errors.New("connection refused") })

	cases := []struct {
		name   string
		pg, ch any
		want   string
		pgStat string
	}{
		{"no stores", nil, nil, "degraded", "skipped"},
		{"both ok", ok, ok, "ok", "ok"},
		{"pg down", down, ok, "fail", "fail"},
		{"not a pinger", struct{}{}, ok, "degraded", "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := serve(t, Deps{PG: tc.pg, CH: tc.ch}, "/ready")
			var out ReadyResponse
			if err := json.Unmarshal(data, &out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Status != tc.want || len(out.Checks) != 2 || out.Checks[0].Status != tc.pgStat {
				t.Fatalf("ready = %+v", out)
			}
		})
	}
}

func TestService_Uptime(t *testing.T) {
	data := serve(t, Deps{ServiceName: "penwatch", StartedAt: time.Now().Add(-90 * time.Second)}, "/service")
	var out ServiceResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Name != "penwatch" || out.Uptime < 90 {
		t.Fatalf("service = %+v", out)
	}
}

func TestPipeline(t *testing.T) {
	data := serve(t, Deps{Pipeline: func() any { return map[string]string{"mode": "cue"} }}, "/pipeline")
	var out struct {
		Pipeline map[string]string `json:"pipeline"`
		Build    struct {
			Service string `json:"service"`
		} `json:"build"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Pipeline["mode"] != "cue" || out.Build.Service != "penwatch" {
		t.Fatalf("pipeline = %+v", out)
	}

	data = serve(t, Deps{}, "/pipeline")
	var bare map[string]json.RawMessage
	if err := json.Unmarshal(data, &bare); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := bare["pipeline"]; ok {
		t.Fatalf("pipeline should be omitted without a reporter: %s", data)
	}
}
