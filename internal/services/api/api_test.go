package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"penwatch/internal/core/broadcast"
	"penwatch/internal/core/coordinator"
	"penwatch/internal/core/framestore"
	"penwatch/internal/core/gate"
	"penwatch/internal/platform/config"
	phttp "penwatch/internal/platform/net/http"
	adminhttp "penwatch/internal/services/api/admin/http"

	"github.com/go-chi/chi/v5"
)

func TestMount_ServesMetaAdminAndDocs(t *testing.T) {
	g := gate.New()
	coord := coordinator.New(framestore.New(), g, broadcast.New(), nil)

	mux := chi.NewRouter()
	Mount(phttp.AdaptChi(mux), Options{
		Config:        config.New().Prefix("CORE_API_"),
		EnableSwagger: true,
		Admin:         adminhttp.Deps{Ctl: coord},
		Pipeline:      func() any { return map[string]string{"mode": "noop"} },
	})

	cases := []struct {
		method, path string
		code         int
		contains     string
	}{
		{http.MethodGet, "/api/v1/meta/health", http.StatusOK, `"service":"penwatch"`},
		{http.MethodGet, "/api/v1/meta/pipeline", http.StatusOK, `"mode":"noop"`},
		{http.MethodGet, "/api/v1/status", http.StatusOK, `"state":"running"`},
		{http.MethodPost, "/api/v1/pause", http.StatusOK, `"state":"paused"`},
		{http.MethodGet, "/api/v1/peers", http.StatusOK, `"data":[]`},
		{http.MethodGet, "/api/docs/doc.json", http.StatusOK, `"openapi"`},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		if rr.Code != tc.code || !strings.Contains(rr.Body.String(), tc.contains) {
			t.Fatalf("%s %s = %d %s", tc.method, tc.path, rr.Code, rr.Body.String())
		}
	}

	if g.State() != gate.Paused {
		t.Fatalf("gate = %v, want paused", g.State())
	}
	if src := g.Snapshot().Source; !strings.HasPrefix(src, "admin:") {
		t.Fatalf("source = %q", src)
	}
}
