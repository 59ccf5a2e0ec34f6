package swaggerkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	phttp "penwatch/internal/platform/net/http"
	"penwatch/internal/platform/testkit"

	"github.com/go-chi/chi/v5"
)

func fetchDoc(t *testing.T) (int, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	serveDocJSON()(rr, httptest.NewRequest(http.MethodGet, "/api/docs/doc.json", nil))
	var spec map[string]any
	if rr.Code == http.StatusOK {
		if err := json.Unmarshal(rr.Body.Bytes(), &spec); err != nil {
			t.Fatalf("decode served doc: %v", err)
		}
	}
	return rr.Code, spec
}

func TestServeDocJSON_EmbeddedDocument(t *testing.T) {
	code, spec := fetchDoc(t)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if spec["openapi"] != "3.0.3" {
		t.Fatalf("openapi = %v", spec["openapi"])
	}
	servers, _ := spec["servers"].([]any)
	if len(servers) != 1 || servers[0].(map[string]any)["url"] != "/api/v1" {
		t.Fatalf("servers = %v", spec["servers"])
	}

	paths := spec["paths"].(map[string]any)
	for _, p := range []string{"/status", "/peers", "/cycles", "/pause", "/resume", "/text", "/meta/health"} {
		if _, ok := paths[p]; !ok {
			t.Fatalf("missing path %s", p)
		}
	}
	resps := paths["/text"].(map[string]any)["post"].(map[string]any)["responses"].(map[string]any)
	if _, ok := resps["500"]; !ok {
		t.Fatal("default 500 not injected")
	}
	if _, ok := resps["400"]; !ok {
		t.Fatal("default 400 not injected")
	}
	schemas := spec["components"].(map[string]any)["schemas"].(map[string]any)
	if _, ok := schemas["ErrorResponse"]; !ok {
		t.Fatal("ErrorResponse schema not injected")
	}
}

func TestServeDocJSON_TitleSuffixAndMutators(t *testing.T) {
	t.Setenv("CORE_API_DOCS_TITLE_SUFFIX", "(staging)")
	testkit.Swap(t, &mutators, []SpecMutator{func(spec map[string]any) { spec["x-test"] = true }})

	_, spec := fetchDoc(t)
	if title := spec["info"].(map[string]any)["title"]; title != "penwatch admin API (staging)" {
		t.Fatalf("title = %v", title)
	}
	if spec["x-test"] != true {
		t.Fatal("mutator not applied")
	}
}

func TestServeDocJSON_BadDocument(t *testing.T) {
	testkit.Swap(t, &docReader, func() string { return "{not json" })
	if code, _ := fetchDoc(t); code != http.StatusInternalServerError {
		t.Fatalf("status = %d", code)
	}
}

func TestRegister_IgnoresNil(t *testing.T) {
	testkit.Swap(t, &mutators, nil)
	Register(nil)
	Register(func(map[string]any) {})
	if len(mutators) != 1 {
		t.Fatalf("mutators = %d", len(mutators))
	}
}

func TestDecorate_KeepsDeclaredParts(t *testing.T) {
	spec := map[string]any{
		"openapi": "3.1.0",
		"servers": []any{},
		"paths": map[string]any{
			"/x": map[string]any{"get": map[string]any{
				"responses": map[string]any{"400": "mine"},
			}},
		},
	}
	decorate(spec, "")

	if spec["openapi"] != "3.0.3" || len(spec["servers"].([]any)) != 0 {
		t.Fatalf("spec = %v", spec)
	}
	resps := spec["paths"].(map[string]any)["/x"].(map[string]any)["get"].(map[string]any)["responses"].(map[string]any)
	if resps["400"] != "mine" {
		t.Fatalf("declared 400 overwritten: %v", resps["400"])
	}
	if _, ok := resps["500"].(map[string]any); !ok {
		t.Fatalf("500 = %v", resps["500"])
	}
}

func TestMount(t *testing.T) {
	cases := []struct {
		enabled bool
		path    string
		want    int
	}{
		{true, "/api/docs/doc.json", http.StatusOK},
		{true, "/api/docs", http.StatusPermanentRedirect},
		{false, "/api/docs/doc.json", http.StatusNotFound},
	}
	for _, tc := range cases {
		mux := chi.NewRouter()
		Mount(phttp.AdaptChi(mux), tc.enabled)

		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rr.Code != tc.want {
			t.Fatalf("enabled=%v GET %s = %d, want %d", tc.enabled, tc.path, rr.Code, tc.want)
		}
	}
}
