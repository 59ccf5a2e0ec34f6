// Package swaggerkit serves the admin API document and its UI
package swaggerkit

import (
	"net/http"

	phttp "penwatch/internal/platform/net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// DocsPath is where the UI lives, the document is DocsPath + "/doc.json"
const DocsPath = "/api/docs"

// Mount serves the UI and document when enabled
func Mount(r phttp.Router, enabled bool) {
	if !enabled {
		return
	}
	doc := DocsPath + "/doc.json"
	r.Get(DocsPath, http.RedirectHandler(DocsPath+"/", http.StatusPermanentRedirect).ServeHTTP)
	r.Get(doc, serveDocJSON())
	r.Handle(DocsPath+"/*", httpSwagger.Handler(httpSwagger.URL(doc)))
}
