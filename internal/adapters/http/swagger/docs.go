// Package swagger serves the OpenAPI document of the plan service.
package swagger

import (
	"context"
	_ "embed"
	"net/http"
	"strconv"

	"github.com/zeebo/xxh3"
)

// OpenAPI is the embedded OpenAPI 3 document.
//
//go:embed openapi.yaml
var OpenAPI []byte

// DocPath is where the document is served.
const DocPath = "/openapi.yaml"

var docETag = `"` + strconv.FormatUint(xxh3.Hash(OpenAPI), 16) + `"`

// Register attaches GET /openapi.yaml to mux.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}
	mux.HandleFunc(DocPath, serveDoc)
}

func serveDoc(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("ETag", docETag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == docETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(OpenAPI)))
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(OpenAPI)
}
