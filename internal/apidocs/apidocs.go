// Package apidocs serves the embedded OpenAPI document and a plain HTML
// index of its operations. Mounted outside production only.
package apidocs

import (
	_ "embed"
	"encoding/json"
	"html/template"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/pasaeventos-api/internal/httpmw"
	"github.com/keithlinneman/pasaeventos-api/internal/xerrors"
)

//go:embed openapi.json
var openapiJSON []byte

type document struct {
	Info struct {
		Title       string `json:"title"`
		Version     string `json:"version"`
		Description string `json:"description"`
	} `json:"info"`
	Paths map[string]map[string]struct {
		Summary string `json:"summary"`
	} `json:"paths"`
}

type operation struct {
	Method, Path, Summary string
}

type page struct {
	Title, Version, Description string
	Operations                  []operation
}

var indexTmpl = template.Must(template.New("docs").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}} {{.Version}}</title></head>
<body>
<h1>{{.Title}} <small>{{.Version}}</small></h1>
<p>{{.Description}}</p>
<p><a href="/docs/openapi.json">openapi.json</a></p>
<table>
<thead><tr><th>Method</th><th>Path</th><th>Summary</th></tr></thead>
<tbody>
{{- range .Operations}}
<tr><td>{{.Method}}</td><td><code>{{.Path}}</code></td><td>{{.Summary}}</td></tr>
{{- end}}
</tbody>
</table>
</body>
</html>
`))

// API implements httpserver.RouteRegistrar for /docs.
type API struct {
	raw  []byte
	page page
}

// New parses the embedded document once.
func New() (*API, error) {
	return newAPI(openapiJSON)
}

func newAPI(raw []byte) (*API, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, xerrors.Wrap(err, "parse openapi document")
	}
	p := page{
		Title:       doc.Info.Title,
		Version:     doc.Info.Version,
		Description: doc.Info.Description,
	}
	for path, methods := range doc.Paths {
		for method, op := range methods {
			p.Operations = append(p.Operations, operation{
				Method:  strings.ToUpper(method),
				Path:    path,
				Summary: op.Summary,
			})
		}
	}
	sort.Slice(p.Operations, func(i, j int) bool {
		if p.Operations[i].Path != p.Operations[j].Path {
			return p.Operations[i].Path < p.Operations[j].Path
		}
		return p.Operations[i].Method < p.Operations[j].Method
	})
	return &API{raw: raw, page: p}, nil
}

func (api *API) RegisterRoutes(r chi.Router) {
	r.Route("/docs", func(r chi.Router) {
		r.Use(httpmw.Scope("docs"))
		r.Get("/", api.serveIndex)
		r.Get("/openapi.json", api.serveDocument)
	})
}

func (api *API) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = indexTmpl.Execute(w, api.page)
}

func (api *API) serveDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(api.raw)
}
