package handlers

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"html/template"
	"net/http"
	"time"
)

//go:embed openapi.yaml
var openapiSpec []byte

// openapiETag lets renderers revalidate the document cheaply.
var openapiETag = func() string {
	sum := sha256.Sum256(openapiSpec)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}()

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <link rel="stylesheet" href="{{.AssetBase}}/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="{{.AssetBase}}/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: {{.SpecURL}},
      dom_id: "#swagger-ui",
      presets: [SwaggerUIBundle.presets.apis],
      tryItOutEnabled: true,
    });
  </script>
</body>
</html>
`))

type docsData struct {
	Title     string
	AssetBase string
	SpecURL   string
}

// OpenAPISpec handles GET /openapi.yaml. It answers conditional requests
// against a content hash.
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Header().Set("ETag", openapiETag)
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "openapi.yaml", time.Time{}, bytes.NewReader(openapiSpec))
}

// Docs handles GET /docs with a Swagger UI page over OpenAPISpec.
func Docs(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := docsPage.Execute(&buf, docsData{
		Title:     "Runesmith Dashboard API",
		AssetBase: "https://unpkg.com/swagger-ui-dist@5",
		SpecURL:   "/openapi.yaml",
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render docs")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
