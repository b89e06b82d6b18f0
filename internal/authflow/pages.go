package authflow

import (
	"html/template"
	"net/http"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: sans-serif; max-width: 40em; margin: 4em auto; }
pre { background: #f4f4f4; padding: 1em; white-space: pre-wrap; word-break: break-all; }
</style>
</head>
<body>
<h1>{{.Heading}}</h1>
{{range .Paragraphs}}<p>{{.}}</p>
{{end}}{{if .Detail}}<pre>{{.Detail}}</pre>
{{end}}</body>
</html>
`))

type page struct {
	Title      string
	Heading    string
	Paragraphs []string
	Detail     string
}

// render writes p with the given status. Detail is HTML-escaped by the template.
func render(w http.ResponseWriter, status int, p page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = pageTemplate.Execute(w, p)
}
