package web

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"
)

const layout = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>hostbridge</title>
  <style>
    body { font-family: sans-serif; margin: 2em; }
    table { border-collapse: collapse; margin-bottom: 2em; }
    td, th { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
  </style>
</head>
<body>
  <h1>hostbridge</h1>
  <p>Up {{.Uptime}}. Scene <b>{{.Scene}}</b> with {{len .Objects}} objects and {{len .Materials}} materials.</p>
  {{template "transports" .}}
  {{template "scene" .}}
  {{template "commands" .}}
</body>
</html>`

const transportsBlock = `{{define "transports"}}
<h2>Transports</h2>
<table>
  <tr><th>Name</th><th>Protocol</th><th>Address</th><th>Running</th><th>Clients</th></tr>
  {{range .Transports}}
  <tr><td>{{.Name}}</td><td>{{.Protocol}}</td><td>{{.Address}}</td><td>{{.Running}}</td><td>{{len .Clients}} / {{.MaxClients}}</td></tr>
  {{end}}
</table>
{{end}}`

const sceneBlock = `{{define "scene"}}
<h2>Objects</h2>
<table>
  <tr><th>Name</th><th>Type</th><th>Location</th><th>Rotation</th><th>Scale</th><th>Visible</th></tr>
  {{range .Objects}}
  <tr><td>{{.Name}}</td><td>{{.Type}}</td><td>{{vec .Location}}</td><td>{{vec .Rotation}}</td><td>{{vec .Scale}}</td><td>{{.Visible}}</td></tr>
  {{else}}
  <tr><td colspan="6">Empty scene</td></tr>
  {{end}}
</table>
{{if .Materials}}<p>Materials: {{join .Materials ", "}}</p>{{end}}
{{end}}`

const commandsBlock = `{{define "commands"}}
<h2>Commands</h2>
<ul>
  {{range .Commands}}<li>{{index . "name"}}{{if index . "mutating"}} (owner thread){{end}}</li>{{end}}
</ul>
{{end}}`

type Templates struct {
	page *template.Template
}

func NewTemplates() *Templates {
	t := template.New("layout").Funcs(TemplateFuncs())
	for _, src := range []string{layout, transportsBlock, sceneBlock, commandsBlock} {
		t = template.Must(t.Parse(src))
	}
	return &Templates{page: t}
}

func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"vec": func(v [3]float64) string {
			return fmt.Sprintf("%g, %g, %g", v[0], v[1], v[2])
		},
		"join": strings.Join,
	}
}

// RenderPage renders the full status page.
func (t *Templates) RenderPage(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := t.page.ExecuteTemplate(w, "layout", data)
	if err != nil {
		http.Error(w, "Template rendering error: "+err.Error(), http.StatusInternalServerError)
	}
}
