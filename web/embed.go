// Package web carries the console's HTML templates.
package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.tmpl
var templates embed.FS

// Templates parses every embedded template. Each view is a named template;
// layouts receive the rendered view as .Content.
func Templates() (*template.Template, error) {
	return template.New("").ParseFS(templates, "templates/*.tmpl")
}
