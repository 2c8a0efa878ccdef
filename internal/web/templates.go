package web

import (
	"embed"
	"html/template"
	"time"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var funcs = template.FuncMap{
	"even": func(i int) bool { return i%2 == 0 },
	"datetime": func(t time.Time) string {
		return t.Local().Format("2006-01-02 15:04:05")
	},
}

// Templates parses every embedded page template.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.tmpl")
}
