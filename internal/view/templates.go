// Package view renders the server-side page shell.
package view

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/quanly-erp/quanly/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
}

// Banner is the notice shown on the profile page after a redirect.
type Banner struct {
	Message            string
	RequestedPath      string
	RequiredPermission string
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	Lang        string
	CurrentPath string
	Role        string
	Email       string
	Banner      *Banner
	Data        any
}

// NewEngine parses the embedded templates.
func NewEngine() (*Engine, error) {
	tpl, err := template.New("root").ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl}, nil
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}
