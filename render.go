package sheetgrid

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
)

//go:embed ui/templates/*.html ui/static/*
var uiFiles embed.FS

var templates = template.Must(template.ParseFS(uiFiles, "ui/templates/*.html"))

type headerView struct {
	ID         string
	Name       string
	Width      int
	Sortable   bool
	Active     bool
	Desc       bool
	Filterable bool
	Filtering  bool
}

type cellView struct {
	Type     string
	Text     string
	LinkText string
	Tags     []string
}

type tableView struct {
	Headers []template.HTML
	Rows    []template.HTML
	Popover *popoverView
}

type optionView struct {
	Value   string
	Checked bool
}

type popoverView struct {
	ID      string
	Batch   string
	Options []optionView
	Placement
}

type pageView struct {
	Title string
	Body  template.HTML
}

func renderHTML(name string, data interface{}) template.HTML {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Template execution failed", "template", name, "error", err)
		return ""
	}
	return template.HTML(buf.String())
}

// StaticHandler serves the embedded stylesheet and script.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(uiFiles, "ui/static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
