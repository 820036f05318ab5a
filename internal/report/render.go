package report

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Document is a rendered report.
type Document struct {
	Body        []byte
	ContentType string
	Ext         string
}

// Renderer turns a report into a document.
type Renderer interface {
	Render(ctx context.Context, r *Report) (Document, error)
}

// ErrNilReport is returned when rendering a nil report.
var ErrNilReport = errors.New("report: nil report")

// HTMLRenderer renders a self-contained printable HTML page.
type HTMLRenderer struct {
	tmpl *template.Template
}

// NewHTMLRenderer parses the embedded report template.
func NewHTMLRenderer() (*HTMLRenderer, error) {
	tmpl, err := template.New("report.html.tmpl").
		Funcs(template.FuncMap{"percent": percent}).
		ParseFS(templateFS, "templates/report.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl}, nil
}

// Render implements Renderer.
func (h *HTMLRenderer) Render(ctx context.Context, r *Report) (Document, error) {
	if r == nil {
		return Document{}, ErrNilReport
	}
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	var buf bytes.Buffer
	if err := h.tmpl.Execute(&buf, r); err != nil {
		return Document{}, fmt.Errorf("render report: %w", err)
	}
	return Document{
		Body:        buf.Bytes(),
		ContentType: "text/html; charset=utf-8",
		Ext:         ".html",
	}, nil
}

func percent(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+.1f%%", *v)
}
