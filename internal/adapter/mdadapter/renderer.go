package mdadapter

import (
	"bytes"
	"fmt"
	"html/template"

	_ "embed"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
)

const defaultTitle = "Sync report"

//go:embed report.html
var defaultTemplate string

// Meta is the front matter of a run report.
type Meta struct {
	Title     string `yaml:"title"`
	RunID     string `yaml:"run_id"`
	StartedAt string `yaml:"started_at"`
	Tags      int    `yaml:"tags"`
	Errors    int    `yaml:"errors"`
}

type page struct {
	Meta Meta
	Body template.HTML
}

type renderer struct {
	md  goldmark.Markdown
	tpl *template.Template
}

func NewRenderer() (*renderer, error) {
	tpl, err := template.New("report").Parse(defaultTemplate)
	if err != nil {
		return nil, fmt.Errorf("cannot parse template: %w", err)
	}

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			&frontmatter.Extender{},
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	return &renderer{md: md, tpl: tpl}, nil
}

// Render converts a Markdown report with an optional YAML front matter block
// into a complete HTML page.
func (r *renderer) Render(src []byte) (string, error) {
	var body bytes.Buffer

	ctx := parser.NewContext()
	if err := r.md.Convert(src, &body, parser.WithContext(ctx)); err != nil {
		return "", fmt.Errorf("cannot convert report: %w", err)
	}

	p := page{
		Meta: Meta{Title: defaultTitle},
		Body: template.HTML(body.String()),
	}

	if fm := frontmatter.Get(ctx); fm != nil {
		if err := fm.Decode(&p.Meta); err != nil {
			return "", fmt.Errorf("cannot decode front matter: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := r.tpl.Execute(&buf, &p); err != nil {
		return "", fmt.Errorf("cannot execute template: %w", err)
	}

	return buf.String(), nil
}
