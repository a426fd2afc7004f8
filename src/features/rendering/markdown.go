package rendering

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path"
	"strings"

	"github.com/contre95/mdlive/src/assets"
	"github.com/gofiber/template/html/v2"
	"github.com/russross/blackfriday"
)

const pageView = "page"

// Markdown renders Markdown sources with blackfriday and wraps complete
// pages in the embedded page template.
type Markdown struct {
	views      *html.Engine
	assets     *assets.Table
	prefix     string
	reload     bool
	extensions Extensions
}

// NewMarkdown creates a Markdown renderer. prefix is the URL mount point of
// the bundled assets; reload enables the hot-reload script in full pages.
func NewMarkdown(views *html.Engine, table *assets.Table, prefix string, reload bool) *Markdown {
	return &Markdown{
		views:      views,
		assets:     table,
		prefix:     strings.TrimSuffix(prefix, "/"),
		reload:     reload,
		extensions: defaultExtensions(),
	}
}

// WithExtensions replaces the default extension set.
func (m *Markdown) WithExtensions(ext Extensions) *Markdown {
	m.extensions = ext
	return m
}

// Render converts the Markdown file at sourcePath.
func (m *Markdown) Render(sourcePath string, opts Options) ([]byte, error) {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, err
	}
	fragment := Convert(source, m.extensions)
	if opts.Raw {
		return fragment, nil
	}

	css, err := m.stylesheets()
	if err != nil {
		return nil, err
	}
	title := path.Base(opts.URLPath)
	if opts.URLPath == "" {
		title = path.Base(sourcePath)
	}

	var out bytes.Buffer
	err = m.views.Render(&out, pageView, map[string]any{
		"Title":   title,
		"Prefix":  m.prefix,
		"CSS":     template.CSS(css),
		"Content": template.HTML(fragment),
		"ETag":    opts.ETag,
		"Reload":  m.reload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render page for %s: %w", sourcePath, err)
	}
	return out.Bytes(), nil
}

func (m *Markdown) stylesheets() (string, error) {
	var sb strings.Builder
	for _, name := range assets.Stylesheets {
		text, err := m.assets.Text(name)
		if err != nil {
			return "", err
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// Convert turns Markdown source into an HTML fragment.
func Convert(source []byte, ext Extensions) []byte {
	renderer := blackfriday.HtmlRenderer(ext.HTML, "", "")
	return blackfriday.Markdown(source, renderer, ext.Parser)
}
