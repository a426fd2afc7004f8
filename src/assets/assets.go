// Package assets bundles the icon, stylesheets, reload script and HTML
// templates into the binary.
package assets

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/contre95/mdlive/src/infra/digest"
	"github.com/gofiber/fiber/v2/utils"
)

//go:embed static
var staticFS embed.FS

//go:embed views
var viewsFS embed.FS

// Served lists the URL paths answered from the asset table.
var Served = []string{
	"/markdown.svg",
	"/github-markdown.css",
	"/custom.css",
	"/hot-reload.js",
}

// Stylesheets are inlined, in this order, into every rendered page.
var Stylesheets = []string{
	"/github-markdown.css",
	"/custom.css",
}

// Static returns the embedded static files rooted at their URL names.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// Views returns the embedded HTML templates.
func Views() fs.FS {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		panic(err)
	}
	return sub
}

// Asset is a static file held in memory together with its digest.
type Asset struct {
	Name        string
	Content     []byte
	Digest      string
	ContentType string
	LoadedAt    time.Time
}

// Table serves assets from fsys, reading each one on first use and keeping
// it for the lifetime of the table.
type Table struct {
	fsys   fs.FS
	served map[string]bool

	mu     sync.Mutex
	loaded map[string]*Asset
}

// NewTable creates a table over fsys answering the given URL paths.
func NewTable(fsys fs.FS, served []string) *Table {
	names := make(map[string]bool, len(served))
	for _, name := range served {
		names[name] = true
	}
	return &Table{
		fsys:   fsys,
		served: names,
		loaded: make(map[string]*Asset),
	}
}

// Has reports whether urlPath names a bundled asset.
func (t *Table) Has(urlPath string) bool {
	return t.served[urlPath]
}

// Get returns the asset for urlPath, loading it on first access.
func (t *Table) Get(urlPath string) (*Asset, error) {
	if !t.Has(urlPath) {
		return nil, fmt.Errorf("asset %s: %w", urlPath, fs.ErrNotExist)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if asset, ok := t.loaded[urlPath]; ok {
		return asset, nil
	}

	content, err := fs.ReadFile(t.fsys, strings.TrimPrefix(urlPath, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to load asset %s: %w", urlPath, err)
	}
	sum, err := digest.Sum(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	contentType := utils.GetMIME(path.Ext(urlPath))
	if strings.HasPrefix(contentType, "text/") || strings.HasSuffix(contentType, "javascript") {
		contentType += "; charset=UTF-8"
	}
	asset := &Asset{
		Name:        urlPath,
		Content:     content,
		Digest:      sum,
		ContentType: contentType,
		LoadedAt:    time.Now(),
	}
	t.loaded[urlPath] = asset
	return asset, nil
}

// Text returns the asset content as a string.
func (t *Table) Text(urlPath string) (string, error) {
	asset, err := t.Get(urlPath)
	if err != nil {
		return "", err
	}
	return string(asset.Content), nil
}
