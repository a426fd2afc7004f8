package rendering

import (
	"net/http"

	"github.com/contre95/mdlive/src/assets"
	"github.com/gofiber/template/html/v2"
)

// Options controls a single render.
type Options struct {
	// Raw returns the converted fragment without the page template.
	Raw bool
	// URLPath is the request path of the document, used for the page title.
	URLPath string
	// ETag is embedded in the page so the reload script can poll conditionally.
	ETag string
}

// Renderer converts a source file into HTML.
type Renderer interface {
	Render(sourcePath string, opts Options) ([]byte, error)
}

// NewViews loads the embedded templates into a fiber html engine shared by
// the renderer and the directory listing.
func NewViews(debug bool) (*html.Engine, error) {
	engine := html.NewFileSystem(http.FS(assets.Views()), ".html")
	engine.Debug(debug)
	if err := engine.Load(); err != nil {
		return nil, err
	}
	return engine, nil
}
