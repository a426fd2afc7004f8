package pages

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/contre95/mdlive/src/assets"
	"github.com/contre95/mdlive/src/features/metrics"
	"github.com/contre95/mdlive/src/features/reload"
	"github.com/contre95/mdlive/src/features/rendering"
	"github.com/contre95/mdlive/src/infra/digest"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/html/v2"
)

// ErrOutsidePrefix is returned for request paths not under the mount prefix.
var ErrOutsidePrefix = errors.New("path is outside the mount prefix")

const (
	assetCacheControl = "must-revalidate, max-age=86400"
	pageCacheControl  = "no-cache"
	htmlContentType   = "text/html; charset=UTF-8"
	svgContentType    = "image/svg+xml; charset=UTF-8"
)

// Request kinds used as metric labels.
const (
	kindAsset     = "asset"
	kindMarkdown  = "markdown"
	kindGraph     = "graph"
	kindFile      = "file"
	kindDirectory = "directory"
	kindOther     = "other"
)

// DigestCache resolves the current digest of a file.
type DigestCache interface {
	GetOrRefresh(path string) (digest.Entry, error)
}

// Subscriber registers reload subscriptions.
type Subscriber interface {
	Subscribe(path string) *reload.Subscription
}

// GraphRenderer turns .dot sources into SVG.
type GraphRenderer interface {
	Available() bool
	Render(ctx context.Context, sourcePath string) ([]byte, error)
}

// AssetTable serves the bundled static files.
type AssetTable interface {
	Has(urlPath string) bool
	Get(urlPath string) (*assets.Asset, error)
}

// Options holds the handler's collaborators.
type Options struct {
	Root          string
	Prefix        string
	ReloadEnabled bool
	ReloadTimeout time.Duration

	Digests       DigestCache
	Subscriptions Subscriber
	Renderer      rendering.Renderer
	Graphviz      GraphRenderer
	Assets        AssetTable
	Views         *html.Engine
	Metrics       *metrics.Metrics
}

// Handler serves the document tree: bundled assets, rendered Markdown,
// Graphviz graphs, plain files and directory listings.
type Handler struct {
	root          string
	prefix        string
	reloadEnabled bool
	reloadTimeout time.Duration

	digests       DigestCache
	subscriptions Subscriber
	renderer      rendering.Renderer
	graphviz      GraphRenderer
	assets        AssetTable
	views         *html.Engine
	metrics       *metrics.Metrics
}

// NewHandler creates a new handler for the document tree.
func NewHandler(opts Options) *Handler {
	return &Handler{
		root:          opts.Root,
		prefix:        strings.TrimSuffix(opts.Prefix, "/"),
		reloadEnabled: opts.ReloadEnabled,
		reloadTimeout: opts.ReloadTimeout,
		digests:       opts.Digests,
		subscriptions: opts.Subscriptions,
		renderer:      opts.Renderer,
		graphviz:      opts.Graphviz,
		assets:        opts.Assets,
		views:         opts.Views,
		metrics:       opts.Metrics,
	}
}

// Serve is the catch-all route.
func (h *Handler) Serve(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodGet {
		return h.empty(c, kindOther, fiber.StatusMethodNotAllowed)
	}

	urlPath, err := h.resolve(c.Path())
	if err != nil {
		slog.Debug("Rejecting request path", "path", c.Path(), "error", err)
		return h.empty(c, kindOther, fiber.StatusNotFound)
	}

	if h.assets.Has(urlPath) {
		return h.serveAsset(c, urlPath)
	}

	fsPath := filepath.Join(h.root, filepath.FromSlash(urlPath))
	info, err := os.Stat(fsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return h.empty(c, kindOther, fiber.StatusNotFound)
		}
		return fmt.Errorf("failed to stat %s: %w", fsPath, err)
	}
	if info.IsDir() {
		return h.serveDirectory(c, urlPath, fsPath)
	}
	return h.serveFile(c, urlPath, fsPath, info)
}

// resolve maps a raw request path to a clean path relative to the root.
func (h *Handler) resolve(rawPath string) (string, error) {
	p, err := url.PathUnescape(rawPath)
	if err != nil {
		return "", err
	}
	if h.prefix != "" {
		if p != h.prefix && !strings.HasPrefix(p, h.prefix+"/") {
			return "", ErrOutsidePrefix
		}
		p = strings.TrimPrefix(p, h.prefix)
	}
	return path.Clean("/" + p), nil
}

func (h *Handler) serveAsset(c *fiber.Ctx, urlPath string) error {
	asset, err := h.assets.Get(urlPath)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderCacheControl, assetCacheControl)
	if matches(ParseETags(c.Get(fiber.HeaderIfNoneMatch)), asset.Digest) {
		return h.notModified(c, kindAsset, asset.Digest)
	}
	c.Set(fiber.HeaderContentType, asset.ContentType)
	c.Set(fiber.HeaderETag, FormatETag(asset.Digest))
	c.Set(fiber.HeaderLastModified, asset.LoadedAt.UTC().Format(http.TimeFormat))
	h.metrics.Request(kindAsset, fiber.StatusOK)
	return c.Status(fiber.StatusOK).Send(asset.Content)
}

func (h *Handler) serveFile(c *fiber.Ctx, urlPath, fsPath string, info fs.FileInfo) error {
	kind := h.kindOf(fsPath)
	entry, err := h.digests.GetOrRefresh(fsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return h.empty(c, kind, fiber.StatusNotFound)
		}
		return err
	}

	reloading := c.Context().QueryArgs().Has("reload")
	if matches(ParseETags(c.Get(fiber.HeaderIfNoneMatch)), entry.Digest) {
		if kind == kindMarkdown && reloading && h.reloadEnabled {
			return h.longPoll(c, urlPath, fsPath, entry.Digest)
		}
		return h.notModified(c, kind, entry.Digest)
	}

	switch kind {
	case kindMarkdown:
		return h.serveMarkdown(c, urlPath, fsPath, entry.Digest, reloading)
	case kindGraph:
		return h.serveGraph(c, fsPath, entry.Digest)
	default:
		return h.streamFile(c, fsPath, entry.Digest, info)
	}
}

// longPoll holds a conditional reload request until the file changes, the
// reload timeout elapses or the server shuts down.
func (h *Handler) longPoll(c *fiber.Ctx, urlPath, fsPath, known string) error {
	subscription := h.subscriptions.Subscribe(fsPath)
	defer subscription.Unsubscribe()

	// Changes landing between the first digest and Subscribe are only
	// visible by looking again.
	entry, err := h.digests.GetOrRefresh(fsPath)
	if err == nil && entry.Digest != known {
		h.metrics.LongPoll(metrics.LongPollChanged)
		return h.serveMarkdown(c, urlPath, fsPath, entry.Digest, true)
	}

	if err == nil {
		if !subscription.Wait(c.Context(), h.reloadTimeout) {
			h.metrics.LongPoll(metrics.LongPollTimeout)
			return h.notModified(c, kindMarkdown, known)
		}
		entry, err = h.digests.GetOrRefresh(fsPath)
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.metrics.LongPoll(metrics.LongPollGone)
			return h.empty(c, kindMarkdown, fiber.StatusNotFound)
		}
		return err
	}
	if entry.Digest == known {
		h.metrics.LongPoll(metrics.LongPollSpurious)
		return h.notModified(c, kindMarkdown, known)
	}

	slog.Debug("Reloading document", "path", urlPath, "etag", entry.Digest)
	h.metrics.LongPoll(metrics.LongPollChanged)
	return h.serveMarkdown(c, urlPath, fsPath, entry.Digest, true)
}

func (h *Handler) serveMarkdown(c *fiber.Ctx, urlPath, fsPath, sum string, raw bool) error {
	body, err := h.renderer.Render(fsPath, rendering.Options{
		Raw:     raw,
		URLPath: h.prefix + urlPath,
		ETag:    FormatETag(sum),
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return h.empty(c, kindMarkdown, fiber.StatusNotFound)
		}
		return err
	}
	c.Set(fiber.HeaderContentType, htmlContentType)
	c.Set(fiber.HeaderCacheControl, pageCacheControl)
	c.Set(fiber.HeaderETag, FormatETag(sum))
	h.metrics.Request(kindMarkdown, fiber.StatusOK)
	return c.Status(fiber.StatusOK).Send(body)
}

func (h *Handler) serveGraph(c *fiber.Ctx, fsPath, sum string) error {
	body, err := h.graphviz.Render(c.Context(), fsPath)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, svgContentType)
	c.Set(fiber.HeaderCacheControl, pageCacheControl)
	c.Set(fiber.HeaderETag, FormatETag(sum))
	h.metrics.Request(kindGraph, fiber.StatusOK)
	return c.Status(fiber.StatusOK).Send(body)
}

func (h *Handler) streamFile(c *fiber.Ctx, fsPath, sum string, info fs.FileInfo) error {
	file, err := os.Open(fsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return h.empty(c, kindFile, fiber.StatusNotFound)
		}
		return err
	}
	c.Type(strings.TrimPrefix(filepath.Ext(fsPath), "."))
	c.Set(fiber.HeaderCacheControl, pageCacheControl)
	c.Set(fiber.HeaderETag, FormatETag(sum))
	h.metrics.Request(kindFile, fiber.StatusOK)
	return c.Status(fiber.StatusOK).SendStream(file, int(info.Size()))
}

func (h *Handler) notModified(c *fiber.Ctx, kind, sum string) error {
	c.Set(fiber.HeaderETag, FormatETag(sum))
	return h.empty(c, kind, fiber.StatusNotModified)
}

// empty answers with a bare status code and no body.
func (h *Handler) empty(c *fiber.Ctx, kind string, status int) error {
	h.metrics.Request(kind, status)
	c.Status(status)
	return nil
}

func (h *Handler) kindOf(fsPath string) string {
	// Case-sensitive, like the watch patterns, so every rendered document
	// can also be reloaded.
	switch filepath.Ext(fsPath) {
	case ".md":
		return kindMarkdown
	case ".dot":
		if h.graphviz != nil && h.graphviz.Available() {
			return kindGraph
		}
	}
	return kindFile
}
