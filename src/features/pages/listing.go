package pages

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
)

const listingView = "listing"

// ListingEntry is one row of a directory listing.
type ListingEntry struct {
	Name string
	Href string
	Meta string
}

func (h *Handler) serveDirectory(c *fiber.Ctx, urlPath, fsPath string) error {
	entries, err := h.listDirectory(urlPath, fsPath)
	if err != nil {
		return err
	}

	data := fiber.Map{
		"Prefix":  h.prefix,
		"Path":    h.prefix + urlPath,
		"Parent":  h.parentHref(urlPath),
		"Entries": entries,
	}
	var out bytes.Buffer
	if err := h.views.Render(&out, listingView, data); err != nil {
		return fmt.Errorf("failed to render listing for %s: %w", urlPath, err)
	}
	c.Set(fiber.HeaderContentType, htmlContentType)
	c.Set(fiber.HeaderCacheControl, pageCacheControl)
	h.metrics.Request(kindDirectory, fiber.StatusOK)
	return c.Status(fiber.StatusOK).Send(out.Bytes())
}

// listDirectory returns subdirectories first, then servable documents, each
// group sorted by name. Hidden entries are skipped.
func (h *Handler) listDirectory(urlPath, fsPath string) ([]ListingEntry, error) {
	dirEntries, err := os.ReadDir(fsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fsPath, err)
	}

	base := h.prefix + strings.TrimSuffix(urlPath, "/") + "/"
	var dirs, files []ListingEntry
	for _, entry := range dirEntries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		// Stat follows symlinks so linked directories list as directories.
		info, err := os.Stat(filepath.Join(fsPath, name))
		if err != nil {
			slog.Debug("Skipping unreadable entry", "path", filepath.Join(fsPath, name), "error", err)
			continue
		}
		href := base + url.PathEscape(name)
		if info.IsDir() {
			dirs = append(dirs, ListingEntry{Name: name + "/", Href: href + "/"})
			continue
		}
		if h.kindOf(name) == kindFile {
			continue
		}
		files = append(files, ListingEntry{
			Name: name,
			Href: href,
			Meta: humanize.Bytes(uint64(info.Size())) + " · " + humanize.Time(info.ModTime()),
		})
	}

	// the trailing slash must not take part in the ordering
	sort.Slice(dirs, func(i, j int) bool {
		return strings.TrimSuffix(dirs[i].Name, "/") < strings.TrimSuffix(dirs[j].Name, "/")
	})
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return append(dirs, files...), nil
}

func (h *Handler) parentHref(urlPath string) string {
	if urlPath == "/" {
		return ""
	}
	parent := path.Dir(strings.TrimSuffix(urlPath, "/"))
	if parent == "/" {
		return h.prefix + "/"
	}
	return h.prefix + parent + "/"
}
