package rendering

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

var ErrGraphvizUnavailable = errors.New("graphviz dot executable not available")

// Graphviz renders .dot sources to SVG through an external dot executable.
type Graphviz struct {
	dotPath string
	enabled bool

	once     sync.Once
	resolved string
}

// NewGraphviz creates a renderer for dotPath. A disabled renderer is never
// available.
func NewGraphviz(dotPath string, enabled bool) *Graphviz {
	if dotPath == "" {
		dotPath = "dot"
	}
	return &Graphviz{dotPath: dotPath, enabled: enabled}
}

// Available reports whether dot was found on the host.
func (g *Graphviz) Available() bool {
	if !g.enabled {
		return false
	}
	g.once.Do(func() {
		resolved, err := exec.LookPath(g.dotPath)
		if err != nil {
			slog.Info("Graphviz not found, .dot files are served as-is", "dot", g.dotPath)
			return
		}
		g.resolved = resolved
	})
	return g.resolved != ""
}

// Render runs dot on sourcePath and returns the SVG document.
func (g *Graphviz) Render(ctx context.Context, sourcePath string) ([]byte, error) {
	if !g.Available() {
		return nil, ErrGraphvizUnavailable
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, g.resolved, "-Tsvg", sourcePath)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("dot failed on %s: %w: %s", sourcePath, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}
